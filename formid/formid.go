/*

Package formid implements FormId, a record's cross-plugin identity: a
24-bit object index plus the name of the plugin that originally defined
the record.

Equality, ordering and hashing all treat the plugin name case
insensitively, using a Unicode-aware case fold (not a simple ToLower), so
that folding(a) == folding(b) implies the two form ids hash identically.

*/
package formid

import (
	"fmt"

	"golang.org/x/text/cases"
)

// folder performs the Unicode case folding used to compare plugin names.
var folder = cases.Fold()

// FormID is a record's cross-plugin identity.
type FormID struct {
	// ObjectIndex is the low 24 bits of the raw form id.
	ObjectIndex uint32

	// PluginName is the resolved name of the plugin that owns the record:
	// either an entry from the parent plugin's masters list, or the
	// parent plugin's own name if the encoded mod index doesn't resolve
	// to a master.
	PluginName string
}

// New builds a FormID from a raw form id value and the owning plugin's
// master list.
//
// Let modIndex = raw >> 24. If modIndex is in range for masters, the
// resolved plugin name is masters[modIndex]; otherwise it's
// parentPluginName (the record is defined by the plugin it was read
// from, not inherited from a master).
func New(parentPluginName string, masters []string, raw uint32) FormID {
	modIndex := raw >> 24
	name := parentPluginName
	if int(modIndex) < len(masters) {
		name = masters[modIndex]
	}
	return FormID{
		ObjectIndex: raw & 0x00FFFFFF,
		PluginName:  name,
	}
}

// foldedName returns the plugin name case-folded for comparison.
func (f FormID) foldedName() string {
	return folder.String(f.PluginName)
}

// Equal reports whether f and other refer to the same record, comparing
// the plugin name case insensitively.
func (f FormID) Equal(other FormID) bool {
	return f.ObjectIndex == other.ObjectIndex && f.foldedName() == other.foldedName()
}

// Less orders form ids by ObjectIndex, then by case-folded PluginName.
func (f FormID) Less(other FormID) bool {
	if f.ObjectIndex != other.ObjectIndex {
		return f.ObjectIndex < other.ObjectIndex
	}
	return f.foldedName() < other.foldedName()
}

// CaseFoldKey returns a string uniquely identifying the form id under
// case-insensitive plugin name comparison, suitable as a map key.
func (f FormID) CaseFoldKey() string {
	return fmt.Sprintf("%d|%s", f.ObjectIndex, f.foldedName())
}

// String returns a human-readable representation, e.g. "plugin.esm:0xCEC".
func (f FormID) String() string {
	return fmt.Sprintf("%s:0x%X", f.PluginName, f.ObjectIndex)
}
