/*

Package espm reads and interprets the binary plugin files used by the
Bethesda-style family of games (Morrowind, Oblivion, Skyrim and its
derivatives, and the Fallout titles built on the same engine lineage).

It answers questions about a plugin file without loading it into the
game: what its masters are, whether it's a master or light master, how
many of its records override a master's records, and whether two
plugins touch the same records. It does not modify, write, or round-trip
plugin files, and it does not interpret record semantics beyond what
these queries require.

*/
package espm

import (
	"encoding/binary"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/icza/espm/esperr"
	"github.com/icza/espm/formid"
	"github.com/icza/espm/gameid"
	"github.com/icza/espm/internal/record"
	"github.com/icza/espm/internal/winenc"
)

// GameId re-exports gameid.GameId so callers need only import this
// package for the common case.
type GameId = gameid.GameId

// Re-export the GameId values.
const (
	Morrowind  = gameid.Morrowind
	Oblivion   = gameid.Oblivion
	Skyrim     = gameid.Skyrim
	SkyrimSE   = gameid.SkyrimSE
	Fallout3   = gameid.Fallout3
	FalloutNV  = gameid.FalloutNV
	Fallout4   = gameid.Fallout4
	Fallout4VR = gameid.Fallout4VR
	SkyrimVR   = gameid.SkyrimVR
)

// MapGameID maps an externally supplied integer code to a GameId.
func MapGameID(id uint32) (GameId, error) {
	return gameid.MapGameID(id)
}

// FormIDEntry pairs a resolved FormID with whether the record it names
// overrides one defined by a master.
type FormIDEntry struct {
	FormID     formid.FormID
	IsOverride bool
}

// headerFields holds the values extracted from a plugin's top header
// record's subrecords (HEDR, MAST, SNAM, ONAM).
type headerFields struct {
	masters                 []string
	description             string
	hasDescription          bool
	headerVersion           float32
	hasHeaderVersion        bool
	recordAndGroupCount     uint32
	hasRecordAndGroupCount  bool
	headerOverriddenFormIDs []uint32
}

// Plugin models a single on-disk plugin file.
//
// A Plugin is constructed with New in the Unparsed state; ParseFile
// advances it to Parsed. Parsed plugins are immutable until re-parsed;
// a failed ParseFile call leaves the Plugin in whatever state it was in
// before the call.
type Plugin struct {
	path string
	game GameId

	parsed     bool
	headerOnly bool

	// pluginName is the plugin's own filename, used as the owning name
	// for form ids whose encoded mod index doesn't resolve to a master.
	pluginName string

	header record.Record
	fields headerFields

	// formIDs is present only when the plugin was parsed without the
	// header-only option.
	formIDs []FormIDEntry
}

// New constructs an unparsed Plugin for the given game and path. It
// performs no I/O.
func New(game GameId, path string) *Plugin {
	return &Plugin{path: path, game: game}
}

// ParseOptions controls how much of a plugin ParseFileConfig reads.
//
// The blank field follows the teacher's own Config convention: it
// forces callers to use keyed struct literals, so adding a field later
// never silently shifts the meaning of existing unkeyed call sites.
type ParseOptions struct {
	// HeaderOnly, when true, parses only the top header record.
	HeaderOnly bool

	_ struct{}
}

// ParseFileConfig reads and parses the plugin file at p's path according
// to opts. It is equivalent to ParseFile(opts.HeaderOnly).
func (p *Plugin) ParseFileConfig(opts ParseOptions) error {
	return p.ParseFile(opts.HeaderOnly)
}

// Path returns the path the Plugin was constructed with.
func (p *Plugin) Path() string {
	return p.path
}

// GameId returns the game this Plugin is being interpreted as.
func (p *Plugin) GameId() GameId {
	return p.game
}

// ParseFile reads and parses the plugin file at p's path.
//
// When headerOnly is true, only the top header record is parsed:
// Masters, Description, HeaderVersion, Filename, IsMasterFile and
// IsLightMasterFile are all answerable afterwards, but
// CountOverrideRecords and OverlapsWith require a full parse.
//
// Re-parsing a Parsed plugin replaces its prior state. If parsing fails,
// the Plugin is left in its prior state.
func (p *Plugin) ParseFile(headerOnly bool) error {
	pluginName, err := filenameOf(p.path)
	if err != nil {
		return err
	}

	f, err := os.Open(p.path)
	if err != nil {
		return esperr.IO(err)
	}
	defer f.Close()

	headerRec, err := parseHeaderRecord(f, p.game)
	if err != nil {
		return err
	}

	fields, err := extractHeaderFields(headerRec)
	if err != nil {
		return err
	}

	var entries []FormIDEntry
	if !headerOnly {
		body, err := io.ReadAll(f)
		if err != nil {
			return esperr.IO(err)
		}
		entries, err = walkBody(body, p.game, fields.masters, pluginName)
		if err != nil {
			return err
		}
	}

	p.pluginName = pluginName
	p.header = headerRec
	p.fields = fields
	p.formIDs = entries
	p.parsed = true
	p.headerOnly = headerOnly
	return nil
}

// parseHeaderRecord reads and decodes the plugin's top header record
// (TES3 or TES4) from reader.
func parseHeaderRecord(reader io.Reader, game GameId) (record.Record, error) {
	headerBytes, err := record.ReadAndValidate(reader, game, game.Dialect().TopRecordType)
	if err != nil {
		return record.Record{}, err
	}
	_, rec, err := record.Parse(headerBytes, game, false)
	if err != nil {
		return record.Record{}, err
	}
	return rec, nil
}

// extractHeaderFields reads the header record's MAST, SNAM, HEDR and
// ONAM subrecords.
func extractHeaderFields(rec record.Record) (headerFields, error) {
	var f headerFields

	for _, sr := range rec.Subrecords {
		switch sr.Type {
		case "MAST":
			name, err := winenc.DecodeCString(sr.Data)
			if err != nil {
				return headerFields{}, err
			}
			f.masters = append(f.masters, name)

		case "SNAM":
			desc, err := winenc.DecodeCString(sr.Data)
			if err != nil {
				return headerFields{}, err
			}
			f.description = desc
			f.hasDescription = true

		case "HEDR":
			if len(sr.Data) >= 4 {
				f.recordAndGroupCount = binary.LittleEndian.Uint32(sr.Data[0:4])
				f.hasRecordAndGroupCount = true
			}
			if len(sr.Data) >= 8 {
				bits := binary.LittleEndian.Uint32(sr.Data[4:8])
				f.headerVersion = math.Float32frombits(bits)
				f.hasHeaderVersion = true
			}

		case "ONAM":
			for i := 0; i+4 <= len(sr.Data); i += 4 {
				f.headerOverriddenFormIDs = append(f.headerOverriddenFormIDs, binary.LittleEndian.Uint32(sr.Data[i:i+4]))
			}
		}
	}

	return f, nil
}

// groupHeaderLength is the size in bytes of a GRUP group header.
const groupHeaderLength = 24

// isNewRecordFlag is the record-level flag meaning "defined new by this
// plugin", used together with the resolved mod index to decide whether
// a top-level record is an override.
const isNewRecordFlag = 0x0000_0200

// walkBody scans the bytes following a plugin's header record, producing
// a FormIDEntry per record found.
//
// For Morrowind the body is a flat sequence of records. For later games
// it's a sequence of GRUP groups, whose bodies may themselves nest
// further groups (worldspaces, cells); every record found at any nesting
// depth is collected.
func walkBody(body []byte, game GameId, masters []string, pluginName string) ([]FormIDEntry, error) {
	var entries []FormIDEntry

	if game == gameid.Morrowind {
		for len(body) > 0 {
			rest, rec, err := record.Parse(body, game, true)
			if err != nil {
				return nil, err
			}
			entries = append(entries, newFormIDEntry(rec.Header, masters, pluginName))
			body = rest
		}
		return entries, nil
	}

	for len(body) > 0 {
		rest, headers, err := walkGroupOrRecord(body, game)
		if err != nil {
			return nil, err
		}
		for _, h := range headers {
			entries = append(entries, newFormIDEntry(h, masters, pluginName))
		}
		body = rest
	}
	return entries, nil
}

// walkGroupOrRecord decodes one top-level item from data: either a GRUP
// group (recursing into its body and flattening every record header it
// contains), or a single record.
func walkGroupOrRecord(data []byte, game GameId) (rest []byte, headers []record.Header, err error) {
	if len(data) < 4 {
		return nil, nil, esperr.Incomplete()
	}

	if string(data[:4]) != "GRUP" {
		tail, rec, err := record.Parse(data, game, true)
		if err != nil {
			return nil, nil, err
		}
		return tail, []record.Header{rec.Header}, nil
	}

	if len(data) < groupHeaderLength {
		return nil, nil, esperr.Incomplete()
	}
	groupSize := binary.LittleEndian.Uint32(data[4:8])
	if groupSize < groupHeaderLength || uint32(len(data)) < groupSize {
		return nil, nil, esperr.Incomplete()
	}

	groupBody := data[groupHeaderLength:groupSize]
	rest = data[groupSize:]

	var collected []record.Header
	for len(groupBody) > 0 {
		bodyRest, hs, err := walkGroupOrRecord(groupBody, game)
		if err != nil {
			return nil, nil, err
		}
		collected = append(collected, hs...)
		groupBody = bodyRest
	}

	return rest, collected, nil
}

// newFormIDEntry resolves a record's header into a FormIDEntry.
func newFormIDEntry(h record.Header, masters []string, pluginName string) FormIDEntry {
	modIndex := h.FormID >> 24
	isOverride := !h.IsNew() && int(modIndex) < len(masters)
	return FormIDEntry{
		FormID:     formid.New(pluginName, masters, h.FormID),
		IsOverride: isOverride,
	}
}

// filenameOf returns the final component of path.
func filenameOf(path string) (string, error) {
	base := filepath.Base(path)
	if base == "." || base == string(filepath.Separator) || base == "" {
		return "", esperr.NoFilename()
	}
	return base, nil
}

// extensionFoldEquals reports whether path's extension case-insensitively
// equals ext (without a leading dot).
func extensionFoldEquals(path, ext string) bool {
	got := strings.TrimPrefix(filepath.Ext(path), ".")
	return strings.EqualFold(got, ext)
}

// Masters returns the plugin's master list in on-wire order.
func (p *Plugin) Masters() []string {
	return append([]string(nil), p.fields.masters...)
}

// Description returns the plugin's SNAM description, if present.
func (p *Plugin) Description() (string, bool) {
	return p.fields.description, p.fields.hasDescription
}

// HeaderVersion returns the plugin's HEDR version field, if present.
func (p *Plugin) HeaderVersion() (float32, bool) {
	return p.fields.headerVersion, p.fields.hasHeaderVersion
}

// RecordAndGroupCount returns the plugin's HEDR record-and-group count,
// if present.
func (p *Plugin) RecordAndGroupCount() (uint32, bool) {
	return p.fields.recordAndGroupCount, p.fields.hasRecordAndGroupCount
}

// HeaderOverriddenFormIDs returns the form ids packed into the header's
// ONAM subrecord, if any. Some master files use this to list the form
// ids they themselves override.
func (p *Plugin) HeaderOverriddenFormIDs() []uint32 {
	return append([]uint32(nil), p.fields.headerOverriddenFormIDs...)
}

// Filename returns the final component of the plugin's path.
func (p *Plugin) Filename() (string, error) {
	return filenameOf(p.path)
}

// IsEmpty reports whether the plugin's record-and-group count is unknown
// or zero.
func (p *Plugin) IsEmpty() bool {
	count, _ := p.RecordAndGroupCount()
	return count == 0
}

// IsMasterFile reports whether the plugin is flagged (or named) as a
// master file.
//
// For Morrowind this is purely extension based (".esm"). For later
// games it's true if the header flags carry the master bit, the
// extension is ".esm", or the plugin is a light master (light masters
// are always also masters).
func (p *Plugin) IsMasterFile() bool {
	if p.game == gameid.Morrowind {
		return extensionFoldEquals(p.path, "esm")
	}
	const masterFlag = 0x0000_0001
	return p.header.Header.Flags&masterFlag != 0 ||
		extensionFoldEquals(p.path, "esm") ||
		p.IsLightMasterFile()
}

// IsLightMasterFile reports whether the plugin is a light master: the
// dialect must support light masters, and either the extension is
// ".esl" or the header's light-master flag is set.
func (p *Plugin) IsLightMasterFile() bool {
	const lightMasterFlag = 0x0000_0200
	d := p.game.Dialect()
	if !d.SupportsLightMaster {
		return false
	}
	return extensionFoldEquals(p.path, "esl") || p.header.Header.Flags&lightMasterFlag != 0
}

// CountOverrideRecords counts the plugin's records (at any group nesting
// depth) that override one of its masters' records.
func (p *Plugin) CountOverrideRecords() int {
	count := 0
	for _, e := range p.formIDs {
		if e.IsOverride {
			count++
		}
	}
	return count
}

// formIDsSorted returns a sorted copy of the plugin's resolved form ids.
func (p *Plugin) formIDsSorted() []formid.FormID {
	ids := make([]formid.FormID, len(p.formIDs))
	for i, e := range p.formIDs {
		ids[i] = e.FormID
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })
	return ids
}

// OverlapsWith reports whether p and other share any resolved FormID,
// comparing plugin names case insensitively. Runs in
// O((n+m) log(n+m)) time by sorting both form id lists once and merging.
func (p *Plugin) OverlapsWith(other *Plugin) bool {
	a := p.formIDsSorted()
	b := other.formIDsSorted()

	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i].Equal(b[j]):
			return true
		case a[i].Less(b[j]):
			i++
		default:
			j++
		}
	}
	return false
}

// IsValidAsLightMaster reports whether every record the plugin itself
// defines (as opposed to records inherited unchanged from a master) has
// an object index inside the dialect's light master range.
func (p *Plugin) IsValidAsLightMaster() bool {
	d := p.game.Dialect()
	if !d.SupportsLightMaster {
		return false
	}
	for _, e := range p.formIDs {
		if strings.EqualFold(e.FormID.PluginName, p.pluginName) {
			if !d.LightMasterFormIDRange.Contains(e.FormID.ObjectIndex) {
				return false
			}
		}
	}
	return true
}

// FormIDs returns the resolved form ids of the plugin's records, at any
// group nesting depth.
// Present only after a full (non-header-only) parse.
func (p *Plugin) FormIDs() []FormIDEntry {
	return append([]FormIDEntry(nil), p.formIDs...)
}
