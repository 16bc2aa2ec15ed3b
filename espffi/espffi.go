/*

Package espffi is a thin, C-ABI-shaped boundary over package espm, playing
the role the Rust esplugin crate gives its ffi crate: opaque handles
instead of Go pointers, a small closed set of stable integer error codes
instead of Go errors, and a panic-to-error-code conversion at every call
so an internal bug can never unwind across the boundary.

This package has no cgo build tags of its own; it's the Go-native shape
of that boundary, meant to be the single place a cgo wrapper (or any
other non-Go caller) would bind against.

*/
package espffi

import (
	"log"
	"sync"

	"github.com/icza/espm"
)

// Stable error codes returned alongside every call's result.
const (
	OK uint32 = iota
	ErrNullInput
	ErrNotUTF8
	ErrUnknownGameID
	ErrParseError
	ErrPanicked
)

// Handle is an opaque reference to a Plugin owned by this package.
type Handle uint64

var (
	mu         sync.Mutex
	plugins    = map[Handle]*espm.Plugin{}
	nextHandle Handle = 1
)

// withRecover runs fn, converting any panic into the ErrPanicked code
// instead of letting it unwind across the boundary.
func withRecover[T any](fn func() (T, uint32)) (result T, code uint32) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("espffi: recovered panic: %v", r)
			var zero T
			result = zero
			code = ErrPanicked
		}
	}()
	return fn()
}

func lookup(h Handle) *espm.Plugin {
	mu.Lock()
	defer mu.Unlock()
	return plugins[h]
}

// New constructs a Plugin for the given game and path, returning a
// Handle to it.
func New(gameID uint32, path string) (Handle, uint32) {
	return withRecover(func() (Handle, uint32) {
		if path == "" {
			return 0, ErrNullInput
		}
		g, err := espm.MapGameID(gameID)
		if err != nil {
			return 0, ErrUnknownGameID
		}

		p := espm.New(g, path)

		mu.Lock()
		h := nextHandle
		nextHandle++
		plugins[h] = p
		mu.Unlock()

		return h, OK
	})
}

// Free releases the Plugin referenced by h. Unlike the Rust crate's
// esp_plugin_free, this does not deallocate memory directly (Go's
// garbage collector owns that); it only drops this package's reference
// so the Plugin becomes collectible and h becomes invalid.
func Free(h Handle) {
	mu.Lock()
	defer mu.Unlock()
	delete(plugins, h)
}

// Parse parses the plugin referenced by h.
func Parse(h Handle, headerOnly bool) uint32 {
	_, code := withRecover(func() (struct{}, uint32) {
		p := lookup(h)
		if p == nil {
			return struct{}{}, ErrNullInput
		}
		if err := p.ParseFile(headerOnly); err != nil {
			return struct{}{}, ErrParseError
		}
		return struct{}{}, OK
	})
	return code
}

// Filename returns the plugin's filename.
func Filename(h Handle) (string, uint32) {
	return withRecover(func() (string, uint32) {
		p := lookup(h)
		if p == nil {
			return "", ErrNullInput
		}
		name, err := p.Filename()
		if err != nil {
			return "", ErrParseError
		}
		return name, OK
	})
}

// Masters returns the plugin's master list.
func Masters(h Handle) ([]string, uint32) {
	return withRecover(func() ([]string, uint32) {
		p := lookup(h)
		if p == nil {
			return nil, ErrNullInput
		}
		return p.Masters(), OK
	})
}

// IsMaster reports whether the plugin is a master file.
func IsMaster(h Handle) (bool, uint32) {
	return withRecover(func() (bool, uint32) {
		p := lookup(h)
		if p == nil {
			return false, ErrNullInput
		}
		return p.IsMasterFile(), OK
	})
}

// IsLightMaster reports whether the plugin is a light master file.
func IsLightMaster(h Handle) (bool, uint32) {
	return withRecover(func() (bool, uint32) {
		p := lookup(h)
		if p == nil {
			return false, ErrNullInput
		}
		return p.IsLightMasterFile(), OK
	})
}

// IsValid probes whether path could be a plugin for gameID without
// retaining any state.
func IsValid(gameID uint32, path string, headerOnly bool) (bool, uint32) {
	return withRecover(func() (bool, uint32) {
		g, err := espm.MapGameID(gameID)
		if err != nil {
			return false, ErrUnknownGameID
		}
		return espm.IsValid(g, path, headerOnly), OK
	})
}

// descResult lets Description return a (value, present) pair through the
// generic withRecover helper, which only carries one result value.
type descResult struct {
	value   string
	present bool
}

// Description returns the plugin's description and whether one is
// present.
func Description(h Handle) (string, bool, uint32) {
	res, code := withRecover(func() (descResult, uint32) {
		p := lookup(h)
		if p == nil {
			return descResult{}, ErrNullInput
		}
		v, ok := p.Description()
		return descResult{value: v, present: ok}, OK
	})
	return res.value, res.present, code
}

// headerVersionResult is Description's counterpart for HeaderVersion.
type headerVersionResult struct {
	value   float32
	present bool
}

// HeaderVersion returns the plugin's header version and whether one is
// present.
func HeaderVersion(h Handle) (float32, bool, uint32) {
	res, code := withRecover(func() (headerVersionResult, uint32) {
		p := lookup(h)
		if p == nil {
			return headerVersionResult{}, ErrNullInput
		}
		v, ok := p.HeaderVersion()
		return headerVersionResult{value: v, present: ok}, OK
	})
	return res.value, res.present, code
}

// IsEmpty reports whether the plugin's record-and-group count is
// unknown or zero.
func IsEmpty(h Handle) (bool, uint32) {
	return withRecover(func() (bool, uint32) {
		p := lookup(h)
		if p == nil {
			return false, ErrNullInput
		}
		return p.IsEmpty(), OK
	})
}

// CountOverrideRecords counts the plugin's override records.
func CountOverrideRecords(h Handle) (int, uint32) {
	return withRecover(func() (int, uint32) {
		p := lookup(h)
		if p == nil {
			return 0, ErrNullInput
		}
		return p.CountOverrideRecords(), OK
	})
}

// DoRecordsOverlap reports whether the two plugins share any record.
func DoRecordsOverlap(h1, h2 Handle) (bool, uint32) {
	return withRecover(func() (bool, uint32) {
		p1, p2 := lookup(h1), lookup(h2)
		if p1 == nil || p2 == nil {
			return false, ErrNullInput
		}
		return p1.OverlapsWith(p2), OK
	})
}

// IsValidAsLightMaster reports whether the plugin satisfies the light
// master object-index constraints.
func IsValidAsLightMaster(h Handle) (bool, uint32) {
	return withRecover(func() (bool, uint32) {
		p := lookup(h)
		if p == nil {
			return false, ErrNullInput
		}
		return p.IsValidAsLightMaster(), OK
	})
}
