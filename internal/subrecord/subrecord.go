/*

Package subrecord implements decoding a single subrecord frame: the type
tag, size field (2, 4, or "XXXX"-escaped bytes depending on dialect) and
payload that make up one field inside a record.

*/
package subrecord

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"io"

	"github.com/icza/espm/esperr"
	"github.com/icza/espm/gameid"
)

// typeLength is the size in bytes of a subrecord's type tag.
const typeLength = 4

// Subrecord is one decoded (type, data, compressed) frame.
type Subrecord struct {
	// Type is the 4 ASCII byte tag, e.g. "HEDR", "MAST", "XXXX".
	Type string

	// Data is the subrecord's raw payload. For a compressed record, this
	// is still the as-yet-undecompressed bytes; call DecompressData to
	// inflate it.
	Data []byte

	// Compressed mirrors the parent record's compression flag. It is
	// per-record, not per-subrecord: every non-"XXXX" child inherits it.
	Compressed bool
}

// Parse decodes one subrecord from the front of data, returning the
// unconsumed remainder.
//
// carryLargeSize is the 4-byte override carried from a preceding "XXXX"
// subrecord (0 if there was none); when non-zero it replaces the on-wire
// 2-byte size field for this subrecord, which is still present and
// consumed but otherwise ignored.
func Parse(data []byte, game gameid.GameId, carryLargeSize uint32, compressed bool) (rest []byte, sr Subrecord, err error) {
	if len(data) < typeLength {
		return nil, Subrecord{}, esperr.Incomplete()
	}
	typ := string(data[:typeLength])
	data = data[typeLength:]

	var length uint32
	switch {
	case game == gameid.Morrowind:
		if len(data) < 4 {
			return nil, Subrecord{}, esperr.Incomplete()
		}
		length = binary.LittleEndian.Uint32(data)
		data = data[4:]

	case carryLargeSize > 0:
		if len(data) < 2 {
			return nil, Subrecord{}, esperr.Incomplete()
		}
		// The on-wire 2-byte size field is superseded by the carried
		// override, but it's still present on the wire and must be
		// consumed.
		data = data[2:]
		length = carryLargeSize

	default:
		if len(data) < 2 {
			return nil, Subrecord{}, esperr.Incomplete()
		}
		length = uint32(binary.LittleEndian.Uint16(data))
		data = data[2:]
	}

	if uint32(len(data)) < length {
		return nil, Subrecord{}, esperr.Incomplete()
	}

	payload := data[:length]
	rest = data[length:]

	return rest, Subrecord{Type: typ, Data: payload, Compressed: compressed}, nil
}

// DecompressData inflates a compressed subrecord's payload.
//
// The first 4 bytes of Data are the expected uncompressed length; the
// remainder is a zlib stream. The decompressed length must match the
// declared length exactly, or a DecodeError is returned.
func (sr Subrecord) DecompressData() ([]byte, error) {
	if !sr.Compressed {
		return sr.Data, nil
	}
	if len(sr.Data) < 4 {
		return nil, esperr.Incomplete()
	}

	expectedLen := binary.LittleEndian.Uint32(sr.Data[:4])

	zr, err := zlib.NewReader(bytes.NewReader(sr.Data[4:]))
	if err != nil {
		return nil, esperr.Decode("failed to open compressed subrecord stream")
	}
	defer zr.Close()

	decompressed, err := io.ReadAll(zr)
	if err != nil {
		return nil, esperr.Decode("failed to inflate compressed subrecord data")
	}

	if uint32(len(decompressed)) != expectedLen {
		return nil, esperr.Decode("decompressed length did not match declared length")
	}

	return decompressed, nil
}
