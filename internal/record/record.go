/*

Package record implements decoding a single record: its fixed-layout
header (type, flags, form id, size of subrecords) followed by its
subrecord span.

*/
package record

import (
	"encoding/binary"
	"io"

	"github.com/icza/espm/esperr"
	"github.com/icza/espm/gameid"
	"github.com/icza/espm/internal/subrecord"
)

// recordTypeLength is the size in bytes of a record's type tag.
const recordTypeLength = 4

// isNewFlag is the record-level flag bit that marks a record as newly
// defined by the plugin containing it, rather than an override of a
// master's record, in TES4-dialect games.
const isNewFlag = 0x0000_0200

// compressedFlag marks a record's subrecords as zlib-compressed.
const compressedFlag = 0x0004_0000

// Header is a record's fixed-layout header.
type Header struct {
	RecordType       string
	Flags            uint32
	FormID           uint32
	SizeOfSubrecords uint32
}

// SubrecordsCompressed tells if the record's compression flag is set.
// Parse ignores the flag for Morrowind records, since that game has no
// compression support.
func (h Header) SubrecordsCompressed() bool {
	return h.Flags&compressedFlag != 0
}

// IsNew tells if the record's "is new" flag is set, meaning it's not an
// override of a master's record (TES4-dialect games only).
func (h Header) IsNew() bool {
	return h.Flags&isNewFlag != 0
}

// Record is a header plus its decoded subrecords. Subrecords is empty
// when the record was parsed in skip-subrecords mode.
type Record struct {
	Header     Header
	Subrecords []subrecord.Subrecord
}

// ReadAndValidate reads header_length(game) bytes plus the record's
// subrecord span from reader, checking that the record's type tag
// matches expectedType. It does not decode the subrecords; the returned
// bytes are suitable input to Parse.
func ReadAndValidate(reader io.Reader, game gameid.GameId, expectedType string) ([]byte, error) {
	headerLen := game.Dialect().HeaderLength

	content := make([]byte, headerLen)
	if _, err := io.ReadFull(reader, content); err != nil {
		return nil, esperr.IO(err)
	}

	if string(content[:recordTypeLength]) != expectedType {
		return nil, esperr.Parsing("record is not of expected type")
	}

	sizeOfSubrecords := binary.LittleEndian.Uint32(content[4:8])
	if sizeOfSubrecords > 0 {
		tail := make([]byte, sizeOfSubrecords)
		if _, err := io.ReadFull(reader, tail); err != nil {
			return nil, esperr.IO(err)
		}
		content = append(content, tail...)
	}

	return content, nil
}

// parseHeader decodes a record header per the dialect's field layout,
// returning the header and the bytes following it (the subrecord span
// plus whatever comes after the record in the stream).
func parseHeader(data []byte, game gameid.GameId) (Header, []byte, error) {
	d := game.Dialect()
	if len(data) < d.HeaderLength {
		return Header{}, nil, esperr.Incomplete()
	}

	recordType := string(data[:4])
	sizeOfSubrecords := binary.LittleEndian.Uint32(data[4:8])

	var flags, formID uint32
	switch game {
	case gameid.Morrowind:
		// type(4) size(4) skip(4) flags(4)
		flags = binary.LittleEndian.Uint32(data[12:16])
	case gameid.Oblivion:
		// type(4) size(4) flags(4) form_id(4) skip(4)
		flags = binary.LittleEndian.Uint32(data[8:12])
		formID = binary.LittleEndian.Uint32(data[12:16])
	default:
		// type(4) size(4) flags(4) form_id(4) skip(4) skip(4)
		flags = binary.LittleEndian.Uint32(data[8:12])
		formID = binary.LittleEndian.Uint32(data[12:16])
	}

	header := Header{
		RecordType:       recordType,
		Flags:            flags,
		FormID:           formID,
		SizeOfSubrecords: sizeOfSubrecords,
	}
	return header, data[d.HeaderLength:], nil
}

// Parse decodes one record from the front of data: its header, then its
// subrecord span. If skipSubrecords is true, the span is skipped
// wholesale and the returned Record has no Subrecords; otherwise the span
// is decoded into Subrecords, threading the "XXXX" large-size carry
// across subrecords.
func Parse(data []byte, game gameid.GameId, skipSubrecords bool) (rest []byte, rec Record, err error) {
	header, afterHeader, err := parseHeader(data, game)
	if err != nil {
		return nil, Record{}, err
	}

	if uint32(len(afterHeader)) < header.SizeOfSubrecords {
		return nil, Record{}, esperr.Incomplete()
	}
	span := afterHeader[:header.SizeOfSubrecords]
	rest = afterHeader[header.SizeOfSubrecords:]

	if skipSubrecords {
		return rest, Record{Header: header}, nil
	}

	compressed := game != gameid.Morrowind && header.SubrecordsCompressed()
	subrecords, err := parseSubrecords(span, game, compressed)
	if err != nil {
		return nil, Record{}, err
	}
	return rest, Record{Header: header, Subrecords: subrecords}, nil
}

// parseSubrecords decodes every subrecord in span, dropping "XXXX" large
// size escapes from the result after threading their value as the carry
// for the following subrecord.
func parseSubrecords(span []byte, game gameid.GameId, compressed bool) ([]subrecord.Subrecord, error) {
	var result []subrecord.Subrecord
	var carry uint32

	for len(span) > 0 {
		rest, sr, err := subrecord.Parse(span, game, carry, compressed)
		if err != nil {
			return nil, err
		}

		if sr.Type == "XXXX" {
			if len(sr.Data) < 4 {
				return nil, esperr.Parsing("XXXX subrecord payload too short")
			}
			carry = binary.LittleEndian.Uint32(sr.Data)
		} else {
			carry = 0
			result = append(result, sr)
		}

		span = rest
	}

	return result, nil
}

// ParseFormID is a dialect-aware fast path that advances over a record's
// header fields to recover just its form id, without decoding its
// subrecords. It returns the bytes following the record's subrecord span.
func ParseFormID(data []byte, game gameid.GameId) (rest []byte, formID uint32, err error) {
	header, afterHeader, err := parseHeader(data, game)
	if err != nil {
		return nil, 0, err
	}
	if uint32(len(afterHeader)) < header.SizeOfSubrecords {
		return nil, 0, esperr.Incomplete()
	}
	return afterHeader[header.SizeOfSubrecords:], header.FormID, nil
}
