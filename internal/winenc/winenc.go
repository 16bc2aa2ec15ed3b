/*

Package winenc decodes the Windows-1252 encoded, NUL-terminated strings
that plugin subrecords carry (master filenames, descriptions, player and
entity names) into UTF-8.

*/
package winenc

import (
	"bytes"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"github.com/icza/espm/esperr"
)

// DecodeCString decodes data as a NUL-terminated Windows-1252 string.
// The terminating NUL (and anything after it) is not included in the
// result. Bytes that have no mapping in Windows-1252 cause a
// *esperr.Error with Kind esperr.KindDecodeError.
func DecodeCString(data []byte) (string, error) {
	if i := bytes.IndexByte(data, 0); i >= 0 {
		data = data[:i]
	}
	return Decode(data)
}

// Decode decodes data as Windows-1252 text, with no NUL handling.
func Decode(data []byte) (string, error) {
	// charmap.Windows1252 decodes the handful of bytes with no assigned
	// Windows-1252 meaning (0x81, 0x8D, 0x8F, 0x90, 0x9D) to C1 control
	// characters instead of failing, so they are rejected here first.
	for _, b := range data {
		switch b {
		case 0x81, 0x8D, 0x8F, 0x90, 0x9D:
			return "", esperr.Decode("undefined Windows-1252 code point")
		}
	}
	decoded, _, err := transform.Bytes(charmap.Windows1252.NewDecoder(), data)
	if err != nil {
		return "", esperr.Decode("windows-1252 decoding failed")
	}
	// Any replacement character the decoder did produce is rejected too.
	if bytes.ContainsRune(decoded, utf8.RuneError) {
		return "", esperr.Decode("undefined Windows-1252 code point")
	}
	return string(decoded), nil
}
