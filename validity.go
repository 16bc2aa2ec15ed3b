package espm

import (
	"os"
)

// IsValid is a cheap probe for "could path be a plugin for game?".
//
// It is equivalent to constructing a Plugin and calling ParseFile, but
// never returns an error: any failure (I/O, wrong top record type,
// truncated input, undecodable strings) simply yields false.
//
// When headerOnly is true, IsValid reads at most the top header record
// (header_length(game) + its subrecord span) — it never reads the rest
// of the file. New(game, path).ParseFile(true) succeeding is
// exactly equivalent to IsValid(game, path, true) returning true.
func IsValid(game GameId, path string, headerOnly bool) bool {
	if headerOnly {
		return isValidHeaderOnly(game, path)
	}

	p := New(game, path)
	return p.ParseFile(false) == nil
}

// isValidHeaderOnly performs the same work ParseFile(true) would, without
// constructing a Plugin or reading beyond the header record.
func isValidHeaderOnly(game GameId, path string) bool {
	if _, err := filenameOf(path); err != nil {
		return false
	}

	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	headerRec, err := parseHeaderRecord(f, game)
	if err != nil {
		return false
	}

	_, err = extractHeaderFields(headerRec)
	return err == nil
}
