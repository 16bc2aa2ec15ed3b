package espm

import "github.com/icza/espm/esperr"

// Error is the error type returned throughout this module. It is an
// alias of esperr.Error so callers of espm never need to import the
// esperr package directly.
type Error = esperr.Error

// ErrorKind re-exports esperr.Kind.
type ErrorKind = esperr.Kind

// Error kind values.
const (
	KindIO                = esperr.KindIO
	KindNoFilename        = esperr.KindNoFilename
	KindParsingIncomplete = esperr.KindParsingIncomplete
	KindParsingError      = esperr.KindParsingError
	KindDecodeError       = esperr.KindDecodeError
	KindUnknownGameID     = esperr.KindUnknownGameID
)
