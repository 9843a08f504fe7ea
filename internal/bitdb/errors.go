package bitdb

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes database errors.
type ErrorCode string

const (
	// CodeNotFound indicates a name absent from a collection, or a
	// backing file absent from the database root.
	CodeNotFound ErrorCode = "NOT_FOUND"

	// CodeParse indicates malformed database text.
	CodeParse ErrorCode = "PARSE_ERROR"

	// CodeInconsistentTile indicates a mux or enum where more than one
	// option matches the tile at once. This is never resolved silently:
	// it means either a corrupted tile or a database bug, exactly the
	// kind of defect fuzzing exists to catch.
	CodeInconsistentTile ErrorCode = "INCONSISTENT_TILE"

	// CodeShapeMismatch indicates a word write whose value length does
	// not equal the word's bit count.
	CodeShapeMismatch ErrorCode = "SHAPE_MISMATCH"

	// CodeUnknownSetting indicates a tile config entry naming a mux,
	// word, or enum the database does not contain.
	CodeUnknownSetting ErrorCode = "UNKNOWN_SETTING"

	// CodeMergeConflict indicates a mutation that redefines an existing
	// arc or option with a different bit group. Fuzzing discovers bits
	// incrementally; it must never contradict prior findings.
	CodeMergeConflict ErrorCode = "MERGE_CONFLICT"
)

// Error is a structured database error with identifying context.
//
// File and Line are set on parse errors; Entry names the mux, word, or
// enum involved; Detail carries the rest (driver names, coordinates).
type Error struct {
	Code   ErrorCode
	Entry  string
	File   string
	Line   int
	Detail string
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := string(e.Code)
	if e.Entry != "" {
		msg += fmt.Sprintf(": %s", e.Entry)
	}
	if e.Detail != "" {
		msg += fmt.Sprintf(": %s", e.Detail)
	}
	if e.File != "" {
		msg += fmt.Sprintf(" (%s:%d)", e.File, e.Line)
	}
	return msg
}

// codeIs reports whether err is or wraps an *Error with the given code.
func codeIs(err error, code ErrorCode) bool {
	var dbErr *Error
	if errors.As(err, &dbErr) {
		return dbErr.Code == code
	}
	return false
}

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool { return codeIs(err, CodeNotFound) }

// IsParseError reports whether err is a parse error.
func IsParseError(err error) bool { return codeIs(err, CodeParse) }

// IsInconsistentTile reports whether err is an inconsistent-tile error.
func IsInconsistentTile(err error) bool { return codeIs(err, CodeInconsistentTile) }

// IsShapeMismatch reports whether err is a shape-mismatch error.
func IsShapeMismatch(err error) bool { return codeIs(err, CodeShapeMismatch) }

// IsUnknownSetting reports whether err is an unknown-setting error.
func IsUnknownSetting(err error) bool { return codeIs(err, CodeUnknownSetting) }

// IsMergeConflict reports whether err is a merge-conflict error.
func IsMergeConflict(err error) bool { return codeIs(err, CodeMergeConflict) }

func notFoundError(entry, detail string) *Error {
	return &Error{Code: CodeNotFound, Entry: entry, Detail: detail}
}

func parseError(file string, line int, detail string) *Error {
	return &Error{Code: CodeParse, File: file, Line: line, Detail: detail}
}

func inconsistentError(entry, detail string) *Error {
	return &Error{Code: CodeInconsistentTile, Entry: entry, Detail: detail}
}
