package csvgeo

import (
	"errors"
	"fmt"
	"strings"
)

type Kind int

const (
	KindMissingFile Kind = iota + 1
	KindEmptyFile
	KindUnknownEncoding
	KindInvalidDialect
	KindAmbiguousDelimiter
	KindUnknownColumn
	KindEncodingMismatch
	KindQueryTooLarge
)

var kindNames = map[Kind]string{
	KindMissingFile:        "missing_file",
	KindEmptyFile:          "empty_file",
	KindUnknownEncoding:    "unknown_encoding",
	KindInvalidDialect:     "invalid_dialect",
	KindAmbiguousDelimiter: "ambiguous_delimiter",
	KindUnknownColumn:      "unknown_column",
	KindEncodingMismatch:   "encoding_mismatch",
	KindQueryTooLarge:      "query_too_large",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Error is a client-facing failure that aborts the whole batch.
type Error struct {
	Kind Kind
	Msg  string
	// 1-based data row index, set for row-scoped failures
	Row int
	Err error
}

func (e *Error) Error() string { return e.Msg }

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Msg == ""
}

// sentinels for errors.Is
var (
	ErrMissingFile        = &Error{Kind: KindMissingFile}
	ErrEmptyFile          = &Error{Kind: KindEmptyFile}
	ErrUnknownEncoding    = &Error{Kind: KindUnknownEncoding}
	ErrInvalidDialect     = &Error{Kind: KindInvalidDialect}
	ErrAmbiguousDelimiter = &Error{Kind: KindAmbiguousDelimiter}
	ErrUnknownColumn      = &Error{Kind: KindUnknownColumn}
	ErrEncodingMismatch   = &Error{Kind: KindEncodingMismatch}
	ErrQueryTooLarge      = &Error{Kind: KindQueryTooLarge}
)

const missingDelimiterMsg = `Unable to detect delimiter, please add one with "delimiter" parameter.`

func missingFile() error { return &Error{Kind: KindMissingFile, Msg: "Missing file"} }

func emptyFile() error { return &Error{Kind: KindEmptyFile, Msg: "Empty file"} }

func unknownEncoding(name string, cause error) error {
	return &Error{Kind: KindUnknownEncoding, Msg: fmt.Sprintf("Unknown encoding %s", name), Err: cause}
}

func invalidDialect(param, value string) error {
	return &Error{
		Kind: KindInvalidDialect,
		Msg:  fmt.Sprintf("%s must be a single character, got %q", param, value),
	}
}

func ambiguousDelimiter() error {
	return &Error{Kind: KindAmbiguousDelimiter, Msg: missingDelimiterMsg}
}

func unknownColumn(column string, header []string) error {
	quoted := make([]string, len(header))
	for i, h := range header {
		quoted[i] = "'" + h + "'"
	}
	return &Error{
		Kind: KindUnknownColumn,
		Msg:  fmt.Sprintf("Cannot find column '%s' in columns [%s]", column, strings.Join(quoted, ", ")),
	}
}

func encodingMismatch(cause error) error {
	return &Error{Kind: KindEncodingMismatch, Msg: "Wrong encoding", Err: cause}
}

func queryTooLarge(row, length, limit int, cause error) error {
	return &Error{
		Kind: KindQueryTooLarge,
		Msg:  fmt.Sprintf("Query too long, %d chars, limit is %d (row number %d)", length, limit, row),
		Row:  row,
		Err:  cause,
	}
}

// KindOf reports the Kind of err, or 0 when err is not a pipeline Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
