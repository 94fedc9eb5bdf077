package csvgeo

import (
	"io"
	"strings"
	"unicode/utf8"
)

// Row maps column names to values, keeping header order.
type Row struct {
	keys   []string
	values map[string]string
}

// NewRow pairs header names with fields. Missing trailing cells map to ""
// and cells beyond the header are dropped. A repeated header name keeps its
// first position and its last value.
func NewRow(header, fields []string) *Row {
	r := &Row{
		keys:   make([]string, 0, len(header)),
		values: make(map[string]string, len(header)),
	}
	for i, k := range header {
		v := ""
		if i < len(fields) {
			v = fields[i]
		}
		r.Set(k, v)
	}
	return r
}

func (r *Row) Get(key string) (string, bool) {
	v, ok := r.values[key]
	return v, ok
}

// Value returns the value at key or "" when absent.
func (r *Row) Value(key string) string { return r.values[key] }

func (r *Row) Set(key, value string) {
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = value
}

func (r *Row) Keys() []string { return append([]string(nil), r.keys...) }

func (r *Row) Len() int { return len(r.keys) }

// Reader yields the data rows of normalized CSV text in a single pass.
type Reader struct {
	sc     scanner
	header []string
}

// NewReader consumes the header record. Text without any record is empty.
func NewReader(content string, d Dialect) (*Reader, error) {
	r := &Reader{sc: newScanner(content, d.Delimiter, d.Quote)}
	for {
		rec, ok := r.sc.next()
		if !ok {
			return nil, emptyFile()
		}
		if len(rec) == 0 {
			continue
		}
		r.header = rec
		return r, nil
	}
}

func (r *Reader) Header() []string { return append([]string(nil), r.header...) }

// Next returns the next data row, or io.EOF. Blank lines are skipped.
func (r *Reader) Next() (*Row, error) {
	for {
		rec, ok := r.sc.next()
		if !ok {
			return nil, io.EOF
		}
		if len(rec) == 0 {
			continue
		}
		return NewRow(r.header, rec), nil
	}
}

type scanState int

const (
	startField scanState = iota
	inField
	inQuoted
	quoteInQuoted
)

// scanner tokenizes delimited records. A quote only opens a quoted field at
// the start of a field; inside it a doubled quote is a literal quote and line
// breaks are kept. Text after a closing quote is appended verbatim.
type scanner struct {
	s     string
	pos   int
	delim rune
	quote rune
}

func newScanner(s string, delim, quote rune) scanner {
	return scanner{s: s, delim: delim, quote: quote}
}

// next returns the following record. An empty line yields a nil record.
// ok is false at end of input.
func (sc *scanner) next() (rec []string, ok bool) {
	if sc.pos >= len(sc.s) {
		return nil, false
	}
	var (
		field strings.Builder
		state = startField
		seen  bool
	)
	emit := func() {
		rec = append(rec, field.String())
		field.Reset()
	}
	for sc.pos < len(sc.s) {
		c, size := utf8.DecodeRuneInString(sc.s[sc.pos:])
		sc.pos += size

		if c == '\r' || c == '\n' {
			if state == inQuoted {
				field.WriteRune(c)
				continue
			}
			if c == '\r' && sc.pos < len(sc.s) && sc.s[sc.pos] == '\n' {
				sc.pos++
			}
			if seen {
				emit()
			}
			return rec, true
		}
		seen = true

		switch state {
		case startField:
			switch c {
			case sc.quote:
				state = inQuoted
			case sc.delim:
				emit()
			default:
				field.WriteRune(c)
				state = inField
			}
		case inField:
			if c == sc.delim {
				emit()
				state = startField
			} else {
				field.WriteRune(c)
			}
		case inQuoted:
			if c == sc.quote {
				state = quoteInQuoted
			} else {
				field.WriteRune(c)
			}
		case quoteInQuoted:
			switch c {
			case sc.quote:
				field.WriteRune(c)
				state = inQuoted
			case sc.delim:
				emit()
				state = startField
			default:
				field.WriteRune(c)
				state = inField
			}
		}
	}
	// end of input, an unterminated quoted field ends here
	if seen {
		emit()
	}
	return rec, true
}
