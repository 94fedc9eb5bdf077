package csvgeo

import (
	"strings"
)

// Writer serializes rows in a fixed column order using a dialect.
type Writer struct {
	buf    *strings.Builder
	d      Dialect
	fields []string
	quote  string
	rows   int
}

// NewWriter writes an optional byte-order mark and the header record.
func NewWriter(buf *strings.Builder, d Dialect, fieldnames []string, withBOM bool) *Writer {
	w := &Writer{
		buf:    buf,
		d:      d,
		fields: append([]string(nil), fieldnames...),
		quote:  string(d.Quote),
	}
	if withBOM {
		buf.WriteString(bom)
	}
	w.writeRecord(w.fields)
	return w
}

// Write emits the declared fieldnames of r, ignoring any other key.
func (w *Writer) Write(r *Row) {
	rec := make([]string, len(w.fields))
	for i, f := range w.fields {
		rec[i] = r.Value(f)
	}
	w.writeRecord(rec)
	w.rows++
}

// Rows is the number of data rows written so far.
func (w *Writer) Rows() int { return w.rows }

func (w *Writer) writeRecord(rec []string) {
	for i, field := range rec {
		if i > 0 {
			w.buf.WriteRune(w.d.Delimiter)
		}
		// a lone empty field is quoted so the record does not read back as a blank line
		if w.d.QuoteAll || w.needsQuotes(field) || (len(rec) == 1 && field == "") {
			w.buf.WriteString(w.quote)
			w.buf.WriteString(strings.ReplaceAll(field, w.quote, w.quote+w.quote))
			w.buf.WriteString(w.quote)
			continue
		}
		w.buf.WriteString(field)
	}
	w.buf.WriteString(w.d.LineTerminator)
}

func (w *Writer) needsQuotes(field string) bool {
	return strings.ContainsRune(field, w.d.Delimiter) ||
		strings.ContainsRune(field, w.d.Quote) ||
		strings.ContainsAny(field, "\r\n")
}
