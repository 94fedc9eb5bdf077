// Package csvgeo geocodes uploaded CSV files: it sniffs the dialect, parses
// rows, enriches each one through a geocoder and writes the augmented file
// back in the same dialect and encoding.
package csvgeo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/mohammed-shakir/csv-geocoder/internal/core/observability"
)

// Upload is the raw file part of a request.
type Upload struct {
	Data     []byte
	Filename string
	// charset declared on the part's Content-Type, may be empty
	Charset string
}

type Request struct {
	BatchID   string
	Upload    *Upload
	Encoding  string
	Delimiter string
	Quote     string
	Columns   []string
	WithBOM   bool
	GeoBoost  GeoBoost
	Filters   FilterMap
}

type Options struct {
	// input encoding when the request names none
	DefaultEncoding string
	// output encoding, empty means same as input
	OutputEncoding string
	SniffSize      int
}

type Stats struct {
	Rows   int
	Hits   int
	Misses int
	Skips  int
}

type Processor struct {
	logger   *slog.Logger
	enricher Enricher
	opts     Options
}

func NewProcessor(logger *slog.Logger, enricher Enricher, opts Options) *Processor {
	if opts.DefaultEncoding == "" {
		opts.DefaultEncoding = "utf-8-sig"
	}
	if opts.SniffSize <= 0 {
		opts.SniffSize = DefaultSniffSize
	}
	return &Processor{logger: logger, enricher: enricher, opts: opts}
}

func (p *Processor) Endpoint() string { return p.enricher.Endpoint() }

// Process runs one batch. Any error aborts the whole batch and no partial
// output is returned.
func (p *Processor) Process(ctx context.Context, req Request) (*Result, error) {
	if req.Upload == nil {
		return nil, missingFile()
	}
	if len(req.Upload.Data) == 0 {
		return nil, emptyFile()
	}

	// a charset declared on the file part wins over the encoding parameter
	label := req.Upload.Charset
	if label == "" {
		label = req.Encoding
	}
	if label == "" {
		label = p.opts.DefaultEncoding
	}
	in, err := ResolveEncoding(label)
	if err != nil {
		return nil, err
	}
	text, err := in.Decode(req.Upload.Data)
	if err != nil {
		return nil, err
	}
	content := NormalizeNewlines(text)
	if content == "" {
		return nil, emptyFile()
	}

	out := in
	if p.opts.OutputEncoding != "" {
		if out, err = ResolveEncoding(p.opts.OutputEncoding); err != nil {
			return nil, fmt.Errorf("output encoding: %w", err)
		}
	}

	dialect, err := Sniff(content, SniffOptions{
		SampleSize: p.opts.SniffSize,
		Delimiter:  req.Delimiter,
		Quote:      req.Quote,
	})
	if err != nil {
		return nil, err
	}

	rows, err := NewReader(content, dialect)
	if err != nil {
		return nil, err
	}
	fieldnames, queryColumns, err := Reconcile(rows.Header(), req.Columns, p.enricher.ResultHeaders())
	if err != nil {
		return nil, err
	}

	plan := &Plan{
		BatchID:      req.BatchID,
		Dialect:      dialect,
		Output:       out,
		Fieldnames:   fieldnames,
		QueryColumns: queryColumns,
		Filters:      req.Filters,
		GeoBoost:     req.GeoBoost,
	}
	p.logger.DebugContext(ctx, "batch planned",
		"endpoint", p.Endpoint(),
		"delimiter", string(dialect.Delimiter),
		"quote", string(dialect.Quote),
		"input_encoding", in.Name(),
		"output_encoding", out.Charset(),
		"columns", strings.Join(queryColumns, ","),
		"filters", len(req.Filters))

	var buf strings.Builder
	buf.Grow(len(content) + len(content)/2)
	w := NewWriter(&buf, dialect, fieldnames, req.WithBOM && out.UTF8())

	stats, err := p.processRows(ctx, plan, rows, w)
	if err != nil {
		return nil, err
	}

	body, err := out.Encode(buf.String())
	if err != nil {
		return nil, err
	}
	return &Result{
		Body:        body,
		Filename:    AttachmentFilename(req.Upload.Filename),
		ContentType: ContentType(out.Charset()),
		Stats:       stats,
	}, nil
}

func (p *Processor) processRows(ctx context.Context, plan *Plan, rows *Reader, w *Writer) (Stats, error) {
	var st Stats
	endpoint := p.Endpoint()
	for index := 1; ; index++ {
		if err := ctx.Err(); err != nil {
			return st, fmt.Errorf("batch cancelled at row %d: %w", index, err)
		}
		row, err := rows.Next()
		if errors.Is(err, io.EOF) {
			return st, nil
		}
		if err != nil {
			return st, fmt.Errorf("read row %d: %w", index, err)
		}

		outcome, err := p.enricher.Enrich(ctx, plan, index, row)
		if err != nil {
			return st, err
		}
		observability.ObserveRow(endpoint, string(outcome))
		switch outcome {
		case OutcomeHit:
			st.Hits++
		case OutcomeMiss:
			st.Misses++
		case OutcomeSkip:
			st.Skips++
		}
		w.Write(row)
		st.Rows++
	}
}
