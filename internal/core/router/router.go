package router

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mohammed-shakir/csv-geocoder/internal/core/config"
	"github.com/mohammed-shakir/csv-geocoder/internal/core/observability"
	"github.com/mohammed-shakir/csv-geocoder/internal/csvgeo"
	"github.com/mohammed-shakir/csv-geocoder/internal/limiter"
	mylog "github.com/mohammed-shakir/csv-geocoder/internal/logger"
)

const (
	uploadField = "data"
	// multipart parts above this size spill to temp files
	maxMemory = 32 << 20
)

var errBadForm = errors.New("invalid multipart body")

// runs one geocoding batch
type Processor interface {
	Endpoint() string
	Process(ctx context.Context, req csvgeo.Request) (*csvgeo.Result, error)
}

// parses the multipart upload, runs the batch and streams the csv back
func HandleCSV(logger *slog.Logger, cfg config.Config, route string, p Processor, lim limiter.Limiter) http.HandlerFunc {
	endpoint := p.Endpoint()
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		defer func() {
			observability.ObserveHTTP(r.Method, route, sw.code, time.Since(start).Seconds())
		}()

		batchID := uuid.NewString()
		ctx := mylog.WithBatchID(r.Context(), batchID)
		ctx = mylog.WithEndpoint(ctx, endpoint)
		sw.Header().Set("X-Batch-ID", batchID)

		if lim != nil {
			release, err := lim.Acquire(ctx)
			if err != nil {
				logger.WarnContext(ctx, "batch rejected", "err", err)
				writeError(sw, endpoint, err)
				return
			}
			defer release()
		}

		r.Body = http.MaxBytesReader(sw, r.Body, cfg.CSV.MaxUpload)
		req, err := ParseRequest(r)
		if err != nil {
			logger.WarnContext(ctx, "bad upload", "err", err)
			writeError(sw, endpoint, err)
			return
		}
		req.BatchID = batchID
		if req.Upload != nil {
			observability.ObserveUpload(endpoint, len(req.Upload.Data))
		}

		res, err := p.Process(ctx, req)
		if err != nil {
			if csvgeo.KindOf(err) != 0 {
				logger.InfoContext(ctx, "batch refused", "err", err)
			} else {
				logger.ErrorContext(ctx, "batch failed", "err", err)
			}
			writeError(sw, endpoint, err)
			return
		}

		observability.ObserveBatch(endpoint, "")
		logger.InfoContext(ctx, "batch done",
			"rows", res.Stats.Rows,
			"hits", res.Stats.Hits,
			"misses", res.Stats.Misses,
			"skips", res.Stats.Skips,
			"bytes", len(res.Body),
			"duration", time.Since(start))

		sw.Header().Set("Content-Type", res.ContentType)
		sw.Header().Set("Content-Disposition", res.ContentDisposition())
		sw.WriteHeader(http.StatusOK)
		_, _ = sw.Write(res.Body)
	}
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// ParseRequest reads the multipart form into a batch request. A missing file
// part is not an error here; the pipeline reports it.
func ParseRequest(r *http.Request) (csvgeo.Request, error) {
	if err := r.ParseMultipartForm(maxMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return csvgeo.Request{}, fmt.Errorf("%w: %w", errBadForm, err)
	}
	if r.Form == nil {
		if err := r.ParseForm(); err != nil {
			return csvgeo.Request{}, fmt.Errorf("%w: %w", errBadForm, err)
		}
	}

	req := csvgeo.Request{
		Encoding:  strings.TrimSpace(r.Form.Get("encoding")),
		Delimiter: r.Form.Get("delimiter"),
		Quote:     r.Form.Get("quote"),
		Columns:   parseColumns(r.Form["columns"]),
		WithBOM:   parseBool(r.Form.Get("with_bom")),
		GeoBoost: csvgeo.GeoBoost{
			LatColumn: strings.TrimSpace(r.Form.Get("lat")),
			LonColumn: strings.TrimSpace(r.Form.Get("lon")),
		},
		Filters: csvgeo.NewFilterMap(r.Form),
	}

	if r.MultipartForm != nil {
		if files := r.MultipartForm.File[uploadField]; len(files) > 0 {
			up, err := readUpload(files[0])
			if err != nil {
				return csvgeo.Request{}, err
			}
			req.Upload = up
		}
	}
	return req, nil
}

func readUpload(fh *multipart.FileHeader) (*csvgeo.Upload, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: open upload: %w", errBadForm, err)
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("%w: read upload: %w", errBadForm, err)
	}
	up := &csvgeo.Upload{Data: data, Filename: fh.Filename}
	if ct := fh.Header.Get("Content-Type"); ct != "" {
		if _, params, err := mime.ParseMediaType(ct); err == nil {
			up.Charset = params["charset"]
		}
	}
	return up, nil
}

// columns may be repeated or comma separated
func parseColumns(values []string) []string {
	var out []string
	for _, v := range values {
		for c := range strings.SplitSeq(v, ",") {
			if c = strings.TrimSpace(c); c != "" {
				out = append(out, c)
			}
		}
	}
	return out
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
