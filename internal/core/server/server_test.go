package server

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mohammed-shakir/csv-geocoder/internal/core/config"
	"github.com/mohammed-shakir/csv-geocoder/internal/csvgeo"
)

type namedProcessor string

func (p namedProcessor) Endpoint() string { return string(p) }

func (p namedProcessor) Process(context.Context, csvgeo.Request) (*csvgeo.Result, error) {
	return &csvgeo.Result{Body: []byte(p), Filename: "f.geocoded.csv", ContentType: "text/csv; charset=utf-8"}, nil
}

type readyOK struct{}

func (readyOK) Readiness(context.Context) error { return nil }

func TestNewHandler_Routes(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHandler(config.FromEnv(), logger, Deps{
		Search:  namedProcessor("search"),
		Reverse: namedProcessor("reverse"),
		Ready:   readyOK{},
	})

	for path, want := range map[string]string{
		"/search/csv":   "search",
		"/reverse/csv":  "reverse",
		"/csv":          "search",
		"/search/csv/":  "search",
		"/reverse/csv/": "reverse",
		"/csv/":         "search",
	} {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		fw, _ := mw.CreateFormFile("data", "f.csv")
		_, _ = fw.Write([]byte("a\n1\n"))
		_ = mw.Close()

		req := httptest.NewRequest(http.MethodPost, path, &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)

		if rr.Code != http.StatusOK || rr.Body.String() != want {
			t.Fatalf("%s: status=%d body=%q want %q", path, rr.Code, rr.Body.String(), want)
		}
		if rr.Header().Get("X-Request-ID") == "" {
			t.Fatalf("%s: missing request id", path)
		}
	}

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("%s: status=%d", path, rr.Code)
		}
	}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/search/csv", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET /search/csv status=%d want 405", rr.Code)
	}
}
