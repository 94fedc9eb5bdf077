package csvgeo

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/mohammed-shakir/csv-geocoder/internal/geocoder"
)

type fakeGeocoder struct {
	mu       sync.Mutex
	searches []geocoder.SearchQuery
	reverses []geocoder.ReverseQuery
	search   func(q geocoder.SearchQuery) ([]geocoder.Result, error)
	reverse  func(q geocoder.ReverseQuery) ([]geocoder.Result, error)
}

func (f *fakeGeocoder) Search(_ context.Context, q geocoder.SearchQuery) ([]geocoder.Result, error) {
	f.mu.Lock()
	f.searches = append(f.searches, q)
	f.mu.Unlock()
	if f.search == nil {
		return nil, nil
	}
	return f.search(q)
}

func (f *fakeGeocoder) Reverse(_ context.Context, q geocoder.ReverseQuery) ([]geocoder.Result, error) {
	f.mu.Lock()
	f.reverses = append(f.reverses, q)
	f.mu.Unlock()
	if f.reverse == nil {
		return nil, nil
	}
	return f.reverse(q)
}

type recordingDiagnostics struct {
	mu       sync.Mutex
	executed []string
	notFound []string
}

func (d *recordingDiagnostics) QueryExecuted(_ context.Context, _, q string, _ int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.executed = append(d.executed, q)
}

func (d *recordingDiagnostics) NotFound(_ context.Context, _, q string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.notFound = append(d.notFound, q)
}

var avions = geocoder.Result{
	Lat:   10.22334401,
	Lon:   12.33445501,
	Label: "rue des avions 31310 Montbrun-Bocage",
	Score: 0.9712,
	Type:  "street",
	ID:    "31310_xxxx",
	Attributes: map[string]string{
		"postcode": "31310",
		"city":     "Montbrun-Bocage",
	},
}

func testAttrs(t *testing.T, keys ...string) geocoder.AttributeTable {
	t.Helper()
	fields := make([]geocoder.Field, 0, len(keys))
	for _, k := range keys {
		fields = append(fields, geocoder.Field{Key: k})
	}
	tbl, err := geocoder.NewAttributeTable(fields, 9)
	if err != nil {
		t.Fatalf("NewAttributeTable: %v", err)
	}
	return tbl
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
