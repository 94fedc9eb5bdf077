package csvgeo

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/mohammed-shakir/csv-geocoder/internal/geocoder"
)

// Plan is the per-request state resolved before the first row is enriched.
// It is never modified afterwards.
type Plan struct {
	BatchID      string
	Dialect      Dialect
	Output       Codec
	Fieldnames   []string
	QueryColumns []string
	Filters      FilterMap
	GeoBoost     GeoBoost
}

type Outcome string

const (
	OutcomeHit  Outcome = "hit"
	OutcomeMiss Outcome = "miss"
	OutcomeSkip Outcome = "skip"
)

// Diagnostics receives advisory lookup events. Implementations must not block.
type Diagnostics interface {
	QueryExecuted(ctx context.Context, endpoint, query string, results int)
	NotFound(ctx context.Context, endpoint, query string)
}

type noDiagnostics struct{}

func (noDiagnostics) QueryExecuted(context.Context, string, string, int) {}
func (noDiagnostics) NotFound(context.Context, string, string)           {}

// Enricher merges geocoder results into a row. On a miss the row is left
// unmodified. index is the 1-based data row number.
type Enricher interface {
	Endpoint() string
	ResultHeaders() []string
	Enrich(ctx context.Context, p *Plan, index int, row *Row) (Outcome, error)
}

const minSearchLimit = 2

var searchHeaders = []string{
	"latitude", "longitude", "result_label", "result_score", "result_score_next",
	"result_type", "result_id", "result_housenumber",
}

var reverseHeaders = []string{
	"result_latitude", "result_longitude", "result_label", "result_distance",
	"result_type", "result_id", "result_housenumber",
}

type SearchEnricher struct {
	geo   geocoder.Geocoder
	attrs geocoder.AttributeTable
	limit int
	diag  Diagnostics
}

// NewSearchEnricher returns a forward enricher. limit is raised to two so the
// runner-up score can be reported.
func NewSearchEnricher(geo geocoder.Geocoder, attrs geocoder.AttributeTable, limit int, diag Diagnostics) *SearchEnricher {
	if diag == nil {
		diag = noDiagnostics{}
	}
	return &SearchEnricher{geo: geo, attrs: attrs, limit: max(limit, minSearchLimit), diag: diag}
}

func (e *SearchEnricher) Endpoint() string { return "search" }

func (e *SearchEnricher) ResultHeaders() []string {
	return append(append([]string(nil), searchHeaders...), e.attrs.Headers()...)
}

func (e *SearchEnricher) Enrich(ctx context.Context, p *Plan, index int, row *Row) (Outcome, error) {
	q := BuildQuery(row, p.QueryColumns)
	sq := geocoder.SearchQuery{
		Text:    q,
		Filters: p.Filters.ForRow(row),
		Limit:   e.limit,
	}
	if lat, lon, ok := p.GeoBoost.center(row); ok {
		sq.Center = &geocoder.LatLon{Lat: lat, Lon: lon}
	}

	results, err := e.geo.Search(ctx, sq)
	if err != nil {
		var tl *geocoder.QueryTooLargeError
		if errors.As(err, &tl) {
			return "", queryTooLarge(index, tl.Length, tl.Limit, err)
		}
		return "", fmt.Errorf("search row %d: %w", index, err)
	}
	e.diag.QueryExecuted(ctx, e.Endpoint(), q, len(results))
	if len(results) == 0 {
		e.diag.NotFound(ctx, e.Endpoint(), q)
		return OutcomeMiss, nil
	}

	top := results[0]
	next := 0.0
	if len(results) > 1 {
		next = results[1].Score
	}
	row.Set("latitude", geocoder.FormatFloat(top.Lat))
	row.Set("longitude", geocoder.FormatFloat(top.Lon))
	row.Set("result_label", top.Label)
	row.Set("result_score", geocoder.FormatFloat(round2(top.Score)))
	row.Set("result_score_next", geocoder.FormatFloat(round2(next)))
	row.Set("result_type", top.Type)
	row.Set("result_id", top.ID)
	row.Set("result_housenumber", top.HouseNumber)
	e.attrs.Apply(top, row.Set)
	return OutcomeHit, nil
}

// BuildQuery joins the values of columns with single spaces, absent values
// counting as empty strings.
func BuildQuery(row *Row, columns []string) string {
	parts := make([]string, len(columns))
	for i, c := range columns {
		parts[i] = row.Value(c)
	}
	return strings.Join(parts, " ")
}

var (
	latColumns = []string{"latitude", "lat"}
	lonColumns = []string{"longitude", "lon", "lng", "long"}
)

type ReverseEnricher struct {
	geo   geocoder.Geocoder
	attrs geocoder.AttributeTable
	diag  Diagnostics
}

func NewReverseEnricher(geo geocoder.Geocoder, attrs geocoder.AttributeTable, diag Diagnostics) *ReverseEnricher {
	if diag == nil {
		diag = noDiagnostics{}
	}
	return &ReverseEnricher{geo: geo, attrs: attrs, diag: diag}
}

func (e *ReverseEnricher) Endpoint() string { return "reverse" }

func (e *ReverseEnricher) ResultHeaders() []string {
	return append(append([]string(nil), reverseHeaders...), e.attrs.Headers()...)
}

func (e *ReverseEnricher) Enrich(ctx context.Context, p *Plan, index int, row *Row) (Outcome, error) {
	lat, latOK := coordinate(row, latColumns)
	lon, lonOK := coordinate(row, lonColumns)
	if !latOK || !lonOK {
		return OutcomeSkip, nil
	}

	results, err := e.geo.Reverse(ctx, geocoder.ReverseQuery{
		Lat:     lat,
		Lon:     lon,
		Filters: p.Filters.ForRow(row),
		Limit:   1,
	})
	if err != nil {
		return "", fmt.Errorf("reverse row %d: %w", index, err)
	}
	q := geocoder.FormatFloat(lat) + " " + geocoder.FormatFloat(lon)
	e.diag.QueryExecuted(ctx, e.Endpoint(), q, len(results))
	if len(results) == 0 {
		e.diag.NotFound(ctx, e.Endpoint(), q)
		return OutcomeMiss, nil
	}

	top := results[0]
	row.Set("result_latitude", geocoder.FormatFloat(top.Lat))
	row.Set("result_longitude", geocoder.FormatFloat(top.Lon))
	row.Set("result_label", top.Label)
	row.Set("result_distance", strconv.Itoa(int(top.Distance)))
	row.Set("result_type", top.Type)
	row.Set("result_id", top.ID)
	row.Set("result_housenumber", top.HouseNumber)
	e.attrs.Apply(top, row.Set)
	return OutcomeHit, nil
}

// coordinate parses the first column of names present in row.
func coordinate(row *Row, names []string) (float64, bool) {
	for _, n := range names {
		v, ok := row.Get(n)
		if !ok {
			continue
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
