package csvgeo

import (
	"slices"
	"sort"
	"strconv"
	"strings"
)

// Reconcile validates the query columns against the header and computes the
// output fieldnames: the header in order, then every result header not
// already present. No columns means every header column is queried.
func Reconcile(header, columns, resultHeaders []string) (fieldnames, queryColumns []string, err error) {
	queryColumns = columns
	if len(queryColumns) == 0 {
		queryColumns = header
	}
	for _, c := range queryColumns {
		if !slices.Contains(header, c) {
			return nil, nil, unknownColumn(c, header)
		}
	}

	fieldnames = append([]string(nil), header...)
	for _, h := range resultHeaders {
		if !slices.Contains(fieldnames, h) {
			fieldnames = append(fieldnames, h)
		}
	}
	return fieldnames, append([]string(nil), queryColumns...), nil
}

// request parameters that configure the batch and never become filters
var reservedParams = map[string]struct{}{
	"delimiter": {},
	"quote":     {},
	"columns":   {},
	"encoding":  {},
	"with_bom":  {},
	"lat":       {},
	"lon":       {},
}

func IsReservedParam(name string) bool {
	_, ok := reservedParams[name]
	return ok
}

// Filter maps a geocoder filter parameter to the column holding its value.
type Filter struct {
	Param  string
	Column string
}

type FilterMap []Filter

// NewFilterMap keeps every non-reserved parameter with a non-empty column
// name, sorted by parameter name.
func NewFilterMap(params map[string][]string) FilterMap {
	var out FilterMap
	for k, vs := range params {
		if IsReservedParam(k) || len(vs) == 0 {
			continue
		}
		col := vs[0]
		if col == "" {
			continue
		}
		out = append(out, Filter{Param: k, Column: col})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Param < out[j].Param })
	return out
}

// ForRow resolves filter values from r. Filters whose column is absent or
// empty are omitted.
func (f FilterMap) ForRow(r *Row) map[string]string {
	out := make(map[string]string, len(f))
	for _, flt := range f {
		if v, ok := r.Get(flt.Column); ok && v != "" {
			out[flt.Param] = v
		}
	}
	return out
}

// GeoBoost names the columns holding a center-bias coordinate.
type GeoBoost struct {
	LatColumn string
	LonColumn string
}

func (g GeoBoost) Enabled() bool { return g.LatColumn != "" && g.LonColumn != "" }

// center returns the boost coordinate of r, ok false when either value is
// absent, empty or not a number.
func (g GeoBoost) center(r *Row) (lat, lon float64, ok bool) {
	if !g.Enabled() {
		return 0, 0, false
	}
	rawLat, rawLon := r.Value(g.LatColumn), r.Value(g.LonColumn)
	if rawLat == "" || rawLon == "" {
		return 0, 0, false
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(rawLat), 64)
	if err != nil {
		return 0, 0, false
	}
	lon, err = strconv.ParseFloat(strings.TrimSpace(rawLon), 64)
	if err != nil {
		return 0, 0, false
	}
	return lat, lon, true
}
