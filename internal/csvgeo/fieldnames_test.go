package csvgeo

import (
	"errors"
	"reflect"
	"testing"
)

func TestReconcile_AppendsNewResultHeaders(t *testing.T) {
	header := []string{"name", "street", "latitude"}
	fields, cols, err := Reconcile(header, []string{"street"}, []string{"latitude", "longitude", "result_label"})
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if want := []string{"name", "street", "latitude", "longitude", "result_label"}; !reflect.DeepEqual(fields, want) {
		t.Fatalf("fields=%v want %v", fields, want)
	}
	if !reflect.DeepEqual(cols, []string{"street"}) {
		t.Fatalf("cols=%v", cols)
	}
}

func TestReconcile_NoColumnsQueriesEverything(t *testing.T) {
	_, cols, err := Reconcile([]string{"a", "b"}, nil, nil)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if !reflect.DeepEqual(cols, []string{"a", "b"}) {
		t.Fatalf("cols=%v", cols)
	}
}

func TestReconcile_UnknownColumn(t *testing.T) {
	_, _, err := Reconcile([]string{"name", "city"}, []string{"city", "street"}, nil)
	if !errors.Is(err, ErrUnknownColumn) {
		t.Fatalf("expected unknown column, got %v", err)
	}
	want := "Cannot find column 'street' in columns ['name', 'city']"
	if err.Error() != want {
		t.Fatalf("message=%q want %q", err.Error(), want)
	}
}

func TestNewFilterMap_SkipsReservedAndEmpty(t *testing.T) {
	fm := NewFilterMap(map[string][]string{
		"type":      {"kind"},
		"postcode":  {"cp"},
		"citycode":  {""},
		"columns":   {"name"},
		"delimiter": {";"},
		"lat":       {"y"},
		"with_bom":  {"1"},
	})
	want := FilterMap{{Param: "postcode", Column: "cp"}, {Param: "type", Column: "kind"}}
	if !reflect.DeepEqual(fm, want) {
		t.Fatalf("filters=%+v want %+v", fm, want)
	}
}

func TestFilterMap_ForRowOmitsMissingValues(t *testing.T) {
	fm := FilterMap{{Param: "postcode", Column: "cp"}, {Param: "type", Column: "kind"}, {Param: "citycode", Column: "insee"}}
	row := NewRow([]string{"cp", "kind"}, []string{"31310", ""})
	got := fm.ForRow(row)
	if !reflect.DeepEqual(got, map[string]string{"postcode": "31310"}) {
		t.Fatalf("filters=%v", got)
	}
}

func TestGeoBoost_Center(t *testing.T) {
	g := GeoBoost{LatColumn: "y", LonColumn: "x"}
	cases := []struct {
		name   string
		values []string
		ok     bool
	}{
		{"both", []string{"43.6", "1.44"}, true},
		{"lat empty", []string{"", "1.44"}, false},
		{"lon garbage", []string{"43.6", "east"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			lat, lon, ok := g.center(NewRow([]string{"y", "x"}, tc.values))
			if ok != tc.ok {
				t.Fatalf("ok=%v want %v", ok, tc.ok)
			}
			if ok && (lat != 43.6 || lon != 1.44) {
				t.Fatalf("center=%v,%v", lat, lon)
			}
		})
	}
	if (GeoBoost{LatColumn: "y"}).Enabled() {
		t.Fatal("half-configured boost must be disabled")
	}
}
