package csvgeo

import (
	"context"
	"errors"
	"mime"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/mohammed-shakir/csv-geocoder/internal/geocoder"
)

func hitAll(r geocoder.Result) func(geocoder.SearchQuery) ([]geocoder.Result, error) {
	return func(geocoder.SearchQuery) ([]geocoder.Result, error) {
		return []geocoder.Result{r}, nil
	}
}

func newSearchProcessor(t *testing.T, geo geocoder.Geocoder, attrs ...string) *Processor {
	t.Helper()
	return NewProcessor(discardLogger(), NewSearchEnricher(geo, testAttrs(t, attrs...), 2, nil), Options{})
}

func upload(content string) *Upload {
	return &Upload{Data: []byte(content), Filename: "file.csv"}
}

func TestProcess_SearchBasic(t *testing.T) {
	geo := &fakeGeocoder{search: hitAll(avions)}
	p := newSearchProcessor(t, geo, "postcode", "city")

	res, err := p.Process(context.Background(), Request{
		Upload:  upload("name,street,postcode,city\nBoulangerie Brûlé,rue des avions,31310,Montbrun-Bocage\n"),
		Columns: []string{"street", "postcode", "city"},
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	want := "name,street,postcode,city,latitude,longitude,result_label,result_score,result_score_next," +
		"result_type,result_id,result_housenumber,result_postcode,result_city\r\n" +
		"Boulangerie Brûlé,rue des avions,31310,Montbrun-Bocage,10.22334401,12.33445501," +
		"rue des avions 31310 Montbrun-Bocage,0.97,0,street,31310_xxxx,,31310,Montbrun-Bocage\r\n"
	if got := string(res.Body); got != want {
		t.Fatalf("body:\n%q\nwant:\n%q", got, want)
	}
	if strings.Count(string(res.Body), "Montbrun-Bocage") != 3 {
		t.Fatalf("city should appear 3 times: %q", res.Body)
	}
	if geo.searches[0].Text != "rue des avions 31310 Montbrun-Bocage" {
		t.Fatalf("query=%q", geo.searches[0].Text)
	}
	if res.ContentType != "text/csv; charset=utf-8" {
		t.Fatalf("content type=%q", res.ContentType)
	}
	if res.Filename != "file.geocoded.csv" {
		t.Fatalf("filename=%q", res.Filename)
	}
	if res.Stats != (Stats{Rows: 1, Hits: 1}) {
		t.Fatalf("stats=%+v", res.Stats)
	}
}

func TestProcess_Reverse(t *testing.T) {
	geo := &fakeGeocoder{reverse: func(geocoder.ReverseQuery) ([]geocoder.Result, error) {
		r := avions
		r.Distance = 12.7
		return []geocoder.Result{r}, nil
	}}
	p := NewProcessor(discardLogger(), NewReverseEnricher(geo, testAttrs(t), nil), Options{})

	res, err := p.Process(context.Background(), Request{Upload: upload("latitude,longitude\n48.5,2.25\n")})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	want := "latitude,longitude,result_latitude,result_longitude,result_label,result_distance," +
		"result_type,result_id,result_housenumber\r\n" +
		"48.5,2.25,10.22334401,12.33445501,rue des avions 31310 Montbrun-Bocage,12,street,31310_xxxx,\r\n"
	if got := string(res.Body); got != want {
		t.Fatalf("body:\n%q\nwant:\n%q", got, want)
	}
}

func TestProcess_QueryTooLargeAbortsBatch(t *testing.T) {
	const limit = 10
	geo := &fakeGeocoder{search: func(q geocoder.SearchQuery) ([]geocoder.Result, error) {
		if n := utf8.RuneCountInString(q.Text); n > limit {
			return nil, &geocoder.QueryTooLargeError{Length: n, Limit: limit}
		}
		return nil, nil
	}}
	p := newSearchProcessor(t, geo)

	res, err := p.Process(context.Background(), Request{
		Upload: upload("q\nshort\nthis one is definitely longer\nshort\n"),
	})
	if res != nil {
		t.Fatal("no partial output expected")
	}
	if !errors.Is(err, ErrQueryTooLarge) {
		t.Fatalf("expected query too large, got %v", err)
	}
	want := "Query too long, 29 chars, limit is 10 (row number 2)"
	if err.Error() != want {
		t.Fatalf("message=%q want %q", err.Error(), want)
	}
	if len(geo.searches) != 2 {
		t.Fatalf("searches=%d, batch should stop at the failing row", len(geo.searches))
	}
}

func TestProcess_EmptyAndMissing(t *testing.T) {
	p := newSearchProcessor(t, &fakeGeocoder{})

	if _, err := p.Process(context.Background(), Request{}); !errors.Is(err, ErrMissingFile) {
		t.Fatalf("expected missing file, got %v", err)
	}
	for _, data := range []string{"", "\ufeff", "\n\n"} {
		_, err := p.Process(context.Background(), Request{Upload: upload(data)})
		if !errors.Is(err, ErrEmptyFile) {
			t.Fatalf("data %q: expected empty file, got %v", data, err)
		}
	}
}

func TestProcess_EmptyBeforeEncodingAndSniffing(t *testing.T) {
	p := newSearchProcessor(t, &fakeGeocoder{})
	_, err := p.Process(context.Background(), Request{Upload: upload(""), Encoding: "klingon", Delimiter: ";;"})
	if !errors.Is(err, ErrEmptyFile) {
		t.Fatalf("expected empty file first, got %v", err)
	}
}

func TestProcess_MultilineFieldPreserved(t *testing.T) {
	geo := &fakeGeocoder{}
	p := newSearchProcessor(t, geo)

	content := "name,adresse\r\n\"Boulangerie\",\"rue des avions\n31310\nMontbrun\"\n"
	res, err := p.Process(context.Background(), Request{Upload: upload(content), Columns: []string{"adresse"}})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !strings.Contains(string(res.Body), "Boulangerie,\"rue des avions\r\n31310\r\nMontbrun\",") {
		t.Fatalf("multiline field lost: %q", res.Body)
	}
	if geo.searches[0].Text != "rue des avions\r\n31310\r\nMontbrun" {
		t.Fatalf("query=%q", geo.searches[0].Text)
	}
	if res.Stats.Misses != 1 {
		t.Fatalf("stats=%+v", res.Stats)
	}
}

func TestProcess_KeepsTabDialect(t *testing.T) {
	p := newSearchProcessor(t, &fakeGeocoder{search: hitAll(avions)})
	res, err := p.Process(context.Background(), Request{
		Upload:  upload("name\tadresse\nBoulangerie\true des avions\n"),
		Columns: []string{"adresse"},
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !strings.HasPrefix(string(res.Body), "name\tadresse\tlatitude\tlongitude\t") {
		t.Fatalf("tab dialect lost: %q", res.Body)
	}
	if !strings.Contains(string(res.Body), "Boulangerie\true des avions\t10.22334401\t") {
		t.Fatalf("row: %q", res.Body)
	}
}

func TestProcess_SingleColumn(t *testing.T) {
	p := newSearchProcessor(t, &fakeGeocoder{search: hitAll(avions)})
	res, err := p.Process(context.Background(), Request{Upload: upload("adresse\nrue des avions Montbrun\n")})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !strings.HasPrefix(string(res.Body), "adresse|latitude|longitude|result_label|") {
		t.Fatalf("body=%q", res.Body)
	}
}

func TestProcess_QuoteOverride(t *testing.T) {
	r := avions
	r.Type = "city"
	p := newSearchProcessor(t, &fakeGeocoder{search: hitAll(r)})

	res, err := p.Process(context.Background(), Request{Upload: upload("q\n|rue|\n"), Quote: "|"})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	body := string(res.Body)
	if !strings.Contains(body, "|rue|") || !strings.Contains(body, "|city|") {
		t.Fatalf("body=%q", body)
	}
}

func TestProcess_BOMOnlyForUTF8(t *testing.T) {
	p := newSearchProcessor(t, &fakeGeocoder{})

	res, err := p.Process(context.Background(), Request{Upload: upload("a,b\n1,2\n"), WithBOM: true})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !strings.HasPrefix(string(res.Body), "\ufeffa,b,") {
		t.Fatalf("utf-8 output should start with a BOM: %q", res.Body)
	}

	res, err = p.Process(context.Background(), Request{
		Upload:   upload("name,city\nBr\xfbl\xe9,x\n"),
		Encoding: "iso-8859-1",
		WithBOM:  true,
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if strings.HasPrefix(string(res.Body), "\xef\xbb\xbf") {
		t.Fatal("latin-1 output must not carry a BOM")
	}
	if !strings.Contains(string(res.Body), "Br\xfbl\xe9,x") {
		t.Fatalf("latin-1 output not re-encoded: %q", res.Body)
	}
	if _, params, err := mime.ParseMediaType(res.ContentType); err != nil || params["charset"] != "iso-8859-1" {
		t.Fatalf("content type=%q err=%v", res.ContentType, err)
	}
}

func TestProcess_DeclaredCharset(t *testing.T) {
	p := newSearchProcessor(t, &fakeGeocoder{})
	up := upload("name\nBr\xfbl\xe9\n")
	up.Charset = "latin1"

	res, err := p.Process(context.Background(), Request{Upload: up})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !strings.Contains(string(res.Body), "Br\xfbl\xe9") {
		t.Fatalf("body=%q", res.Body)
	}

	// the declared charset wins over the encoding parameter
	if _, err = p.Process(context.Background(), Request{Upload: up, Encoding: "utf-8"}); err != nil {
		t.Fatalf("declared charset ignored: %v", err)
	}
}

func TestProcess_UnknownColumn(t *testing.T) {
	geo := &fakeGeocoder{}
	p := newSearchProcessor(t, geo)
	_, err := p.Process(context.Background(), Request{Upload: upload("a,b\n1,2\n"), Columns: []string{"c"}})
	if !errors.Is(err, ErrUnknownColumn) {
		t.Fatalf("expected unknown column, got %v", err)
	}
	if len(geo.searches) != 0 {
		t.Fatal("no lookup should run before columns are validated")
	}
}

func TestProcess_AccentedFilename(t *testing.T) {
	p := newSearchProcessor(t, &fakeGeocoder{})
	up := upload("a,b\n1,2\n")
	up.Filename = "liste.médecins.csv"

	res, err := p.Process(context.Background(), Request{Upload: up})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if res.Filename != "liste.médecins.geocoded.csv" {
		t.Fatalf("filename=%q", res.Filename)
	}
	if got := res.ContentDisposition(); got != `attachment; filename="liste.médecins.geocoded.csv"` {
		t.Fatalf("disposition=%q", got)
	}
}

func TestProcess_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	geo := &fakeGeocoder{}
	p := newSearchProcessor(t, geo)

	_, err := p.Process(ctx, Request{Upload: upload("a,b\n1,2\n")})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if len(geo.searches) != 0 {
		t.Fatalf("searches=%d", len(geo.searches))
	}
}

func TestAttachmentFilename(t *testing.T) {
	cases := map[string]string{
		"file.csv":         "file.geocoded.csv",
		"dir/sub/data.txt": "data.geocoded.csv",
		`C:\tmp\x.csv`:     "x.geocoded.csv",
		"noext":            "noext.geocoded.csv",
		".csv":             ".csv.geocoded.csv",
		"":                 ".geocoded.csv",
	}
	for in, want := range cases {
		if got := AttachmentFilename(in); got != want {
			t.Fatalf("AttachmentFilename(%q)=%q want %q", in, got, want)
		}
	}
}
