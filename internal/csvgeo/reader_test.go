package csvgeo

import (
	"errors"
	"io"
	"reflect"
	"strings"
	"testing"
)

func readAll(t *testing.T, content string, d Dialect) ([]string, [][]string) {
	t.Helper()
	r, err := NewReader(content, d)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	var rows [][]string
	for {
		row, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		vals := make([]string, 0, row.Len())
		for _, k := range row.Keys() {
			vals = append(vals, row.Value(k))
		}
		rows = append(rows, vals)
	}
	return r.Header(), rows
}

func commaDialect() Dialect {
	return Dialect{Delimiter: ',', Quote: '"', DoubleQuote: true, LineTerminator: "\r\n"}
}

func TestReader_MultilineQuotedField(t *testing.T) {
	content := NormalizeNewlines("name,adresse\n\"Boulangerie Brûlé\",\"rue des avions\n31310\nMontbrun-Bocage\"\n\"Pâtisserie Crème\",\"x\"\n")
	header, rows := readAll(t, content, commaDialect())

	if !reflect.DeepEqual(header, []string{"name", "adresse"}) {
		t.Fatalf("header=%v", header)
	}
	want := [][]string{
		{"Boulangerie Brûlé", "rue des avions\r\n31310\r\nMontbrun-Bocage"},
		{"Pâtisserie Crème", "x"},
	}
	if !reflect.DeepEqual(rows, want) {
		t.Fatalf("rows=%q want %q", rows, want)
	}
}

func TestReader_MissingCellsAndExtraCells(t *testing.T) {
	_, rows := readAll(t, "a,b,c\r\n1\r\n1,2,3,4\r\n", commaDialect())
	want := [][]string{{"1", "", ""}, {"1", "2", "3"}}
	if !reflect.DeepEqual(rows, want) {
		t.Fatalf("rows=%q want %q", rows, want)
	}
}

func TestReader_SkipsBlankLines(t *testing.T) {
	_, rows := readAll(t, "\r\na,b\r\n\r\n1,2\r\n\r\n,\r\n", commaDialect())
	want := [][]string{{"1", "2"}, {"", ""}}
	if !reflect.DeepEqual(rows, want) {
		t.Fatalf("rows=%q want %q", rows, want)
	}
}

func TestReader_DoubledQuotesAndCustomQuote(t *testing.T) {
	_, rows := readAll(t, "a,b\r\n\"say \"\"hi\"\"\",x\"y\r\n", commaDialect())
	if !reflect.DeepEqual(rows, [][]string{{`say "hi"`, `x"y`}}) {
		t.Fatalf("rows=%q", rows)
	}

	d := Dialect{Delimiter: ';', Quote: '|', DoubleQuote: true, LineTerminator: "\r\n"}
	_, rows = readAll(t, "a;b\r\n|x;y|;|p||q|\r\n", d)
	if !reflect.DeepEqual(rows, [][]string{{"x;y", "p|q"}}) {
		t.Fatalf("rows=%q", rows)
	}
}

func TestReader_EmptyContent(t *testing.T) {
	_, err := NewReader("\r\n\r\n", commaDialect())
	if !errors.Is(err, ErrEmptyFile) {
		t.Fatalf("expected empty file, got %v", err)
	}
}

func TestRow_SetKeepsOrder(t *testing.T) {
	r := NewRow([]string{"b", "a", "b"}, []string{"1", "2", "3"})
	r.Set("c", "4")
	if got := strings.Join(r.Keys(), ","); got != "b,a,c" {
		t.Fatalf("keys=%s", got)
	}
	if r.Value("b") != "3" {
		t.Fatalf("duplicate header should keep last value, got %q", r.Value("b"))
	}
	if _, ok := r.Get("missing"); ok {
		t.Fatal("missing key reported present")
	}
}
