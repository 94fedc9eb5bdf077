package csvgeo

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Dialect describes how a delimited file is structured.
type Dialect struct {
	Delimiter      rune
	Quote          rune
	DoubleQuote    bool
	LineTerminator string
	// quote every field on output instead of only the ones that need it
	QuoteAll bool
}

// fallbackDialect is used when no candidate delimiter is consistent.
func fallbackDialect() Dialect {
	return Dialect{
		Delimiter:      ',',
		Quote:          '"',
		DoubleQuote:    true,
		LineTerminator: "\n",
		QuoteAll:       true,
	}
}

const (
	DefaultSniffSize     = 4096
	consistencyThreshold = 0.9
)

// tried in order, the first one that is consistent wins ties
var preferredDelimiters = []rune{',', ';', '\t', '|', ':'}

// used when sniffing settles on a letter or digit, which only happens on
// single-column files
var fallbackDelimiters = []rune{'|', '~', '^', '°'}

var singleQuotedField = regexp.MustCompile(`(?m)(?:^|[,;\t|:])'[^'\r\n]*'(?:[,;\t|:]|\r?$)`)

// NormalizeNewlines drops every CR then turns every LF into CRLF, including
// line breaks inside quoted fields.
func NormalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r", "")
	return strings.ReplaceAll(s, "\n", "\r\n")
}

type SniffOptions struct {
	// sample size in characters
	SampleSize int
	// explicit single-character overrides, empty means sniff
	Delimiter string
	Quote     string
}

// Sniff infers the dialect of normalized content.
func Sniff(content string, opts SniffOptions) (Dialect, error) {
	delimOverride, err := singleRune("delimiter", opts.Delimiter)
	if err != nil {
		return Dialect{}, err
	}
	quoteOverride, err := singleRune("quote", opts.Quote)
	if err != nil {
		return Dialect{}, err
	}

	size := opts.SampleSize
	if size <= 0 {
		size = DefaultSniffSize
	}
	sample, truncated := prefixRunes(content, size)

	quote := quoteOverride
	if quote == 0 {
		quote = guessQuote(sample)
	}

	d := fallbackDialect()
	if delim, ok := guessDelimiter(sample, quote, truncated); ok {
		d = Dialect{Delimiter: delim, Quote: quote, LineTerminator: "\r\n"}
	}
	if quoteOverride != 0 {
		d.Quote = quoteOverride
	}
	if delimOverride != 0 {
		d.Delimiter = delimOverride
	}
	d.DoubleQuote = true

	if isAlnum(d.Delimiter) {
		adopted := false
		for _, c := range fallbackDelimiters {
			if !strings.ContainsRune(content, c) {
				d.Delimiter = c
				adopted = true
				break
			}
		}
		if !adopted {
			return Dialect{}, ambiguousDelimiter()
		}
	}
	return d, nil
}

func singleRune(param, v string) (rune, error) {
	if v == "" {
		return 0, nil
	}
	r, size := utf8.DecodeRuneInString(v)
	if size != len(v) || r == utf8.RuneError || r == '\r' || r == '\n' {
		return 0, invalidDialect(param, v)
	}
	return r, nil
}

func prefixRunes(s string, n int) (string, bool) {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos], true
		}
		i++
	}
	return s, false
}

func guessQuote(sample string) rune {
	if !strings.ContainsRune(sample, '"') && singleQuotedField.MatchString(sample) {
		return '\''
	}
	return '"'
}

// guessDelimiter picks the candidate giving the most consistent field count
// across sampled records. When no preferred candidate qualifies, any other
// character occurring the same number of times on every line is accepted.
func guessDelimiter(sample string, quote rune, truncated bool) (rune, bool) {
	best, bestScore := rune(0), 0.0
	for _, cand := range preferredDelimiters {
		if cand == quote {
			continue
		}
		score := consistency(sample, cand, quote, truncated)
		if score >= consistencyThreshold && score > bestScore {
			best, bestScore = cand, score
		}
	}
	if best != 0 {
		return best, true
	}
	return uniformChar(sample, quote, truncated)
}

// consistency is the share of records having the modal field count, 0 when
// the modal count is below two fields.
func consistency(sample string, delim, quote rune, truncated bool) float64 {
	sc := newScanner(sample, delim, quote)
	var counts []int
	for {
		rec, ok := sc.next()
		if !ok {
			break
		}
		if len(rec) > 0 {
			counts = append(counts, len(rec))
		}
	}
	if truncated && len(counts) > 1 {
		counts = counts[:len(counts)-1]
	}
	if len(counts) == 0 {
		return 0
	}
	freq := map[int]int{}
	mode, modeN := 0, 0
	for _, c := range counts {
		freq[c]++
		if freq[c] > modeN || (freq[c] == modeN && c > mode) {
			mode, modeN = c, freq[c]
		}
	}
	if mode < 2 {
		return 0
	}
	return float64(modeN) / float64(len(counts))
}

func uniformChar(sample string, quote rune, truncated bool) (rune, bool) {
	lines := strings.Split(strings.TrimRight(sample, "\r\n"), "\r\n")
	if truncated && len(lines) > 1 {
		lines = lines[:len(lines)-1]
	}
	if len(lines) < 2 {
		return 0, false
	}
	first := map[rune]int{}
	var order []rune
	for _, c := range lines[0] {
		if c == quote || c == ' ' || unicode.IsControl(c) {
			continue
		}
		if _, ok := first[c]; !ok {
			order = append(order, c)
		}
		first[c]++
	}
	for _, c := range order {
		n := first[c]
		uniform := true
		for _, line := range lines[1:] {
			if strings.Count(line, string(c)) != n {
				uniform = false
				break
			}
		}
		if uniform {
			return c, true
		}
	}
	return 0, false
}

func isAlnum(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsNumber(r)
}
