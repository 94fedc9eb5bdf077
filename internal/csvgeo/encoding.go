package csvgeo

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/transform"
)

const bom = "\ufeff"

var (
	errInvalidUTF8 = errors.New("invalid utf-8 byte sequence")
	errNonASCII    = errors.New("byte outside the ascii range")
)

type alias struct {
	enc     encoding.Encoding
	charset string
}

// Spellings the web indexes miss or map to a superset.
var aliases = map[string]alias{
	"latin-1":   {charmap.ISO8859_1, "iso-8859-1"},
	"latin1":    {charmap.ISO8859_1, "iso-8859-1"},
	"l1":        {charmap.ISO8859_1, "iso-8859-1"},
	"iso8859-1": {charmap.ISO8859_1, "iso-8859-1"},
	"cp819":     {charmap.ISO8859_1, "iso-8859-1"},
	"ascii":     {asciiEncoding{}, "us-ascii"},
	"us-ascii":  {asciiEncoding{}, "us-ascii"},
	"646":       {asciiEncoding{}, "us-ascii"},
}

// Codec decodes uploads and encodes results for one named text encoding.
type Codec struct {
	name     string
	charset  string
	enc      encoding.Encoding // nil for the utf-8 family
	stripBOM bool
}

// ResolveEncoding looks up an encoding label. "utf-8-sig" is utf-8 with a
// leading byte-order mark stripped on decode.
func ResolveEncoding(label string) (Codec, error) {
	name := strings.TrimSpace(label)
	lower := strings.ToLower(name)
	norm := strings.ReplaceAll(lower, "_", "-")
	switch norm {
	case "utf-8", "utf8", "u8", "utf":
		return Codec{name: name, charset: "utf-8"}, nil
	case "utf-8-sig", "utf8-sig":
		return Codec{name: name, charset: "utf-8", stripBOM: true}, nil
	case "":
		return Codec{}, unknownEncoding(label, errors.New("empty encoding name"))
	}

	if a, ok := aliases[norm]; ok {
		return Codec{name: name, charset: a.charset, enc: a.enc}, nil
	}

	enc, err := lookupEncoding(lower, norm)
	if err != nil {
		return Codec{}, unknownEncoding(name, err)
	}
	charset := norm
	if canon, err := ianaindex.MIME.Name(enc); err == nil && canon != "" {
		charset = strings.ToLower(canon)
	}
	if charset == "utf-8" {
		return Codec{name: name, charset: charset}, nil
	}
	return Codec{name: name, charset: charset, enc: enc}, nil
}

// lookupEncoding tries the label as given, then with underscores folded.
func lookupEncoding(labels ...string) (encoding.Encoding, error) {
	var lastErr error
	for _, l := range labels {
		if enc, err := ianaindex.IANA.Encoding(l); err == nil && enc != nil {
			return enc, nil
		}
		enc, err := htmlindex.Get(l)
		if err == nil {
			return enc, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

func (c Codec) Name() string { return c.name }

// Charset is the canonical name advertised in Content-Type.
func (c Codec) Charset() string { return c.charset }

// UTF8 reports whether the codec belongs to the utf-8 family.
func (c Codec) UTF8() bool { return c.enc == nil }

func (c Codec) Decode(b []byte) (string, error) {
	if c.enc == nil {
		if !utf8.Valid(b) {
			return "", unknownEncoding(c.name, errInvalidUTF8)
		}
		s := string(b)
		if c.stripBOM {
			s = strings.TrimPrefix(s, bom)
		}
		return s, nil
	}
	s, err := c.enc.NewDecoder().String(string(b))
	if err != nil {
		return "", unknownEncoding(c.name, err)
	}
	return s, nil
}

// Encode fails with an encoding mismatch when s holds characters the target
// encoding cannot represent.
func (c Codec) Encode(s string) ([]byte, error) {
	if c.enc == nil {
		return []byte(s), nil
	}
	out, err := c.enc.NewEncoder().String(s)
	if err != nil {
		return nil, encodingMismatch(fmt.Errorf("encode %s: %w", c.charset, err))
	}
	return []byte(out), nil
}

// asciiEncoding is strict 7-bit ASCII in both directions.
type asciiEncoding struct{}

func (asciiEncoding) NewDecoder() *encoding.Decoder {
	return &encoding.Decoder{Transformer: asciiTransformer{}}
}

func (asciiEncoding) NewEncoder() *encoding.Encoder {
	return &encoding.Encoder{Transformer: asciiTransformer{}}
}

type asciiTransformer struct{ transform.NopResetter }

func (asciiTransformer) Transform(dst, src []byte, atEOF bool) (nDst, nSrc int, err error) {
	for nSrc < len(src) {
		if src[nSrc] >= utf8.RuneSelf {
			return nDst, nSrc, errNonASCII
		}
		if nDst >= len(dst) {
			return nDst, nSrc, transform.ErrShortDst
		}
		dst[nDst] = src[nSrc]
		nDst++
		nSrc++
	}
	return nDst, nSrc, nil
}
