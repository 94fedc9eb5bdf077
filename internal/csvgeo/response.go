package csvgeo

import (
	"path/filepath"
	"strings"
)

const geocodedSuffix = ".geocoded.csv"

// Result is the fully buffered response of one batch.
type Result struct {
	Body        []byte
	Filename    string
	ContentType string
	Stats       Stats
}

func (r *Result) ContentDisposition() string {
	name := strings.ReplaceAll(r.Filename, `"`, `\"`)
	return `attachment; filename="` + name + `"`
}

// AttachmentFilename strips the extension of the uploaded name and appends
// the geocoded suffix. Non-ASCII characters are kept as is.
func AttachmentFilename(upload string) string {
	base := upload
	if i := strings.LastIndexAny(base, `/\`); i >= 0 {
		base = base[i+1:]
	}
	if stem := strings.TrimSuffix(base, filepath.Ext(base)); stem != "" {
		base = stem
	}
	return base + geocodedSuffix
}

func ContentType(charset string) string {
	return "text/csv; charset=" + charset
}
