// Package numbering issues document numbers. Numbers are monotonic per
// document type and never reused; a failed create leaves a gap.
package numbering

import (
	"fmt"
	"strings"

	"github.com/erp/ledger/internal/domain/document"
)

// DefaultWidth is the zero-padded width of the numeric part
const DefaultWidth = 6

// Format renders sequence values as PREFIX-000042
type Format struct {
	prefixes map[document.Type]string
	width    int
}

// NewFormat creates a Format. Types without a configured prefix use their
// upper-cased name.
func NewFormat(prefixes map[string]string, width int) Format {
	if width <= 0 {
		width = DefaultWidth
	}
	p := make(map[document.Type]string, len(prefixes))
	for k, v := range prefixes {
		p[document.Type(k)] = strings.ToUpper(strings.TrimSpace(v))
	}
	return Format{prefixes: p, width: width}
}

// Prefix returns the number prefix for a document type
func (f Format) Prefix(docType document.Type) string {
	if p, ok := f.prefixes[docType]; ok && p != "" {
		return p
	}
	return strings.ToUpper(docType.String())
}

// Number formats the n-th number of a document type
func (f Format) Number(docType document.Type, n int64) string {
	return fmt.Sprintf("%s-%0*d", f.Prefix(docType), f.width, n)
}
