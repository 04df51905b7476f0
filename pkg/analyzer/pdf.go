package analyzer

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PDFExtractor captions PDFs from their first page's text.
type PDFExtractor struct{}

// NewPDFExtractor creates a new PDF extractor
func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{}
}

// Name returns the extractor name
func (p *PDFExtractor) Name() string {
	return "pdf"
}

// CanHandle checks if this is a PDF file
func (p *PDFExtractor) CanHandle(path string) bool {
	return strings.ToLower(filepath.Ext(path)) == ".pdf"
}

// Extract reads the first page's plain text and collapses it into a
// caption. Encrypted or image-only PDFs yield an empty caption.
func (p *PDFExtractor) Extract(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	file, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}
	defer file.Close()

	if reader.NumPage() < 1 {
		return "", nil
	}

	page := reader.Page(1)
	if page.V.IsNull() {
		return "", nil
	}

	text, err := page.GetPlainText(nil)
	if err != nil {
		return "", fmt.Errorf("failed to extract pdf text: %w", err)
	}

	return collapseCaption(text, maxCaptionLen), nil
}
