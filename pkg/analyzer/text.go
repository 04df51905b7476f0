package analyzer

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

const (
	// maxCaptionReadBytes bounds how much of a file is read for captioning
	maxCaptionReadBytes int64 = 32 * 1024

	// maxCaptionLen is the caption length limit in runes
	maxCaptionLen = 200
)

// textExtensions are the file types captioned by reading their head.
var textExtensions = map[string]bool{
	".txt":  true,
	".md":   true,
	".log":  true,
	".json": true,
	".xml":  true,
	".yaml": true,
	".yml":  true,
	".csv":  true,
	".html": true,
	".htm":  true,
}

// TextExtractor captions plain-text files from their leading content.
type TextExtractor struct{}

// NewTextExtractor creates a new text extractor
func NewTextExtractor() *TextExtractor {
	return &TextExtractor{}
}

// Name returns the extractor name
func (t *TextExtractor) Name() string {
	return "text"
}

// CanHandle checks if this is a text file
func (t *TextExtractor) CanHandle(path string) bool {
	return textExtensions[strings.ToLower(filepath.Ext(path))]
}

// Extract reads the head of the file and collapses it into a caption.
// Non-UTF-8 content yields an empty caption, not an error.
func (t *TextExtractor) Extract(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	content := make([]byte, maxCaptionReadBytes)
	n, err := io.ReadFull(file, content)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	content = content[:n]

	// The read boundary can split a multi-byte rune; drop at most three
	// trailing bytes before declaring the content binary.
	for i := 0; i < 3 && len(content) > 0 && !utf8.Valid(content); i++ {
		content = content[:len(content)-1]
	}
	if !utf8.Valid(content) {
		return "", nil
	}

	return collapseCaption(string(content), maxCaptionLen), nil
}
