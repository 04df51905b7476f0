package analyzer

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/tidyfolder/tidyfolder/pkg/logger"
)

var log *logrus.Entry

func init() {
	log = logger.WithName("analyzer")
}

// Metadata is what local analysis knows about a file: enough for the
// planner to group it sensibly, nothing that requires network access.
type Metadata struct {
	Category string
	Label    string
	Caption  string
	Tags     []string
}

// Analyzer produces metadata for a single file.
type Analyzer interface {
	Analyze(ctx context.Context, path string, info os.FileInfo) (*Metadata, error)
}

// CaptionExtractor pulls a short content caption out of a file. Extractors
// are tried in registration order; the first one that can handle the path
// wins.
type CaptionExtractor interface {
	// Name returns a human-readable name for this extractor
	Name() string

	// CanHandle returns true if this extractor can process the given file
	CanHandle(path string) bool

	// Extract returns a short caption for the file content
	Extract(ctx context.Context, path string) (string, error)
}

// FileAnalyzer is the rule-based local analyzer: extension rules for the
// category, filename patterns for the label, content extractors for the
// caption.
type FileAnalyzer struct {
	extractors []CaptionExtractor
}

// New creates a FileAnalyzer with the default extractors registered.
func New() *FileAnalyzer {
	return &FileAnalyzer{
		extractors: []CaptionExtractor{
			NewTextExtractor(),
			NewPDFExtractor(),
		},
	}
}

// Analyze derives metadata for the file at path. Caption extraction
// failures are logged and leave the caption empty; they never fail the
// analysis.
func (a *FileAnalyzer) Analyze(ctx context.Context, path string, info os.FileInfo) (*Metadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	name := filepath.Base(path)
	meta := &Metadata{
		Category: CategoryFor(name),
		Label:    LabelFor(name),
	}

	for _, extractor := range a.extractors {
		if !extractor.CanHandle(path) {
			continue
		}
		caption, err := extractor.Extract(ctx, path)
		if err != nil {
			log.WithFields(logrus.Fields{
				"path":      path,
				"extractor": extractor.Name(),
			}).WithError(err).Debug("Caption extraction failed")
			break
		}
		meta.Caption = caption
		break
	}

	meta.Tags = buildTags(name, meta.Category, meta.Label)
	return meta, nil
}

// buildTags derives deterministic tags from what the rules already know.
func buildTags(name, category, label string) []string {
	var tags []string
	if category != "" && category != CategoryOther {
		tags = append(tags, strings.ToLower(category))
	}
	if ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), "."); ext != "" {
		tags = append(tags, ext)
	}
	if label != "" {
		tags = append(tags, label)
	}
	return tags
}

// collapseCaption squeezes runs of whitespace and truncates to the caption
// length limit.
func collapseCaption(text string, maxLen int) string {
	collapsed := strings.Join(strings.Fields(text), " ")
	runes := []rune(collapsed)
	if len(runes) > maxLen {
		return string(runes[:maxLen])
	}
	return collapsed
}
