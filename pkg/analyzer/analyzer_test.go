package analyzer

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategoryFor(t *testing.T) {
	tests := []struct {
		name     string
		expected string
	}{
		{"photo.jpg", "Images"},
		{"photo.JPG", "Images"}, // Test case insensitivity
		{"diagram.svg", "Images"},
		{"report.pdf", "Documents"},
		{"notes.txt", "Documents"},
		{"sheet.xlsx", "Documents"},
		{"clip.mp4", "Videos"},
		{"song.mp3", "Audio"},
		{"bundle.zip", "Archives"},
		{"main.py", "Code"},
		{"config.yaml", "Code"},
		{"setup.exe", "Installers"},
		{"installer.dmg", "Installers"},
		{"unknown.xyz", "Other"},
		{"noextension", "Other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CategoryFor(tt.name))
		})
	}
}

func TestLabelFor(t *testing.T) {
	tests := []struct {
		name     string
		expected string
	}{
		{"Screenshot 2025-06-01 at 10.30.00.png", "screenshot"},
		{"screen shot 1.png", "screenshot"},
		{"Snip_20250601.png", "screenshot"},
		{"Capture.PNG", "screenshot"},
		{"ss_home.png", "screenshot"},
		{"sc_login.jpg", "screenshot"},
		{"vacation.jpg", ""},
		{"report.pdf", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, LabelFor(tt.name))
		})
	}
}

func TestShouldIgnore(t *testing.T) {
	tests := []struct {
		name     string
		expected bool
	}{
		{".DS_Store", true},
		{".hidden", true},
		{"draft.tmp", true},
		{"draft.TEMP", true},
		{"~$report.docx", true},
		{"Thumbs.db", true},
		{"desktop.ini", true},
		{"ntuser.dat", true},
		{"report.pdf", false},
		{"photo.jpg", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ShouldIgnore(tt.name))
		})
	}
}

func TestAnalyze(t *testing.T) {
	tmpDir := t.TempDir()
	a := New()

	t.Run("text file gets category, tags, and caption", func(t *testing.T) {
		path := filepath.Join(tmpDir, "notes.txt")
		content := "Meeting notes\n\nDiscussed   the Q3 roadmap\nand hiring."
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))

		info, err := os.Stat(path)
		require.NoError(t, err)

		meta, err := a.Analyze(context.Background(), path, info)
		require.NoError(t, err)
		assert.Equal(t, "Documents", meta.Category)
		assert.Empty(t, meta.Label)
		assert.Equal(t, "Meeting notes Discussed the Q3 roadmap and hiring.", meta.Caption)
		assert.Contains(t, meta.Tags, "documents")
		assert.Contains(t, meta.Tags, "txt")
	})

	t.Run("screenshot name produces label and tag", func(t *testing.T) {
		path := filepath.Join(tmpDir, "Screenshot 2025-06-01.png")
		require.NoError(t, os.WriteFile(path, []byte{0x89, 0x50, 0x4e, 0x47}, 0644))

		info, err := os.Stat(path)
		require.NoError(t, err)

		meta, err := a.Analyze(context.Background(), path, info)
		require.NoError(t, err)
		assert.Equal(t, "Images", meta.Category)
		assert.Equal(t, "screenshot", meta.Label)
		assert.Contains(t, meta.Tags, "screenshot")
	})

	t.Run("cancelled context fails", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		path := filepath.Join(tmpDir, "any.txt")
		require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
		info, err := os.Stat(path)
		require.NoError(t, err)

		_, err = a.Analyze(ctx, path, info)
		assert.Error(t, err)
	})
}

func TestTextExtractor(t *testing.T) {
	tmpDir := t.TempDir()
	extractor := NewTextExtractor()

	t.Run("handles text extensions only", func(t *testing.T) {
		assert.True(t, extractor.CanHandle("file.txt"))
		assert.True(t, extractor.CanHandle("file.MD"))
		assert.True(t, extractor.CanHandle("file.csv"))
		assert.False(t, extractor.CanHandle("file.pdf"))
		assert.False(t, extractor.CanHandle("file.jpg"))
	})

	t.Run("caption is whitespace-collapsed and bounded", func(t *testing.T) {
		path := filepath.Join(tmpDir, "long.txt")
		content := strings.Repeat("word ", 200)
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))

		caption, err := extractor.Extract(context.Background(), path)
		require.NoError(t, err)
		assert.LessOrEqual(t, len([]rune(caption)), maxCaptionLen)
		assert.False(t, strings.Contains(caption, "  "))
	})

	t.Run("binary content yields empty caption", func(t *testing.T) {
		path := filepath.Join(tmpDir, "binary.txt")
		require.NoError(t, os.WriteFile(path, []byte{0xff, 0xfe, 0x00, 0x01, 0x02}, 0644))

		caption, err := extractor.Extract(context.Background(), path)
		require.NoError(t, err)
		assert.Empty(t, caption)
	})

	t.Run("missing file errors", func(t *testing.T) {
		_, err := extractor.Extract(context.Background(), filepath.Join(tmpDir, "missing.txt"))
		assert.Error(t, err)
	})
}

func TestPDFExtractorCanHandle(t *testing.T) {
	extractor := NewPDFExtractor()
	assert.True(t, extractor.CanHandle("report.pdf"))
	assert.True(t, extractor.CanHandle("report.PDF"))
	assert.False(t, extractor.CanHandle("report.txt"))
}

func TestCollapseCaption(t *testing.T) {
	assert.Equal(t, "a b c", collapseCaption("  a\n\nb\t c ", 200))
	assert.Equal(t, "abc", collapseCaption("abcdef", 3))
	assert.Equal(t, "", collapseCaption("   \n\t  ", 200))
}
