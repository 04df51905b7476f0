package analyzer

import (
	"path/filepath"
	"regexp"
	"strings"
)

// CategoryOther is the fallback for extensions no rule covers.
const CategoryOther = "Other"

// categoryRules maps a lowercase file extension to its category folder.
var categoryRules = map[string]string{
	// Images
	".jpg":  "Images",
	".jpeg": "Images",
	".png":  "Images",
	".gif":  "Images",
	".bmp":  "Images",
	".webp": "Images",
	".svg":  "Images",
	".ico":  "Images",
	".tiff": "Images",
	".heic": "Images",

	// Documents
	".pdf":  "Documents",
	".doc":  "Documents",
	".docx": "Documents",
	".txt":  "Documents",
	".rtf":  "Documents",
	".odt":  "Documents",
	".xls":  "Documents",
	".xlsx": "Documents",
	".ppt":  "Documents",
	".pptx": "Documents",
	".csv":  "Documents",

	// Videos
	".mp4":  "Videos",
	".mov":  "Videos",
	".avi":  "Videos",
	".mkv":  "Videos",
	".wmv":  "Videos",
	".flv":  "Videos",
	".webm": "Videos",
	".m4v":  "Videos",

	// Audio
	".mp3":  "Audio",
	".wav":  "Audio",
	".flac": "Audio",
	".aac":  "Audio",
	".ogg":  "Audio",
	".wma":  "Audio",
	".m4a":  "Audio",

	// Archives
	".zip": "Archives",
	".rar": "Archives",
	".7z":  "Archives",
	".tar": "Archives",
	".gz":  "Archives",

	// Code
	".py":   "Code",
	".js":   "Code",
	".ts":   "Code",
	".html": "Code",
	".css":  "Code",
	".java": "Code",
	".cpp":  "Code",
	".c":    "Code",
	".h":    "Code",
	".json": "Code",
	".xml":  "Code",
	".yaml": "Code",
	".yml":  "Code",

	// Installers
	".exe": "Installers",
	".msi": "Installers",
	".dmg": "Installers",
	".app": "Installers",
}

// screenshotPatterns match filenames that indicate a screen capture,
// regardless of extension.
var screenshotPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)screenshot`),
	regexp.MustCompile(`(?i)screen.?shot`),
	regexp.MustCompile(`(?i)snip`),
	regexp.MustCompile(`(?i)capture`),
	regexp.MustCompile(`(?i)screen.?cap`),
	regexp.MustCompile(`(?i)^ss_`),
	regexp.MustCompile(`(?i)^sc_`),
}

// ignorePatterns match files bulk indexing skips entirely: hidden files,
// editor/OS droppings, temp files.
var ignorePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^\..*`),
	regexp.MustCompile(`(?i).*\.tmp$`),
	regexp.MustCompile(`(?i).*\.temp$`),
	regexp.MustCompile(`(?i)^~.*`),
	regexp.MustCompile(`(?i)^thumbs\.db$`),
	regexp.MustCompile(`(?i)^desktop\.ini$`),
	regexp.MustCompile(`(?i)^ntuser\..*`),
}

// CategoryFor returns the category folder for a file name based on its
// extension.
func CategoryFor(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if category, ok := categoryRules[ext]; ok {
		return category
	}
	return CategoryOther
}

// LabelFor returns a name-derived label, currently only "screenshot", or
// an empty string.
func LabelFor(name string) string {
	for _, pattern := range screenshotPatterns {
		if pattern.MatchString(name) {
			return "screenshot"
		}
	}
	return ""
}

// ShouldIgnore reports whether bulk indexing should skip the file name.
func ShouldIgnore(name string) bool {
	for _, pattern := range ignorePatterns {
		if pattern.MatchString(name) {
			return true
		}
	}
	return false
}
