package watcher

import (
	"path/filepath"
	"strings"
)

// ignoredNames are OS artifacts that never enter the pending set.
var ignoredNames = map[string]bool{
	".ds_store":   true,
	"thumbs.db":   true,
	"desktop.ini": true,
}

// ignoredExtensions mark in-progress downloads and scratch files.
var ignoredExtensions = map[string]bool{
	".tmp":        true,
	".crdownload": true,
	".part":       true,
}

// Ignored reports whether a file name is filtered before it can become
// pending. Dotfiles are covered wholesale.
func Ignored(name string) bool {
	lower := strings.ToLower(name)
	if strings.HasPrefix(lower, ".") {
		return true
	}
	if ignoredNames[lower] {
		return true
	}
	return ignoredExtensions[filepath.Ext(lower)]
}
