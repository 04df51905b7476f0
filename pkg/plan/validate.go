package plan

import (
	"fmt"
	"strings"

	"github.com/tidyfolder/tidyfolder/internal/models"
)

// DefaultMaxDepth bounds how deeply a proposed folder may nest.
const DefaultMaxDepth = 2

// Folder names that must never be created regardless of instruction. Exact
// lowercase match on the whole name.
var reservedFolderNames = map[string]bool{
	"system32":      true,
	"windows":       true,
	"program files": true,
	"programdata":   true,
	"$recycle.bin":  true,
}

// Validate is the safety gate every plan passes before anything touches
// disk. It collects every violation instead of stopping at the first, so a
// rejected plan can be diagnosed in one pass. Pure function of its
// arguments; no I/O.
//
// Folder names must be relative, at most maxDepth segments, free of
// traversal and drive separators, and not a reserved system name. Every
// file reference must be numeric, known, and assigned to exactly one
// folder.
func Validate(p *models.Plan, validIDs map[int64]bool, maxDepth int) (bool, []string) {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}

	if p == nil {
		return false, []string{"plan is empty"}
	}
	if p.Folders == nil {
		return false, []string{"plan must contain a 'folders' object"}
	}

	var violations []string
	seen := make(map[int64]bool)

	for _, folder := range p.Folders {
		name := folder.Name

		if name == "" {
			violations = append(violations, "invalid folder name: empty")
			continue
		}
		if strings.Contains(name, "..") {
			violations = append(violations, fmt.Sprintf("path traversal not allowed: %s", name))
			continue
		}
		if strings.HasPrefix(name, "/") || strings.HasPrefix(name, "\\") {
			violations = append(violations, fmt.Sprintf("absolute paths not allowed: %s", name))
			continue
		}
		if strings.Contains(name, ":") {
			violations = append(violations, fmt.Sprintf("drive letters not allowed: %s", name))
			continue
		}
		if reservedFolderNames[strings.ToLower(name)] {
			violations = append(violations, fmt.Sprintf("system folder name not allowed: %s", name))
			continue
		}
		depth := strings.Count(strings.ReplaceAll(name, "\\", "/"), "/") + 1
		if depth > maxDepth {
			violations = append(violations, fmt.Sprintf("folder too deep (%d > %d): %s", depth, maxDepth, name))
		}

		for _, id := range folder.IDs {
			if !id.Numeric {
				violations = append(violations, fmt.Sprintf("invalid file id: %s", id.Raw))
				continue
			}
			switch {
			case !validIDs[id.Value]:
				violations = append(violations, fmt.Sprintf("unknown file id: %d", id.Value))
			case seen[id.Value]:
				violations = append(violations, fmt.Sprintf("duplicate file id: %d (appears in multiple folders)", id.Value))
			}
			seen[id.Value] = true
		}
	}

	if len(violations) > 0 {
		log.WithField("violations", len(violations)).Warn("Plan rejected by validation")
		return false, violations
	}
	return true, nil
}
