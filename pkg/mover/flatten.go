package mover

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/tidyfolder/tidyfolder/pkg/pathutil"
)

// FlattenOptions configures one Flatten call.
type FlattenOptions struct {
	// OnMoved runs after each file reaches the top level.
	OnMoved func(from, to string)
}

// FlattenResult reports one flatten operation.
type FlattenResult struct {
	Moved          int
	Errors         []string
	RemovedFolders int
}

// Flatten moves every file below root's top level up to root, renaming on
// collision the same way the compiler does, then removes the emptied
// subdirectories. This is an explicit pre-step for re-partitioning a folder
// under a new instruction; nothing ever triggers it implicitly.
func Flatten(ctx context.Context, root string) (*FlattenResult, error) {
	return FlattenWithOptions(ctx, root, FlattenOptions{})
}

// FlattenWithOptions is Flatten with per-move callbacks.
func FlattenWithOptions(ctx context.Context, root string, opts FlattenOptions) (*FlattenResult, error) {
	root, err := pathutil.ExpandAndValidatePath(root)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", root)
	}

	// Snapshot first so the walk never sees its own moves.
	var buried []string
	err = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			log.WithError(err).WithField("path", path).Warn("Skipping unreadable path")
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !d.IsDir() && filepath.Dir(path) != root {
			buried = append(buried, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result := &FlattenResult{}
	for _, source := range buried {
		if err := ctx.Err(); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("flatten stopped: %v", err))
			break
		}

		name := filepath.Base(source)
		dest := filepath.Join(root, name)
		ext := filepath.Ext(name)
		stem := strings.TrimSuffix(name, ext)
		for counter := 1; pathTaken(dest); counter++ {
			dest = filepath.Join(root, fmt.Sprintf("%s (%d)%s", stem, counter, ext))
		}

		if err := moveFile(source, dest); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", name, err))
			log.WithError(err).WithField("path", source).Warn("Failed to flatten file")
			continue
		}
		result.Moved++
		if opts.OnMoved != nil {
			opts.OnMoved(source, dest)
		}
		log.WithFields(logrus.Fields{
			"file": name,
			"root": root,
		}).Debug("Flattened file to top level")
	}

	if result.Moved > 0 {
		result.RemovedFolders = SweepEmptyFolders(root)
		log.WithFields(logrus.Fields{
			"moved":   result.Moved,
			"removed": result.RemovedFolders,
		}).Info("Flattened folder")
	}
	return result, nil
}
