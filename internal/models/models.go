package models

// FileRecord represents one indexed file. Identity is ID, assigned by the
// index store and stable across renames; Path is updated after every
// successful move.
type FileRecord struct {
	ID        int64    `db:"id" json:"id,omitempty"`
	Path      string   `db:"path" json:"path"`
	Name      string   `db:"name" json:"name"`
	SizeBytes int64    `db:"size" json:"sizeBytes"`
	Tags      []string `db:"-" json:"tags,omitempty"`
	Caption   string   `db:"caption" json:"caption,omitempty"`
	Label     string   `db:"label" json:"label,omitempty"`
	Category  string   `db:"category" json:"category,omitempty"`
	Mtime     int64    `db:"mtime" json:"mtime"`          // Unix timestamp in seconds
	IndexedAt int64    `db:"indexed_at" json:"indexedAt"` // Unix timestamp in seconds
}

// FileSummary is the view of a file sent to the planner: enough metadata to
// decide where it belongs, nothing the planner could abuse (no paths).
type FileSummary struct {
	ID        int64    `json:"id"`
	Name      string   `json:"name"`
	SizeBytes int64    `json:"sizeBytes"`
	Label     string   `json:"label,omitempty"`
	Caption   string   `json:"caption,omitempty"`
	Tags      []string `json:"tags,omitempty"`
}

// Summary converts a record to the planner-facing view.
func (r *FileRecord) Summary() FileSummary {
	return FileSummary{
		ID:        r.ID,
		Name:      r.Name,
		SizeBytes: r.SizeBytes,
		Label:     r.Label,
		Caption:   r.Caption,
		Tags:      r.Tags,
	}
}
