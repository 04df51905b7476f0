package models

import (
	"strconv"
	"time"
)

// RawPlan is the unparsed planner response. It is an arbitrary blob until
// the defensive decoder has extracted a Plan from it.
type RawPlan string

// PlanID is one file reference inside a plan. The planner is untrusted, so
// a reference may not be numeric at all; the raw token is kept so the
// validator can name it in a violation instead of the decoder dropping it.
type PlanID struct {
	Value   int64
	Raw     string
	Numeric bool
}

// NumericPlanID builds a reference to a known file id.
func NumericPlanID(id int64) PlanID {
	return PlanID{Value: id, Raw: strconv.FormatInt(id, 10), Numeric: true}
}

// String returns the original token as the planner produced it.
func (p PlanID) String() string {
	return p.Raw
}

// PlanFolder is one proposed folder and the files assigned to it.
type PlanFolder struct {
	Name string
	IDs  []PlanID
}

// Plan is a parsed, not-yet-trusted folder assignment. Folders keep the
// order of the planner's JSON object keys so deduplication and compilation
// stay deterministic; a Go map would randomize them.
type Plan struct {
	Folders []PlanFolder
}

// Folder returns the folder with the given name, or nil.
func (p *Plan) Folder(name string) *PlanFolder {
	for i := range p.Folders {
		if p.Folders[i].Name == name {
			return &p.Folders[i]
		}
	}
	return nil
}

// FileCount returns the total number of file references across all folders.
func (p *Plan) FileCount() int {
	n := 0
	for _, f := range p.Folders {
		n += len(f.IDs)
	}
	return n
}

// MoveOp is one concrete planned move. Immutable once compiled; DestPath is
// collision-free within its batch and against disk at compile time.
type MoveOp struct {
	FileID     int64  `json:"fileId"`
	FileName   string `json:"fileName"`
	SourcePath string `json:"sourcePath"`
	DestPath   string `json:"destPath"`
	DestFolder string `json:"destFolder"`
	SizeBytes  int64  `json:"sizeBytes"`
}

// SkipReason classifies why the compiler emitted no MoveOp for a file.
// These are counted outcomes, not errors.
type SkipReason int

const (
	SkipNone SkipReason = iota
	SkipNotFound              // file vanished from disk before compilation
	SkipAlreadyPlaced         // already inside its assigned destination folder
	SkipNoMetadata            // no FileRecord available for the id
)

// String names the reason for status reporting.
func (s SkipReason) String() string {
	switch s {
	case SkipNotFound:
		return "not-found"
	case SkipAlreadyPlaced:
		return "already-in-place"
	case SkipNoMetadata:
		return "no-metadata"
	default:
		return "none"
	}
}

// MovePair is one executed move inside a MoveLogEntry.
type MovePair struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// RenamedFile records a collision-safe rename applied during a batch.
type RenamedFile struct {
	OriginalName string `json:"originalName"`
	NewName      string `json:"newName"`
}

// MoveLogEntry is the durable record of one executed batch, written as a
// standalone JSON document and used for both audit display and undo.
type MoveLogEntry struct {
	Timestamp    time.Time     `json:"timestamp"`
	BatchID      string        `json:"batchId,omitempty"`
	DestRoot     string        `json:"destRoot,omitempty"`
	Moves        []MovePair    `json:"moves"`
	RenamedFiles []RenamedFile `json:"renamedFiles"`
	SuccessCount int           `json:"successCount"`
	TotalCount   int           `json:"totalCount"`
}
