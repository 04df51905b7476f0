package index

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
	"github.com/tidyfolder/tidyfolder/internal/models"
	"github.com/tidyfolder/tidyfolder/pkg/logger"
)

var log *logrus.Entry

func init() {
	log = logger.WithName("index")
}

// Store is the durable file index backed by SQLite. Every file the system
// has ever analyzed gets a row here; the row's id is the identity the
// planner sees and the identity move plans are expressed in.
type Store struct {
	db         *sql.DB
	upsertStmt *sql.Stmt
}

// NewStore opens (creating if necessary) the index database at path.
func NewStore(path string) (*Store, error) {
	log.WithField("path", path).Info("Opening file index")

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open index: %w", err)
	}

	store := &Store{db: db}
	if err := store.init(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize index: %w", err)
	}

	if err := store.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}

	return store, nil
}

// Close closes the index database
func (s *Store) Close() error {
	if s.upsertStmt != nil {
		s.upsertStmt.Close()
	}
	return s.db.Close()
}

// init creates the files table and indexes
func (s *Store) init() error {
	log.Debug("Creating tables and indexes")

	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS files (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		path TEXT UNIQUE NOT NULL,
		parent TEXT,
		name TEXT NOT NULL,
		size INTEGER,
		category TEXT,
		label TEXT,
		caption TEXT,
		tags TEXT,
		mtime INTEGER,
		indexed_at INTEGER
	)`); err != nil {
		return err
	}

	if _, err := s.db.Exec("CREATE INDEX IF NOT EXISTS idx_files_parent ON files(parent)"); err != nil {
		return err
	}

	if _, err := s.db.Exec("CREATE INDEX IF NOT EXISTS idx_files_mtime ON files(mtime)"); err != nil {
		return err
	}

	log.Debug("Index initialization complete")
	return nil
}

// prepareStatements prepares commonly used SQL statements
func (s *Store) prepareStatements() error {
	var err error
	s.upsertStmt, err = s.db.Prepare(`
		INSERT INTO files
			(path, parent, name, size, category, label, caption, tags, mtime, indexed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			parent=excluded.parent,
			name=excluded.name,
			size=excluded.size,
			category=excluded.category,
			label=excluded.label,
			caption=excluded.caption,
			tags=excluded.tags,
			mtime=excluded.mtime,
			indexed_at=excluded.indexed_at
	`)
	return err
}

// Put inserts or updates a record keyed by path and fills in record.ID with
// the durable row id. Re-indexing a path keeps its existing id.
func (s *Store) Put(record *models.FileRecord) error {
	if logger.IsLevelEnabled(logrus.TraceLevel) {
		log.WithFields(logrus.Fields{
			"path":     record.Path,
			"category": record.Category,
			"size":     record.SizeBytes,
		}).Trace("Upserting file record")
	}

	if record.IndexedAt == 0 {
		record.IndexedAt = time.Now().Unix()
	}

	tags, err := marshalTags(record.Tags)
	if err != nil {
		return fmt.Errorf("failed to encode tags: %w", err)
	}

	_, err = s.upsertStmt.Exec(
		record.Path,
		filepath.Dir(record.Path),
		record.Name,
		record.SizeBytes,
		record.Category,
		record.Label,
		record.Caption,
		tags,
		record.Mtime,
		record.IndexedAt,
	)
	if err != nil {
		return err
	}

	// LastInsertId is unreliable through the upsert's UPDATE arm, so read
	// the id back by path.
	return s.db.QueryRow(`SELECT id FROM files WHERE path = ?`, record.Path).Scan(&record.ID)
}

// GetByPath retrieves a record by its current path. Returns nil when the
// path has never been indexed.
func (s *Store) GetByPath(path string) (*models.FileRecord, error) {
	if logger.IsLevelEnabled(logrus.TraceLevel) {
		log.WithField("path", path).Trace("Fetching record by path")
	}

	row := s.db.QueryRow(selectColumns+` WHERE path = ?`, path)
	record, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return record, err
}

// GetByID retrieves a record by its durable id. Returns nil when no such
// id exists.
func (s *Store) GetByID(id int64) (*models.FileRecord, error) {
	if logger.IsLevelEnabled(logrus.TraceLevel) {
		log.WithField("id", id).Trace("Fetching record by id")
	}

	row := s.db.QueryRow(selectColumns+` WHERE id = ?`, id)
	record, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return record, err
}

// ListFolder retrieves all records whose path sits directly inside dir.
func (s *Store) ListFolder(dir string) ([]*models.FileRecord, error) {
	if logger.IsLevelEnabled(logrus.TraceLevel) {
		log.WithField("dir", dir).Trace("Listing folder records")
	}

	rows, err := s.db.Query(selectColumns+` WHERE parent = ? ORDER BY id`, dir)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*models.FileRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	return records, rows.Err()
}

// ListUnder retrieves all records at or below root, recursively.
func (s *Store) ListUnder(root string) ([]*models.FileRecord, error) {
	rows, err := s.db.Query(
		selectColumns+` WHERE parent = ? OR parent LIKE ? ORDER BY id`,
		root,
		root+string(filepath.Separator)+"%",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*models.FileRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	return records, rows.Err()
}

// UpdatePath rewrites a record's path after a successful move. The id, and
// with it everything the planner knows about the file, is unchanged.
func (s *Store) UpdatePath(id int64, newPath string) error {
	if logger.IsLevelEnabled(logrus.TraceLevel) {
		log.WithFields(logrus.Fields{
			"id":      id,
			"newPath": newPath,
		}).Trace("Updating record path")
	}

	result, err := s.db.Exec(
		`UPDATE files SET path = ?, parent = ?, name = ? WHERE id = ?`,
		newPath,
		filepath.Dir(newPath),
		filepath.Base(newPath),
		id,
	)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("no record with id %d", id)
	}
	return nil
}

// Delete removes the record for a path. Deleting an unknown path is a no-op.
func (s *Store) Delete(path string) error {
	_, err := s.db.Exec(`DELETE FROM files WHERE path = ?`, path)
	return err
}

// GetFileCount returns the total number of indexed files.
func (s *Store) GetFileCount() (int64, error) {
	var count int64
	err := s.db.QueryRow(`SELECT COUNT(*) FROM files`).Scan(&count)
	return count, err
}

const selectColumns = `SELECT id, path, name, size, category, label, caption, tags, mtime, indexed_at FROM files`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (*models.FileRecord, error) {
	var record models.FileRecord
	var category, label, caption, tags sql.NullString

	err := row.Scan(
		&record.ID,
		&record.Path,
		&record.Name,
		&record.SizeBytes,
		&category,
		&label,
		&caption,
		&tags,
		&record.Mtime,
		&record.IndexedAt,
	)
	if err != nil {
		return nil, err
	}

	record.Category = category.String
	record.Label = label.String
	record.Caption = caption.String
	if tags.Valid {
		parsed, err := unmarshalTags(tags.String)
		if err != nil {
			return nil, fmt.Errorf("failed to decode tags for %s: %w", record.Path, err)
		}
		record.Tags = parsed
	}

	return &record, nil
}

func marshalTags(tags []string) (string, error) {
	if len(tags) == 0 {
		return "", nil
	}
	data, err := json.Marshal(tags)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func unmarshalTags(data string) ([]string, error) {
	if data == "" {
		return nil, nil
	}
	var tags []string
	if err := json.Unmarshal([]byte(data), &tags); err != nil {
		return nil, err
	}
	return tags, nil
}
