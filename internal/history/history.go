package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"imgpress/internal/logging"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rwcarlsen/goexif/exif"
)

// EncoderTag is the Software marker written into outputs that carry EXIF, and
// recognized when deciding whether a JPEG was already produced by us.
const EncoderTag = "imgpress"

// Store records which inputs have already been compressed so repeat batches
// can skip them. A nil *Store is valid and disables skipping.
type Store struct {
	db *sql.DB
}

// Entry is one recorded compression.
type Entry struct {
	Path           string
	Size           int64
	ModTime        time.Time
	OutputPath     string
	CompressedSize int64
}

// Open creates or opens the ledger database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create ledger dir: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS compressions (
		path            TEXT    NOT NULL,
		size            INTEGER NOT NULL,
		mod_time        INTEGER NOT NULL,
		output_path     TEXT    NOT NULL,
		compressed_size INTEGER NOT NULL,
		created_at      INTEGER NOT NULL,
		PRIMARY KEY (path, size, mod_time)
	);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init ledger schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	return s.db.Close()
}

// AlreadyCompressed reports whether this exact input (path, size, mtime) was
// recorded before. JPEG inputs additionally match on the EXIF Software tag so
// ledger loss does not cause endless re-encoding.
func (s *Store) AlreadyCompressed(path string, size int64, modTime time.Time) bool {
	if s != nil {
		var n int
		err := s.db.QueryRow(
			`SELECT COUNT(*) FROM compressions WHERE path = ? AND size = ? AND mod_time = ?`,
			path, size, modTime.Unix(),
		).Scan(&n)
		if err != nil {
			logging.Warn("ledger lookup for %s failed: %v", path, err)
		} else if n > 0 {
			return true
		}
	}

	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".jpg" || ext == ".jpeg" {
		return HasEncoderTag(path)
	}
	return false
}

// Record stores one compression outcome. Failures are logged, not fatal: the
// ledger is an optimization, not a correctness requirement.
func (s *Store) Record(e Entry) {
	if s == nil {
		return
	}
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO compressions
		 (path, size, mod_time, output_path, compressed_size, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.Path, e.Size, e.ModTime.Unix(), e.OutputPath, e.CompressedSize, time.Now().Unix(),
	)
	if err != nil {
		logging.Warn("ledger record for %s failed: %v", e.Path, err)
	}
}

// HasEncoderTag reports whether the file's EXIF Software tag names this
// encoder. Any read or parse failure means "no".
func HasEncoderTag(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return false
	}
	tag, err := x.Get(exif.Software)
	if err != nil {
		return false
	}
	val, err := tag.StringVal()
	if err != nil {
		return false
	}
	return strings.Contains(val, EncoderTag)
}
