package history

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndLookup(t *testing.T) {
	s := openTestStore(t)
	mtime := time.Now().Truncate(time.Second)

	if s.AlreadyCompressed("/photos/a.png", 1000, mtime) {
		t.Error("empty ledger reported a match")
	}

	s.Record(Entry{
		Path:           "/photos/a.png",
		Size:           1000,
		ModTime:        mtime,
		OutputPath:     "/out/a.webp",
		CompressedSize: 400,
	})

	if !s.AlreadyCompressed("/photos/a.png", 1000, mtime) {
		t.Error("recorded entry not found")
	}
}

func TestLookupMissesOnChangedFile(t *testing.T) {
	s := openTestStore(t)
	mtime := time.Now().Truncate(time.Second)
	s.Record(Entry{Path: "/photos/a.png", Size: 1000, ModTime: mtime})

	if s.AlreadyCompressed("/photos/a.png", 2000, mtime) {
		t.Error("size change should miss")
	}
	if s.AlreadyCompressed("/photos/a.png", 1000, mtime.Add(time.Hour)) {
		t.Error("mtime change should miss")
	}
	if s.AlreadyCompressed("/photos/b.png", 1000, mtime) {
		t.Error("different path should miss")
	}
}

func TestRecordIsUpsert(t *testing.T) {
	s := openTestStore(t)
	mtime := time.Now().Truncate(time.Second)
	e := Entry{Path: "/photos/a.png", Size: 1000, ModTime: mtime}
	s.Record(e)
	s.Record(e)

	if !s.AlreadyCompressed("/photos/a.png", 1000, mtime) {
		t.Error("entry lost after duplicate record")
	}
}

func TestNilStoreIsInert(t *testing.T) {
	var s *Store
	s.Record(Entry{Path: "/photos/a.png"})
	if s.AlreadyCompressed("/photos/a.png", 1, time.Now()) {
		t.Error("nil store reported a match")
	}
	if err := s.Close(); err != nil {
		t.Errorf("nil Close: %v", err)
	}
}

func TestHasEncoderTagNonJPEG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plain.jpg")
	if err := os.WriteFile(path, []byte("no exif here"), 0644); err != nil {
		t.Fatal(err)
	}
	if HasEncoderTag(path) {
		t.Error("tag reported on a file without EXIF")
	}
	if HasEncoderTag(filepath.Join(t.TempDir(), "missing.jpg")) {
		t.Error("tag reported on a missing file")
	}
}
