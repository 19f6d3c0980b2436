// Package history keeps a ledger of already-compressed files in a SQLite
// database keyed by path, size, and modification time, so repeat runs skip
// work. For JPEGs it can also recognize the encoder tag left in EXIF
// metadata by earlier runs.
package history
