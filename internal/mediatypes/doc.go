// Package mediatypes classifies file extensions into the media kinds the
// compression pipeline understands, and maps them to MIME types.
package mediatypes
