// Package fragment splits very large images into horizontal bands so a
// single oversized file can occupy several workers at once. Files below the
// size threshold, non-images, and anything that fails to decode pass through
// unchanged as whole files.
package fragment
