// Package workers derives worker counts from CPU topology and job
// characteristics. The derived count is clamped to a sane range and can be
// overridden through the IMGPRESS_WORKERS environment variable.
package workers
