// Package sysinfo reads coarse host facts (CPU count, memory, disk
// rotational flags) from /proc and /sys and turns them into advisory
// warnings about a planned worker count. It never blocks a run; callers log
// the warnings and proceed.
package sysinfo
