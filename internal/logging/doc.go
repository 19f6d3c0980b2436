// Package logging provides leveled logging controlled by the LOG_LEVEL and
// DEBUG environment variables. The level is resolved once on first use.
package logging
