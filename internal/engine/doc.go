// Package engine implements adaptive image compression: automatic format
// selection by racing candidate encodes, binary search from a byte budget to
// concrete quality parameters, and a multi-strategy catalog race for extreme
// budgets. Encoding is delegated to a Source opened by a codec Opener, so the
// search logic is independent of any particular codec library.
package engine
