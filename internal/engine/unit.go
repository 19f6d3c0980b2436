package engine

import "fmt"

// Unit is one independently compressible input: a whole file on disk or an
// in-memory fragment of an oversized image. The variants are sealed so
// dispatch sites can type-switch exhaustively.
type Unit interface {
	// Name identifies the unit in logs and error records.
	Name() string

	isUnit()
}

// WholeFile is a filesystem path to compress into an output file.
type WholeFile struct {
	Path string
}

// Fragment is a horizontal band cut from an oversized image. It never gets
// its own output file; its result carries an in-memory buffer tagged with the
// band's position.
type Fragment struct {
	// Data is the band's pixel payload, encoded losslessly.
	Data []byte
	// Index is the band's position, 0-based from the top.
	Index int
	// Total is the number of bands the origin was cut into.
	Total int
	// Origin is the path of the file the band was cut from.
	Origin string
	// Ext is the origin file's extension, including the dot.
	Ext string
}

func (WholeFile) isUnit() {}
func (Fragment) isUnit()  {}

// Name returns the file path.
func (w WholeFile) Name() string { return w.Path }

// Name returns the origin path tagged with the band position.
func (f Fragment) Name() string {
	return fmt.Sprintf("%s#%d/%d", f.Origin, f.Index, f.Total)
}
