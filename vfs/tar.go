package vfs

import (
	"archive/tar"
	"io"
)

// archiveTarReader adapts the standard library's archive/tar.Reader to
// the TarReader interface PopulateFromTAR consumes, reading regular
// file contents fully into memory and asserting the read length
// matches the declared size before returning.
type archiveTarReader struct{ tr *tar.Reader }

// NewArchiveTarReader wraps r (e.g. bytes.NewReader(image)) as a
// TarReader over the standard tar format.
func NewArchiveTarReader(r io.Reader) TarReader {
	return &archiveTarReader{tr: tar.NewReader(r)}
}

func (a *archiveTarReader) Next() (TarHeader, []byte, error) {
	hdr, err := a.tr.Next()
	if err != nil {
		return TarHeader{}, nil, err
	}
	th := TarHeader{Name: hdr.Name, Typeflag: hdr.Typeflag, Size: hdr.Size}
	if hdr.Typeflag != tar.TypeReg {
		return th, nil, nil
	}
	data := make([]byte, hdr.Size)
	if _, err := io.ReadFull(a.tr, data); err != nil {
		return TarHeader{}, nil, err
	}
	return th, data, nil
}
