package static

import (
	"bufio"
	"compress/gzip"
	"io"
	"os"
)

// maybeCompressedFile reads a file that may or may not be gzip compressed.
type maybeCompressedFile struct {
	file *os.File
	r    io.Reader
	gz   *gzip.Reader
}

// openMaybeCompressed sniffs the gzip header and falls back to plain reads.
func openMaybeCompressed(filename string) (*maybeCompressedFile, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	gz, err := gzip.NewReader(bufio.NewReader(file))
	switch err {
	case nil:
		return &maybeCompressedFile{file: file, r: gz, gz: gz}, nil
	case gzip.ErrHeader, io.ErrUnexpectedEOF, io.EOF:
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			file.Close()
			return nil, err
		}
		return &maybeCompressedFile{file: file, r: bufio.NewReader(file)}, nil
	default:
		file.Close()
		return nil, err
	}
}

func (f *maybeCompressedFile) Read(p []byte) (int, error) {
	return f.r.Read(p)
}

func (f *maybeCompressedFile) Close() error {
	if f.gz != nil {
		if err := f.gz.Close(); err != nil {
			f.file.Close()
			return err
		}
	}
	return f.file.Close()
}
