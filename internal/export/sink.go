package export

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// Sink receives finished PDF files.
type Sink interface {
	Create(name string) (io.WriteCloser, error)
}

// DirSink writes files into a directory.
type DirSink struct {
	Dir string
}

func (d DirSink) Create(name string) (io.WriteCloser, error) {
	if err := os.MkdirAll(d.Dir, 0o755); err != nil {
		return nil, err
	}
	return os.Create(filepath.Join(d.Dir, filepath.Base(name)))
}

// ZipSink streams every file into one archive. Close must be called after
// the export to write the central directory.
type ZipSink struct {
	zw *zip.Writer
}

func NewZipSink(w io.Writer) *ZipSink {
	return &ZipSink{zw: zip.NewWriter(w)}
}

func (z *ZipSink) Create(name string) (io.WriteCloser, error) {
	w, err := z.zw.CreateHeader(&zip.FileHeader{
		Name:     filepath.Base(name),
		Method:   zip.Deflate,
		Modified: time.Now(),
	})
	if err != nil {
		return nil, fmt.Errorf("zip entry %s: %w", name, err)
	}
	return nopCloser{w}, nil
}

func (z *ZipSink) Close() error {
	return z.zw.Close()
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// MemoryFile is one file held by a MemorySink.
type MemoryFile struct {
	Name string
	Data []byte
}

// MemorySink keeps files in memory, in creation order.
type MemorySink struct {
	Files []MemoryFile
}

func (m *MemorySink) Create(name string) (io.WriteCloser, error) {
	m.Files = append(m.Files, MemoryFile{Name: filepath.Base(name)})
	return &memoryWriter{sink: m, index: len(m.Files) - 1}, nil
}

type memoryWriter struct {
	sink  *MemorySink
	index int
	buf   bytes.Buffer
}

func (w *memoryWriter) Write(p []byte) (int, error) { return w.buf.Write(p) }

func (w *memoryWriter) Close() error {
	w.sink.Files[w.index].Data = w.buf.Bytes()
	return nil
}
