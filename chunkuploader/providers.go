package chunkuploader

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ChunkProvider materializes chunk data for upload.
type ChunkProvider interface {
	// NumChunks returns the total number of chunks.
	NumChunks() int

	// Chunk returns the descriptor of the chunk at the given index.
	Chunk(index int) (Chunk, error)

	// GetChunk reads the chunk at the given index fully into memory.
	GetChunk(index int) ([]byte, error)
}

// FileChunkProvider reads chunks from a File.
// Safe for parallel chunk reads as long as the File's ReadAt is.
type FileChunkProvider struct {
	file   File
	chunks []Chunk
}

// NewFileChunkProvider partitions the file by chunkSize and returns a provider for its chunks.
func NewFileChunkProvider(file File, chunkSize int64) (*FileChunkProvider, error) {
	if file == nil {
		return nil, errors.New("file must not be nil")
	}

	chunks, err := Partition(file.Size(), chunkSize)
	if err != nil {
		return nil, fmt.Errorf("partition %s: %w", file.Name(), err)
	}

	return &FileChunkProvider{
		file:   file,
		chunks: chunks,
	}, nil
}

// NumChunks returns the total number of chunks.
func (p *FileChunkProvider) NumChunks() int {
	return len(p.chunks)
}

// Chunks returns the chunk descriptors in index order.
func (p *FileChunkProvider) Chunks() []Chunk {
	return p.chunks
}

// Chunk returns the descriptor of the chunk at the given index.
func (p *FileChunkProvider) Chunk(index int) (Chunk, error) {
	if index < 0 || index >= len(p.chunks) {
		return Chunk{}, fmt.Errorf("chunk index %d out of range [0, %d)", index, len(p.chunks))
	}
	return p.chunks[index], nil
}

// GetChunk reads the chunk at the given index into memory.
// A chunk that cannot be read completely is an error.
func (p *FileChunkProvider) GetChunk(index int) ([]byte, error) {
	chunk, err := p.Chunk(index)
	if err != nil {
		return nil, err
	}

	data := make([]byte, chunk.Size())
	n, err := p.file.ReadAt(data, chunk.Start)
	if int64(n) == chunk.Size() {
		return data, nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}

	return nil, fmt.Errorf("read chunk %d at offset %d: got %d of %d bytes: %w", index, chunk.Start, n, chunk.Size(), err)
}

// LocalFile is a File backed by a file on disk.
type LocalFile struct {
	file *os.File
	name string
	size int64
}

// OpenFile opens the file at path for upload. The caller closes it.
func OpenFile(path string) (*LocalFile, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if info.IsDir() {
		_ = file.Close()
		return nil, fmt.Errorf("%s is a directory", path)
	}

	return &LocalFile{
		file: file,
		name: filepath.Base(path),
		size: info.Size(),
	}, nil
}

// Name returns the base name of the file.
func (f *LocalFile) Name() string {
	return f.name
}

// Size returns the size of the file at the time it was opened.
func (f *LocalFile) Size() int64 {
	return f.size
}

// ReadAt implements io.ReaderAt.
func (f *LocalFile) ReadAt(p []byte, off int64) (int, error) {
	return f.file.ReadAt(p, off)
}

// Close closes the underlying file.
func (f *LocalFile) Close() error {
	if f.file != nil {
		return f.file.Close()
	}
	return nil
}

// MemoryFile is a File backed by a byte slice.
// Useful when the data is already in memory.
type MemoryFile struct {
	*bytes.Reader
	name string
}

// NewMemoryFile creates a File with the given name and contents.
func NewMemoryFile(name string, data []byte) *MemoryFile {
	return &MemoryFile{
		Reader: bytes.NewReader(data),
		name:   name,
	}
}

// Name returns the file name.
func (f *MemoryFile) Name() string {
	return f.name
}
