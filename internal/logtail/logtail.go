package logtail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
)

// DefaultBlockSize is the backward scan block size used when none is given.
const DefaultBlockSize = 8192

var (
	ErrFileNotFound = errors.New("log file not found")
	ErrAccessDenied = errors.New("log file access denied")
)

// ScanStats describes the work a scan performed.
type ScanStats struct {
	FileSize int64
	Blocks   int
}

// ReadLines returns at most maxLines non-blank lines from the end of the file
// at path, in file order. maxLines <= 0 returns every line.
func ReadLines(ctx context.Context, path string, maxLines, blockSize int) ([][]byte, ScanStats, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, ScanStats{}, classifyOpenError(err)
	}
	defer func() { _ = file.Close() }()

	info, err := file.Stat()
	if err != nil {
		return nil, ScanStats{}, fmt.Errorf("stat log: %w", err)
	}

	lines, blocks, err := scanBackward(ctx, file, info.Size(), maxLines, blockSize)
	stats := ScanStats{FileSize: info.Size(), Blocks: blocks}
	if err != nil {
		return nil, stats, err
	}
	return lines, stats, nil
}

func classifyOpenError(err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("open log: %w: %w", ErrFileNotFound, err)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("open log: %w: %w", ErrAccessDenied, err)
	default:
		return fmt.Errorf("open log: %w", err)
	}
}

// backwardScanner walks a file from its end toward its start.
type backwardScanner struct {
	r     io.ReaderAt
	pos   int64
	block []byte

	// pending is the leading piece of the most recently read block. It is
	// only emitted once the byte before it is known to be a newline.
	pending []byte

	// lines holds complete lines, newest first.
	lines  [][]byte
	blocks int
}

func scanBackward(ctx context.Context, r io.ReaderAt, size int64, maxLines, blockSize int) ([][]byte, int, error) {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	s := &backwardScanner{r: r, pos: size, block: make([]byte, blockSize)}

	for s.pos > 0 && (maxLines <= 0 || len(s.lines) < maxLines) {
		if err := ctx.Err(); err != nil {
			return nil, s.blocks, err
		}
		if err := s.step(); err != nil {
			return nil, s.blocks, err
		}
	}
	// A leftover fragment only exists when the scan stopped early; the lines
	// already collected are all newer than it.
	s.pending = nil

	lines := s.lines
	if maxLines > 0 && len(lines) > maxLines {
		lines = lines[:maxLines]
	}
	out := make([][]byte, len(lines))
	for i, line := range lines {
		out[len(lines)-1-i] = line
	}
	return out, s.blocks, nil
}

func (s *backwardScanner) step() error {
	size := int64(len(s.block))
	if size > s.pos {
		size = s.pos
	}
	s.pos -= size

	buf := s.block[:size]
	if _, err := s.r.ReadAt(buf, s.pos); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read log block at %d: %w", s.pos, err)
	}
	s.blocks++

	chunk := make([]byte, 0, len(buf)+len(s.pending))
	chunk = append(chunk, buf...)
	chunk = append(chunk, s.pending...)
	s.pending = nil

	pieces := bytes.Split(chunk, []byte{'\n'})
	first := 0
	if s.pos > 0 {
		starts, err := s.lineStartsAt(s.pos)
		if err != nil {
			return err
		}
		if !starts {
			s.pending = pieces[0]
			first = 1
		}
	}
	for i := len(pieces) - 1; i >= first; i-- {
		s.emit(pieces[i])
	}
	return nil
}

// lineStartsAt reports whether offset is the first byte of a line by looking
// at the single byte before it.
func (s *backwardScanner) lineStartsAt(offset int64) (bool, error) {
	if offset == 0 {
		return true, nil
	}
	var prev [1]byte
	if _, err := s.r.ReadAt(prev[:], offset-1); err != nil {
		return false, fmt.Errorf("read log byte at %d: %w", offset-1, err)
	}
	return prev[0] == '\n', nil
}

func (s *backwardScanner) emit(line []byte) {
	line = bytes.TrimSuffix(line, []byte{'\r'})
	if len(bytes.TrimSpace(line)) == 0 {
		return
	}
	s.lines = append(s.lines, line)
}
