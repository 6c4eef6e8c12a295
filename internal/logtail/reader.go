package logtail

import (
	"context"
	"errors"
	"slices"

	"github.com/rs/zerolog"

	"github.com/five82/squint/internal/accesslog"
)

// Result is the outcome of one Reader.Read call.
type Result struct {
	Entries      []accesslog.Entry
	Lines        int
	Skipped      int
	Malformed    int
	Unrecognized int
	Blocks       int
	FileSize     int64
}

// Options configure a Reader.
type Options struct {
	Path      string
	BlockSize int
	Parser    *accesslog.Parser
	Logger    zerolog.Logger
}

// Reader reads and parses the tail of one access log. It holds no state
// between calls and is safe for concurrent use.
type Reader struct {
	path      string
	blockSize int
	parser    *accesslog.Parser
	log       zerolog.Logger
}

// NewReader builds a Reader. A nil parser parses in UTC as UTF-8.
func NewReader(opts Options) *Reader {
	parser := opts.Parser
	if parser == nil {
		parser, _ = accesslog.NewParser(nil, "")
	}
	blockSize := opts.BlockSize
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	return &Reader{
		path:      opts.Path,
		blockSize: blockSize,
		parser:    parser,
		log:       opts.Logger,
	}
}

// Path returns the log file path.
func (r *Reader) Path() string {
	return r.path
}

// Read returns the last n parsed entries (n <= 0 reads the whole file) in
// ascending timestamp order. Lines that fail to parse are counted, not
// returned as errors.
func (r *Reader) Read(ctx context.Context, n int) (Result, error) {
	lines, stats, err := ReadLines(ctx, r.path, n, r.blockSize)
	if err != nil {
		return Result{Blocks: stats.Blocks, FileSize: stats.FileSize}, err
	}

	res := Result{
		Entries:  make([]accesslog.Entry, 0, len(lines)),
		Lines:    len(lines),
		Blocks:   stats.Blocks,
		FileSize: stats.FileSize,
	}
	var firstErr error
	for _, line := range lines {
		entry, err := r.parser.ParseBytes(line)
		if err != nil {
			res.Skipped++
			switch {
			case errors.Is(err, accesslog.ErrUnrecognizedFormat):
				res.Unrecognized++
			default:
				res.Malformed++
			}
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		res.Entries = append(res.Entries, entry)
	}

	slices.SortStableFunc(res.Entries, func(a, b accesslog.Entry) int {
		return a.Timestamp.Compare(b.Timestamp)
	})

	if firstErr != nil {
		r.log.Debug().
			Err(firstErr).
			Int("skipped", res.Skipped).
			Str("path", r.path).
			Msg("skipped unparseable lines")
	}
	return res, nil
}
