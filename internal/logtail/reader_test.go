package logtail

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	lineA = "1700000000.100 150 10.0.0.5 TCP_MISS/200 1024 GET http://example.com/a - HIER_DIRECT/93.184.216.34 text/html"
	lineB = "1700000060.200 10 10.0.0.6 TCP_TUNNEL/200 2048 CONNECT example.org:443 - HIER_DIRECT/1.2.3.4 -"
	lineC = "1700000030.300 20 10.0.0.5 TCP_HIT/304 0 GET http://example.com/c - HIER_NONE/- text/css"
	lineD = "1700000090.400 30 10.0.0.7 TCP_MISS/404 512 GET http://example.net/d - HIER_DIRECT/5.6.7.8 text/html"
)

func TestReader_ReadParsesSortsAndCountsSkips(t *testing.T) {
	content := strings.Join([]string{lineA, lineB, "garbage line", lineC, "1 2 3 NOSLASH 5 GET u - H/S m", lineD}, "\n") + "\n"
	path := writeLog(t, content)
	r := NewReader(Options{Path: path, BlockSize: 32})

	res, err := r.Read(context.Background(), 0)
	require.NoError(t, err)

	require.Len(t, res.Entries, 4)
	assert.Equal(t, 6, res.Lines)
	assert.Equal(t, 2, res.Skipped)
	assert.Equal(t, 1, res.Malformed)
	assert.Equal(t, 1, res.Unrecognized)
	assert.Equal(t, int64(len(content)), res.FileSize)

	for i := 1; i < len(res.Entries); i++ {
		assert.False(t, res.Entries[i].Timestamp.Before(res.Entries[i-1].Timestamp), "entries not ascending at %d", i)
	}
	assert.Equal(t, "http://example.com/a", res.Entries[0].URL)
	assert.Equal(t, "http://example.com/c", res.Entries[1].URL)
	assert.Equal(t, "https://example.org:443", res.Entries[2].URL)
}

func TestReader_LimitedReadIsSuffixOfFullRead(t *testing.T) {
	var lines []string
	for i := 0; i < 40; i++ {
		lines = append(lines, lineA, lineB, lineC, lineD)
	}
	path := writeLog(t, strings.Join(lines, "\n")+"\n")
	r := NewReader(Options{Path: path, BlockSize: 64})

	full, err := r.Read(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, full.Entries, 160)

	for _, n := range []int{1, 3, 4, 10, 159, 160, 500} {
		part, err := r.Read(context.Background(), n)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(part.Entries), n)
		for _, e := range part.Entries {
			assert.Contains(t, full.Entries, e)
		}
		last := part.Entries[len(part.Entries)-1]
		assert.Equal(t, full.Entries[len(full.Entries)-1].Timestamp, last.Timestamp)
	}
}

func TestReader_Idempotent(t *testing.T) {
	path := writeLog(t, strings.Join([]string{lineD, lineC, lineB, lineA}, "\n")+"\n")
	r := NewReader(Options{Path: path, BlockSize: 7})

	first, err := r.Read(context.Background(), 3)
	require.NoError(t, err)
	second, err := r.Read(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestReader_IgnoresBytesAppendedAfterOpen(t *testing.T) {
	path := writeLog(t, lineA+"\n"+lineB+"\n")
	r := NewReader(Options{Path: path})

	before, err := r.Read(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, before.Entries, 2)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
	require.NoError(t, err)
	_, err = f.WriteString(lineC + "\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	after, err := r.Read(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, after.Entries, 3)
}

func TestReader_MissingFile(t *testing.T) {
	r := NewReader(Options{Path: filepath.Join(t.TempDir(), "missing.log")})

	res, err := r.Read(context.Background(), 10)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFileNotFound))
	assert.Empty(t, res.Entries)
}
