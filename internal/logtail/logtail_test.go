package logtail

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func writeLog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "access.log")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to create test log file: %v", err)
	}
	return path
}

func asStrings(lines [][]byte) []string {
	out := make([]string, len(lines))
	for i, line := range lines {
		out[i] = string(line)
	}
	return out
}

func TestReadLines(t *testing.T) {
	var content strings.Builder
	var expectedAll []string
	for i := 1; i <= 10; i++ {
		line := fmt.Sprintf("Line %d", i)
		content.WriteString(line + "\n")
		expectedAll = append(expectedAll, line)
	}
	logPath := writeLog(t, content.String())

	tests := []struct {
		name     string
		maxLines int
		expected []string
	}{
		{
			name:     "read all (0)",
			maxLines: 0,
			expected: expectedAll,
		},
		{
			name:     "read all (negative)",
			maxLines: -1,
			expected: expectedAll,
		},
		{
			name:     "read partial (5)",
			maxLines: 5,
			expected: expectedAll[5:],
		},
		{
			name:     "read exactly all (10)",
			maxLines: 10,
			expected: expectedAll,
		},
		{
			name:     "read more than exists (20)",
			maxLines: 20,
			expected: expectedAll,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _, err := ReadLines(context.Background(), logPath, tt.maxLines, 4)
			if err != nil {
				t.Fatalf("ReadLines() error = %v", err)
			}
			if !reflect.DeepEqual(asStrings(got), tt.expected) {
				t.Errorf("ReadLines() = %v, want %v", asStrings(got), tt.expected)
			}
		})
	}
}

func TestReadLines_EveryBlockSizeStitchesLines(t *testing.T) {
	lines := []string{
		"a",
		"bb",
		"a much longer line that spans several small blocks",
		"",
		"   ",
		"tail line with \xff noise",
		"x",
	}
	content := strings.Join(lines, "\n") + "\n"
	path := writeLog(t, content)

	want := []string{lines[0], lines[1], lines[2], lines[5], lines[6]}
	for blockSize := 1; blockSize <= len(content)+2; blockSize++ {
		got, stats, err := ReadLines(context.Background(), path, 0, blockSize)
		if err != nil {
			t.Fatalf("blockSize=%d: ReadLines error = %v", blockSize, err)
		}
		if !reflect.DeepEqual(asStrings(got), want) {
			t.Fatalf("blockSize=%d: got %q, want %q", blockSize, asStrings(got), want)
		}
		wantBlocks := (len(content) + blockSize - 1) / blockSize
		if stats.Blocks != wantBlocks {
			t.Fatalf("blockSize=%d: blocks = %d, want %d", blockSize, stats.Blocks, wantBlocks)
		}
	}
}

func TestReadLines_SuffixForEveryLimit(t *testing.T) {
	var content strings.Builder
	for i := 0; i < 50; i++ {
		content.WriteString(fmt.Sprintf("line-%02d %s\n", i, strings.Repeat("z", i%7)))
	}
	path := writeLog(t, content.String())

	all, _, err := ReadLines(context.Background(), path, 0, 16)
	if err != nil {
		t.Fatalf("ReadLines error = %v", err)
	}
	for n := 1; n <= 60; n++ {
		got, _, err := ReadLines(context.Background(), path, n, 16)
		if err != nil {
			t.Fatalf("n=%d: ReadLines error = %v", n, err)
		}
		if len(got) > n {
			t.Fatalf("n=%d: got %d lines", n, len(got))
		}
		want := all[len(all)-len(got):]
		if !reflect.DeepEqual(asStrings(got), asStrings(want)) {
			t.Fatalf("n=%d: got %q, want suffix %q", n, asStrings(got), asStrings(want))
		}
	}
}

func TestReadLines_NoTrailingNewline(t *testing.T) {
	path := writeLog(t, "first\r\nsecond\nthird")

	got, _, err := ReadLines(context.Background(), path, 0, 3)
	if err != nil {
		t.Fatalf("ReadLines error = %v", err)
	}
	want := []string{"first", "second", "third"}
	if !reflect.DeepEqual(asStrings(got), want) {
		t.Fatalf("got %q, want %q", asStrings(got), want)
	}
}

func TestReadLines_EmptyFile(t *testing.T) {
	path := writeLog(t, "")

	got, stats, err := ReadLines(context.Background(), path, 10, 8)
	if err != nil {
		t.Fatalf("ReadLines error = %v", err)
	}
	if len(got) != 0 || stats.Blocks != 0 {
		t.Fatalf("got %d lines in %d blocks, want none", len(got), stats.Blocks)
	}
}

func TestReadLines_MissingFile(t *testing.T) {
	_, _, err := ReadLines(context.Background(), filepath.Join(t.TempDir(), "nope.log"), 10, 8)
	if !errors.Is(err, ErrFileNotFound) {
		t.Fatalf("err = %v, want ErrFileNotFound", err)
	}
}

func TestReadLines_AccessDenied(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced for root")
	}
	path := writeLog(t, "line\n")
	if err := os.Chmod(path, 0o000); err != nil {
		t.Fatalf("Chmod: %v", err)
	}
	_, _, err := ReadLines(context.Background(), path, 10, 8)
	if !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("err = %v, want ErrAccessDenied", err)
	}
}

func TestReadLines_CancelledContext(t *testing.T) {
	path := writeLog(t, strings.Repeat("line\n", 100))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := ReadLines(ctx, path, 0, 8)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
