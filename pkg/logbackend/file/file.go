// Package file implements the LogBackend file-scanning adapter: a
// bounded walk of an environment-specific base directory, applying a
// modification-time filter and a byte-read safety cap, with the base
// path normalised before the walk. File names are not filtered.
package file

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/codeready-toolchain/logforensics/pkg/logbackend"
)

// Adapter implements logbackend.LogBackend over a local filesystem tree.
type Adapter struct{}

// New builds a file Adapter.
func New() *Adapter { return &Adapter{} }

// FindCandidates walks env.BackendRoot looking for files whose mtime is
// not before params.TimeFrame (every file when TimeFrame is nil; names
// are not checked), scanning matching files up to env.MaxBytes total.
func (a *Adapter) FindCandidates(ctx context.Context, params logbackend.Parameters, env logbackend.Environment) (logbackend.Cursor, error) {
	root, err := sanitizedRoot(env.BackendRoot)
	if err != nil {
		return nil, err
	}

	var lines []logbackend.Line
	var bytesRead int64
	maxBytes := env.MaxBytes
	if maxBytes <= 0 {
		maxBytes = 50 * 1024 * 1024
	}

	walkErr := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}
		if bytesRead >= maxBytes {
			return filepath.SkipAll
		}
		if !matchesFilters(path, params) {
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("file: open %s: %w", path, err)
		}
		defer f.Close()

		limited := io.LimitReader(f, maxBytes-bytesRead)
		scanner := bufio.NewScanner(limited)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			text := scanner.Text()
			bytesRead += int64(len(text)) + 1
			lines = append(lines, logbackend.Line{
				Timestamp: time.Now(),
				Text:      text,
				Source:    path,
			})
			if bytesRead >= maxBytes {
				break
			}
		}
		return scanner.Err()
	})
	if walkErr != nil {
		return nil, fmt.Errorf("file: walk %s: %w", root, walkErr)
	}

	return &sliceCursor{lines: lines}, nil
}

// FetchByTraceIDs performs a second bounded scan collecting lines whose
// text contains one of ids, grouped by the matching ID.
func (a *Adapter) FetchByTraceIDs(ctx context.Context, ids []string, env logbackend.Environment) (map[string][]logbackend.Line, error) {
	root, err := sanitizedRoot(env.BackendRoot)
	if err != nil {
		return nil, err
	}

	result := make(map[string][]logbackend.Line, len(ids))
	maxBytes := env.MaxBytes
	if maxBytes <= 0 {
		maxBytes = 50 * 1024 * 1024
	}
	var bytesRead int64

	walkErr := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || bytesRead >= maxBytes {
			if bytesRead >= maxBytes {
				return filepath.SkipAll
			}
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("file: open %s: %w", path, err)
		}
		defer f.Close()

		limited := io.LimitReader(f, maxBytes-bytesRead)
		scanner := bufio.NewScanner(limited)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			text := scanner.Text()
			bytesRead += int64(len(text)) + 1
			for _, id := range ids {
				if strings.Contains(text, id) {
					result[id] = append(result[id], logbackend.Line{
						Timestamp: time.Now(),
						Text:      text,
						Source:    path,
					})
				}
			}
			if bytesRead >= maxBytes {
				break
			}
		}
		return scanner.Err()
	})
	if walkErr != nil {
		return nil, fmt.Errorf("file: walk %s: %w", root, walkErr)
	}
	return result, nil
}

// sanitizedRoot resolves base to an absolute, cleaned path: "." and ".."
// segments are resolved lexically. Symlinks are neither resolved nor
// rejected, here or during the walk.
func sanitizedRoot(base string) (string, error) {
	abs, err := filepath.Abs(base)
	if err != nil {
		return "", fmt.Errorf("file: resolve base path: %w", err)
	}
	clean := filepath.Clean(abs)
	if clean != abs {
		return "", fmt.Errorf("file: base path %q is not clean", base)
	}
	return clean, nil
}

func matchesFilters(path string, params logbackend.Parameters) bool {
	if params.TimeFrame == nil {
		return true
	}
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.ModTime().Before(*params.TimeFrame)
}

type sliceCursor struct {
	lines []logbackend.Line
	idx   int
}

func (c *sliceCursor) Next(ctx context.Context) (logbackend.Line, bool, error) {
	if ctx.Err() != nil {
		return logbackend.Line{}, false, ctx.Err()
	}
	if c.idx >= len(c.lines) {
		return logbackend.Line{}, false, nil
	}
	line := c.lines[c.idx]
	c.idx++
	return line, true, nil
}

func (c *sliceCursor) Close() error { return nil }
