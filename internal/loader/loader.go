// Package loader reads text corpora: files of newline-separated UTF-8
// lines, each of which is interned as one string.
package loader

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"
)

var (
	ErrInvalidUTF8 = errors.New("line is not valid utf-8")
	ErrLineTooLong = errors.New("line exceeds max_line_bytes")
	ErrNoCorpora   = errors.New("no corpora to load")
)

const (
	defaultMaxLine = 1 << 20
	initialLineBuf = 64 * 1024
)

// LineError locates a rejected line within a corpus.
type LineError struct {
	Path string
	Line int
	Err  error
}

func (e *LineError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("%s:%d: %v", e.Path, e.Line, e.Err)
}

func (e *LineError) Unwrap() error {
	return e.Err
}

// Corpus is the content of one file.
type Corpus struct {
	Path  string
	Lines []string
	Bytes int64
}

// Options controls LoadFiles.
type Options struct {
	Concurrency  int
	MaxLineBytes int
}

// ReadLines splits r on '\n', dropping a trailing '\r'. Each line is copied
// out of the scan buffer. A final line without a newline is kept.
func ReadLines(r io.Reader, maxLineBytes int) ([]string, error) {
	lines, _, err := readLines(r, "", maxLineBytes)
	return lines, err
}

func readLines(r io.Reader, path string, maxLineBytes int) ([]string, int64, error) {
	if maxLineBytes <= 0 {
		maxLineBytes = defaultMaxLine
	}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, min(initialLineBuf, maxLineBytes)), maxLineBytes)

	var (
		lines []string
		total int64
		n     int
	)
	for scanner.Scan() {
		n++
		b := scanner.Bytes()
		if !utf8.Valid(b) {
			return nil, total, &LineError{Path: path, Line: n, Err: ErrInvalidUTF8}
		}
		lines = append(lines, string(b))
		total += int64(len(b))
	}
	if err := scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return nil, total, &LineError{Path: path, Line: n + 1, Err: ErrLineTooLong}
		}
		return nil, total, err
	}
	return lines, total, nil
}

// LoadFile reads one corpus from disk.
func LoadFile(path string, maxLineBytes int) (Corpus, error) {
	file, err := os.Open(path)
	if err != nil {
		return Corpus{}, err
	}
	defer func() { _ = file.Close() }()

	lines, total, err := readLines(bufio.NewReaderSize(file, initialLineBuf), path, maxLineBytes)
	if err != nil {
		return Corpus{}, err
	}
	return Corpus{Path: path, Lines: lines, Bytes: total}, nil
}

// LoadFiles reads every path with at most opts.Concurrency files open at a
// time. Results keep the order of paths. The first failure cancels the rest.
func LoadFiles(ctx context.Context, paths []string, opts Options) ([]Corpus, error) {
	if len(paths) == 0 {
		return nil, ErrNoCorpora
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}

	corpora := make([]Corpus, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			c, err := LoadFile(path, opts.MaxLineBytes)
			if err != nil {
				return err
			}
			corpora[i] = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return corpora, nil
}

// Lines flattens corpora into one slice, in order.
func Lines(corpora []Corpus) []string {
	n := 0
	for _, c := range corpora {
		n += len(c.Lines)
	}
	all := make([]string, 0, n)
	for _, c := range corpora {
		all = append(all, c.Lines...)
	}
	return all
}
