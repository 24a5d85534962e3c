package corpus

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	ErrCorpusNotFound  = errors.New("corpus directory not found")
	ErrInvalidEncoding = errors.New("file is not valid UTF-8")
)

// DefaultExtensions are used when Options.Extensions is empty
var DefaultExtensions = []string{".txt"}

// Options controls file discovery
type Options struct {
	Extensions []string // Matched case-insensitively, with or without the leading dot
	Recursive  bool     // Descend into subdirectories (hidden ones are skipped)
}

// File is a discovered corpus file
type File struct {
	Path string // Filesystem path
	Name string // Path relative to the corpus root, with forward slashes
}

// Source is the decoded text of one corpus file
type Source struct {
	File
	Text string
}

// Failure records a file that could not be read
type Failure struct {
	File File
	Err  error
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s: %v", f.File.Name, f.Err)
}

// Discover lists the files under root that match opts, sorted by name
func Discover(root string, opts Options) ([]File, error) {
	info, err := os.Stat(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrCorpusNotFound, root)
		}
		return nil, fmt.Errorf("stat corpus: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrCorpusNotFound, root)
	}

	exts := normalizeExtensions(opts.Extensions)

	var files []File
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if path == root {
				return nil
			}
			if !opts.Recursive || strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}

		if !d.Type().IsRegular() || !exts[strings.ToLower(filepath.Ext(path))] {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files = append(files, File{Path: path, Name: filepath.ToSlash(rel)})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk corpus: %w", err)
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Name < files[j].Name
	})

	return files, nil
}

func normalizeExtensions(extensions []string) map[string]bool {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	exts := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		exts[ext] = true
	}
	return exts
}

// Reader reads corpus files concurrently
type Reader struct {
	workers int
	logger  *zap.Logger
}

// NewReader creates a Reader using up to workers goroutines
func NewReader(workers int, logger *zap.Logger) *Reader {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reader{workers: workers, logger: logger}
}

// Load reads and decodes files. Sources keep the order of files; unreadable or
// undecodable files are skipped, logged and returned as failures. The returned
// error is non-nil only when ctx is cancelled.
func (r *Reader) Load(ctx context.Context, files []File) ([]Source, []Failure, error) {
	results := make([]*Source, len(files))

	var (
		mu       sync.Mutex
		failures []Failure
		loaded   atomic.Int32
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)

	for i, file := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			text, err := ReadFile(file.Path)
			if err != nil {
				r.logger.Warn("skipping corpus file",
					zap.String("file", file.Name),
					zap.Error(err),
				)
				mu.Lock()
				failures = append(failures, Failure{File: file, Err: err})
				mu.Unlock()
				return nil
			}

			results[i] = &Source{File: file, Text: text}
			loaded.Add(1)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	sources := make([]Source, 0, loaded.Load())
	for _, src := range results {
		if src != nil {
			sources = append(sources, *src)
		}
	}

	sort.Slice(failures, func(i, j int) bool {
		return failures[i].File.Name < failures[j].File.Name
	})

	return sources, failures, nil
}

// ReadFile reads a UTF-8 text file and normalizes its line endings
func ReadFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(data) {
		return "", ErrInvalidEncoding
	}
	return NormalizeText(string(data)), nil
}

// NormalizeText converts \r\n and lone \r line endings to \n
func NormalizeText(text string) string {
	if !strings.Contains(text, "\r") {
		return text
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.ReplaceAll(text, "\r", "\n")
}
