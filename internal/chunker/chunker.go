package chunker

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

const (
	// DefaultChunkSize is the default window size in characters
	DefaultChunkSize = 500

	// DefaultOverlap is the default overlap between consecutive windows in characters
	DefaultOverlap = 50
)

// ErrInvalidArgument is returned when chunk size or overlap are out of range
var ErrInvalidArgument = errors.New("invalid argument")

// Span is an emitted chunk together with its rune range [Start, End) in the source text
type Span struct {
	Start int
	End   int
	Text  string
}

// Chunker splits plain text into overlapping, word-bounded windows
type Chunker struct {
	chunkSize int
	overlap   int
}

// New creates a Chunker. chunkSize must be positive and overlap must lie in [0, chunkSize).
func New(chunkSize, overlap int) (*Chunker, error) {
	if err := Validate(chunkSize, overlap); err != nil {
		return nil, err
	}
	return &Chunker{chunkSize: chunkSize, overlap: overlap}, nil
}

// Validate checks chunking parameters
func Validate(chunkSize, overlap int) error {
	if chunkSize <= 0 {
		return fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidArgument, chunkSize)
	}
	if overlap < 0 {
		return fmt.Errorf("%w: overlap must not be negative, got %d", ErrInvalidArgument, overlap)
	}
	if overlap >= chunkSize {
		return fmt.Errorf("%w: overlap %d must be smaller than chunk size %d", ErrInvalidArgument, overlap, chunkSize)
	}
	return nil
}

// ChunkSize returns the configured window size
func (c *Chunker) ChunkSize() int {
	return c.chunkSize
}

// Overlap returns the configured overlap
func (c *Chunker) Overlap() int {
	return c.overlap
}

// Chunk returns the chunk texts for text in scan order
func (c *Chunker) Chunk(text string) []string {
	spans := c.Spans(text)
	chunks := make([]string, len(spans))
	for i, s := range spans {
		chunks[i] = s.Text
	}
	return chunks
}

// Spans returns the emitted chunks with their rune ranges in scan order.
//
// Each window is cut at start+chunkSize and pulled back to just after the last
// space inside the window, unless the window already reaches the end of the
// text. The next window starts overlap characters before the previous end,
// pulled back to the start of a word. Whitespace-only windows are dropped.
func (c *Chunker) Spans(text string) []Span {
	if text == "" {
		return nil
	}

	runes := []rune(text)
	n := len(runes)
	spans := make([]Span, 0, n/c.chunkSize+1)

	start := 0
	for start < n {
		end := min(start+c.chunkSize, n)

		// Keep words whole: end the window right after its last space
		if end < n {
			if p := lastSpace(runes, start, end); p != -1 {
				end = p + 1
			}
		}

		candidate := string(runes[start:end])
		if strings.TrimFunc(candidate, isBlank) != "" {
			spans = append(spans, Span{Start: start, End: end, Text: candidate})
		}

		if end == n {
			break
		}

		target := end - c.overlap
		next := target
		if p := lastSpace(runes, start, target); p != -1 {
			next = p + 1
		}

		// Cursor must always advance
		if next <= start {
			next = start + 1
		}
		start = next
	}

	return spans
}

// isBlank reports whitespace, counting the ASCII file, group, record and unit
// separators (U+001C..U+001F) as blank too
func isBlank(r rune) bool {
	return unicode.IsSpace(r) || (r >= 0x1c && r <= 0x1f)
}

// lastSpace returns the index of the last ' ' in runes[from:to), or -1
func lastSpace(runes []rune, from, to int) int {
	for i := to - 1; i >= from; i-- {
		if runes[i] == ' ' {
			return i
		}
	}
	return -1
}

// Chunk splits text with the given parameters. It is a shorthand for New followed by Chunker.Chunk.
func Chunk(text string, chunkSize, overlap int) ([]string, error) {
	c, err := New(chunkSize, overlap)
	if err != nil {
		return nil, err
	}
	return c.Chunk(text), nil
}

// Spans splits text with the given parameters and returns rune ranges
func Spans(text string, chunkSize, overlap int) ([]Span, error) {
	c, err := New(chunkSize, overlap)
	if err != nil {
		return nil, err
	}
	return c.Spans(text), nil
}
