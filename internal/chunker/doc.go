// Package chunker divides plain text into overlapping, word-bounded chunks for embedding.
//
// The chunker walks the text with a sliding window measured in characters (runes).
// Window edges are snapped to spaces so that words are not cut in half, and each
// window starts roughly Overlap characters before the previous one ended.
//
// # Basic Usage
//
//	c, err := chunker.New(500, 50)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	for i, text := range c.Chunk(document) {
//	    fmt.Printf("chunk %d: %q\n", i, text)
//	}
//
// Spans returns the same chunks together with their [Start, End) rune ranges,
// which is useful when chunks need to be mapped back to the source:
//
//	spans, err := chunker.Spans(document, 500, 50)
//
// # Boundary Rules
//
//   - The space character ' ' is the only word delimiter.
//   - A window that does not reach the end of the text ends just after the last
//     space inside it. A single word longer than the window is cut at the raw size.
//   - The next window starts at (end - overlap), moved back to the start of a word
//     when a space exists between the current start and that position.
//   - The cursor always advances by at least one character, so the scan terminates.
//   - Windows containing only whitespace are dropped; they still consume input.
//
// # Parameters
//
// The chunk size must be positive and the overlap must lie in [0, chunk size).
// Anything else returns an error wrapping ErrInvalidArgument:
//
//	if _, err := chunker.New(100, 100); errors.Is(err, chunker.ErrInvalidArgument) {
//	    // overlap must be smaller than the chunk size
//	}
//
// # Example
//
//	chunker.Chunk("abcdefghij", 5, 0) // ["abcde", "fghij"]
//	chunker.Chunk("hello", 10, 2)     // ["hello"]
//	chunker.Chunk("   ", 5, 1)        // []
//
// A Chunker holds no mutable state and is safe for concurrent use.
package chunker
