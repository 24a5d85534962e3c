// Package corpus finds and reads the plaintext documents a fixture is built from.
//
// Discover lists matching files under a root directory in a stable order, and
// Reader.Load reads them with a bounded worker pool:
//
//	files, err := corpus.Discover("doc-corpus", corpus.Options{Extensions: []string{".txt"}})
//	if errors.Is(err, corpus.ErrCorpusNotFound) {
//	    ...
//	}
//
//	sources, failures, err := corpus.NewReader(4, logger).Load(ctx, files)
//
// Files must be UTF-8. A leading byte order mark is dropped and line endings are
// normalized to \n. A file that cannot be read is reported as a Failure and does
// not stop the others.
package corpus
