// Package pipeline coordinates fixture generation from a plaintext corpus.
//
// The pipeline orchestrates file discovery, chunking and embedding, and
// assembles the documents written by the fixture and storage packages.
//
// # Basic Usage
//
//	emb, _ := embedder.NewFromEnv()
//	p, err := pipeline.New(emb, pipeline.DefaultConfig(), logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	result, err := p.Run(ctx, "doc-corpus")
//	switch {
//	case errors.Is(err, pipeline.ErrNoSources), errors.Is(err, pipeline.ErrNoChunks):
//	    // nothing to write
//	case err != nil:
//	    log.Fatal(err)
//	}
//	fmt.Printf("%d documents, dimension %d\n", len(result.Documents), result.Stats.Dimension)
//
// # Stages
//
//  1. Discover: list matching files in the corpus directory, sorted by name
//  2. Read: decode files with a bounded worker pool; unreadable files are skipped
//  3. Chunk: split each file into overlapping word-bounded chunks
//  4. Embed: send chunk texts to the embedder in concurrent batches
//  5. Assemble: attach ids and metadata {source, chunk_index, version, type}
//
// Documents come out in file order, then chunk order, whatever the concurrency.
//
// # Document IDs
//
// Ids are random UUIDs by default. With Config.DeterministicIDs each id is a
// version 5 UUID of "<source>/<chunk_index>", so regenerating an unchanged corpus
// yields identical ids.
package pipeline
