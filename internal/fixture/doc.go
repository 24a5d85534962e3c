// Package fixture encodes and decodes the JSON fixtures produced by fixturegen.
//
// Two layouts are supported. The struct-of-arrays layout keeps one array per field:
//
//	{
//	  "ids": ["3f2c..."],
//	  "documents": ["The quick brown fox"],
//	  "embeddings": [[0.12, -0.03]],
//	  "metadatas": [{"source": "fox.txt", "chunk_index": 0, "version": 1, "type": "text_segment"}]
//	}
//
// The row layout matches the insert payload of the target vector database:
//
//	{"documents": [{"id": "3f2c...", "content": "...", "embedding": [...], "metadata": {...}}]}
//
// Decode and Load detect the layout from the top-level keys.
package fixture
