package vectorstore

import (
	"fmt"
	"hash/fnv"
	"math"
)

const testDim = 8

// testVector returns a deterministic unit vector derived from seed.
func testVector(seed string) []float32 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(seed))
	x := h.Sum64()
	v := make([]float32, testDim)
	var norm float64
	for i := range v {
		x = x*6364136223846793005 + 1442695040888963407
		v[i] = float32(x>>40)/float32(1<<24) + 0.01
		norm += float64(v[i]) * float64(v[i])
	}
	n := float32(math.Sqrt(norm))
	for i := range v {
		v[i] /= n
	}
	return v
}

func testChunks(docID, filename string, texts ...string) []Chunk {
	out := make([]Chunk, len(texts))
	for i, text := range texts {
		out[i] = Chunk{
			ID:         ChunkID(docID, i),
			DocumentID: docID,
			Filename:   filename,
			Ordinal:    i,
			Text:       text,
			Embedding:  testVector(text),
		}
	}
	return out
}

func numbered(prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s %d", prefix, i)
	}
	return out
}
