// Package local provides an offline embedder based on feature hashing. It
// needs no model download or API key, which makes it the embedder of choice
// for development and tests.
package local

import (
	"context"
	"hash/fnv"
	"math"
	"regexp"
	"strings"
)

const DefaultDimension = 1024

var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}]+(?:['’][\p{L}]+)*`)

// Embedder maps text to an L2-normalized bag-of-words vector whose
// coordinates are FNV-1a buckets of the lowercased, stopword-filtered tokens.
type Embedder struct {
	dim       int
	stopwords map[string]struct{}
}

func NewEmbedder(dim int) *Embedder {
	if dim <= 0 {
		dim = DefaultDimension
	}
	return &Embedder{dim: dim, stopwords: defaultStopwords()}
}

func (e *Embedder) Dimension() int { return e.dim }

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.vector(text), nil
}

func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = e.vector(t)
	}
	return out, nil
}

func (e *Embedder) vector(text string) []float32 {
	counts := make(map[int]int)
	for _, tok := range e.tokenize(text) {
		counts[e.bucket(tok)]++
	}

	vec := make([]float32, e.dim)
	var norm float64
	for idx, c := range counts {
		// Sublinear term frequency.
		w := 1 + math.Log(float64(c))
		vec[idx] = float32(w)
		norm += w * w
	}
	if norm == 0 {
		return vec
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec
}

func (e *Embedder) bucket(tok string) int {
	h := fnv.New32a()
	h.Write([]byte(tok))
	return int(h.Sum32() % uint32(e.dim))
}

func (e *Embedder) tokenize(text string) []string {
	raw := tokenPattern.FindAllString(strings.ToLower(text), -1)
	out := raw[:0]
	for _, tok := range raw {
		if _, stop := e.stopwords[tok]; stop {
			continue
		}
		out = append(out, tok)
	}
	return out
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "and", "are", "as", "at", "be", "but", "by", "do", "does", "for",
		"from", "has", "have", "how", "i", "if", "in", "into", "is", "it", "its",
		"me", "my", "of", "on", "or", "so", "than", "that", "the", "their", "then",
		"there", "these", "they", "this", "to", "was", "we", "were", "what", "when",
		"where", "which", "who", "why", "will", "with", "you", "your",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
