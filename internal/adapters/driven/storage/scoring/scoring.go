// Package scoring provides the similarity and relevance math shared by the
// index backends.
package scoring

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"github.com/custodia-labs/tome/internal/textutil"
)

// BM25 parameters.
const (
	BM25K1 = 1.2
	BM25B  = 0.75
)

// Cosine returns the cosine similarity of two vectors. Mismatched lengths
// and zero vectors score 0.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// EncodeVector serialises a vector as little-endian float32 bytes.
func EncodeVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// DecodeVector reverses EncodeVector.
func DecodeVector(buf []byte) ([]float32, error) {
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("vector blob length %d is not a multiple of 4", len(buf))
	}
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return v, nil
}

// Document is a keyword-searchable unit for BM25.
type Document struct {
	ID    string
	Terms []string
}

// Scored is a BM25 result.
type Scored struct {
	ID    string
	Score float64
}

// BM25 scores docs against the query terms and returns those with a positive
// score, best first. Ties keep input order.
func BM25(query []string, docs []Document) []Scored {
	if len(query) == 0 || len(docs) == 0 {
		return nil
	}

	var totalLen int
	df := make(map[string]int)
	freqs := make([]map[string]int, len(docs))
	for i, d := range docs {
		totalLen += len(d.Terms)
		tf := make(map[string]int, len(d.Terms))
		for _, t := range d.Terms {
			tf[t]++
		}
		freqs[i] = tf
		for t := range tf {
			df[t]++
		}
	}
	n := float64(len(docs))
	avgLen := float64(totalLen) / n
	if avgLen == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(query))
	var terms []string
	for _, t := range query {
		if _, ok := seen[t]; !ok {
			seen[t] = struct{}{}
			terms = append(terms, t)
		}
	}

	var out []Scored
	for i, d := range docs {
		var score float64
		dl := float64(len(d.Terms))
		for _, t := range terms {
			f := float64(freqs[i][t])
			if f == 0 {
				continue
			}
			idf := math.Log(1 + (n-float64(df[t])+0.5)/(float64(df[t])+0.5))
			score += idf * f * (BM25K1 + 1) / (f + BM25K1*(1-BM25B+BM25B*dl/avgLen))
		}
		if score > 0 {
			out = append(out, Scored{ID: d.ID, Score: score})
		}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Score > out[b].Score })
	return out
}

// Terms is the keyword term extraction used for BM25 documents and queries.
func Terms(text string) []string {
	return textutil.Terms(text)
}
