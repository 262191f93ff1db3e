package service

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
)

// DemoEmbeddingClient deterministically derives a unit vector from the
// SHA-256 hash of each input string, so DEMO_MODE can exercise the
// full ingestion and search path with no external embedding provider.
type DemoEmbeddingClient struct {
	dims int
}

// NewDemoEmbeddingClient creates a DemoEmbeddingClient producing dims
// floats per vector.
func NewDemoEmbeddingClient(dims int) *DemoEmbeddingClient {
	if dims <= 0 {
		dims = 768
	}
	return &DemoEmbeddingClient{dims: dims}
}

var _ EmbeddingClient = (*DemoEmbeddingClient)(nil)

// Embed returns one deterministic unit vector per input text.
func (d *DemoEmbeddingClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = hashToVector(text, d.dims)
	}
	return out, nil
}

// hashToVector expands a SHA-256 digest of text into a unit-length
// vector of the requested dimensionality by re-hashing with an
// incrementing counter whenever more bytes are needed.
func hashToVector(text string, dims int) []float32 {
	vec := make([]float32, dims)
	var block int
	var digest [32]byte
	offset := 32 // force the first digest to be computed

	for i := 0; i < dims; i++ {
		if offset >= 32 {
			digest = sha256.Sum256([]byte(fmt.Sprintf("%s:%d", text, block)))
			block++
			offset = 0
		}
		// Map 4 bytes of digest to a float32 in [-1, 1].
		bits := binary.BigEndian.Uint32(digest[offset : offset+4])
		vec[i] = (float32(bits)/float32(math.MaxUint32))*2 - 1
		offset += 4
	}

	normalize(vec)
	return vec
}

func normalize(vec []float32) {
	var sumSquares float64
	for _, v := range vec {
		sumSquares += float64(v) * float64(v)
	}
	norm := math.Sqrt(sumSquares)
	if norm == 0 {
		return
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
}

// demoEchoPrefixLen bounds how much of the input is echoed back by
// DemoLLMClient, keeping demo responses short and obviously synthetic.
const demoEchoPrefixLen = 200

// DemoLLMClient stands in for a generative model in DEMO_MODE: it
// echoes a prefix of the user prompt instead of calling an upstream
// LLM, so Complete/Summarize can be exercised without credentials.
type DemoLLMClient struct{}

// NewDemoLLMClient creates a DemoLLMClient.
func NewDemoLLMClient() *DemoLLMClient {
	return &DemoLLMClient{}
}

var _ LLMClient = (*DemoLLMClient)(nil)

// Generate returns a deterministic, prompt-derived response: an echo
// of the first demoEchoPrefixLen characters of userPrompt.
func (d *DemoLLMClient) Generate(ctx context.Context, systemPrompt, userPrompt string, temperature float64) (string, error) {
	prefix := userPrompt
	if len(prefix) > demoEchoPrefixLen {
		prefix = prefix[:demoEchoPrefixLen]
	}
	return fmt.Sprintf("[demo mode] %s", prefix), nil
}
