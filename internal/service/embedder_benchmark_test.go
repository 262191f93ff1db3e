package service

import (
	"context"
	"fmt"
	"testing"
)

func BenchmarkEmbedder_Embed(b *testing.B) {
	client := &fakeEmbeddingClient{dims: 768}
	e := NewEmbedder(client, 96, 768)

	texts := make([]string, 300)
	for i := range texts {
		texts[i] = fmt.Sprintf("text %d", i)
	}

	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = e.Embed(ctx, texts)
	}
}
