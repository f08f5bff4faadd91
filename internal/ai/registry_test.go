package ai

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_DefaultAndLookup(t *testing.T) {
	reg := NewRegistry()
	reg.Register(" Ollama ", func(ctx context.Context, model string) (Provider, error) {
		return plainProvider("ollama:" + model), nil
	})
	reg.Register("openrouter", func(ctx context.Context, model string) (Provider, error) {
		return plainProvider("openrouter:" + model), nil
	})

	assert.Equal(t, "ollama", reg.DefaultName())
	assert.Equal(t, []string{"ollama", "openrouter"}, reg.Names())

	p, err := reg.Get(context.Background(), "", "llama3")
	require.NoError(t, err)
	reply, _ := p.Chat(context.Background(), nil)
	assert.Equal(t, "ollama:llama3", reply)

	require.NoError(t, reg.SetDefault("OPENROUTER"))
	p, err = reg.Get(context.Background(), "", "auto")
	require.NoError(t, err)
	reply, _ = p.Chat(context.Background(), nil)
	assert.Equal(t, "openrouter:auto", reply)

	_, err = reg.Get(context.Background(), "nope", "")
	assert.Error(t, err)
	assert.Error(t, reg.SetDefault("nope"))
}

func TestHashEmbedder_DeterministicAndNormalized(t *testing.T) {
	e := NewHashEmbedder(64)

	a, err := e.Embed(context.Background(), "Phishing emails create URGENCY")
	require.NoError(t, err)
	b, err := e.Embed(context.Background(), "phishing emails create urgency")
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)

	var norm float32
	for _, v := range a {
		norm += v * v
	}
	assert.InDelta(t, 1.0, norm, 1e-5)

	empty, err := e.Embed(context.Background(), "   ")
	require.NoError(t, err)
	assert.Len(t, empty, 64)
}
