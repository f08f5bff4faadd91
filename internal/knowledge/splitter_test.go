package knowledge

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitter_ShortTextIsOneChunk(t *testing.T) {
	chunks := NewSplitter().Split("  Use unique passwords.  ")
	assert.Equal(t, []string{"Use unique passwords."}, chunks)
	assert.Nil(t, NewSplitter().Split(" \n "))
}

func TestSplitter_RespectsSizeAndOverlaps(t *testing.T) {
	var words []string
	for i := 0; i < 400; i++ {
		words = append(words, fmt.Sprintf("w%04d", i))
	}
	text := strings.Join(words, " ")

	chunks := NewSplitter(WithChunkSize(200), WithOverlap(60)).Split(text)
	require.Greater(t, len(chunks), 3)

	for i, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 200, "chunk %d", i)
	}
	for i := 1; i < len(chunks); i++ {
		firstWord := strings.Fields(chunks[i])[0]
		assert.Contains(t, chunks[i-1], firstWord, "chunk %d should start inside the previous chunk", i)
	}
	assert.True(t, strings.HasPrefix(chunks[0], "w0000"))
	assert.True(t, strings.HasSuffix(chunks[len(chunks)-1], "w0399"))
}

func TestSplitter_PrefersParagraphs(t *testing.T) {
	para := strings.Repeat("a", 50)
	text := para + "\n\n" + para + "\n\n" + para

	chunks := NewSplitter(WithChunkSize(110), WithOverlap(0)).Split(text)
	assert.Equal(t, []string{para + "\n\n" + para, para}, chunks)
}

func TestSplitter_Deterministic(t *testing.T) {
	text := strings.Repeat("Phishing relies on urgency.\n", 80)
	s := NewSplitter()
	assert.Equal(t, s.Split(text), s.Split(text))
}

func TestSplitter_OverlapClampedBelowSize(t *testing.T) {
	s := NewSplitter(WithChunkSize(100), WithOverlap(400))
	assert.Equal(t, 50, s.overlap)
}
