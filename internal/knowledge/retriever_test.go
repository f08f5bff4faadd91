package knowledge

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/DerMichael0408/CyberGuide/internal/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func indexedRetriever(t *testing.T) *Retriever {
	t.Helper()
	store := NewGormStore(openTestDB(t))
	emb := ai.NewHashEmbedder(128)
	_, err := NewIndexer(store, emb, nil, nil).Index(context.Background(), Source{Path: "kb.json", Data: []byte(threeScenarios)})
	require.NoError(t, err)
	return NewRetriever(store, emb, 5, nil)
}

func TestRetrieve_EmptyIndexReturnsSentinel(t *testing.T) {
	r := NewRetriever(NewGormStore(openTestDB(t)), ai.NewHashEmbedder(32), 5, nil)

	res, err := r.Retrieve(context.Background(), "how do I spot phishing?", 0)
	require.NoError(t, err)
	assert.True(t, res.Empty())
	assert.Empty(t, res.Ranked)
	assert.Equal(t, NoInformationFound, res.Best())
}

func TestRetrieve_EmptyQueryReturnsSentinel(t *testing.T) {
	res, err := indexedRetriever(t).Retrieve(context.Background(), "   ", 3)
	require.NoError(t, err)
	assert.Equal(t, NoInformationFound, res.Best())
}

func TestRetrieve_BestIsFirstRanked(t *testing.T) {
	res, err := indexedRetriever(t).Retrieve(context.Background(), "report the phishing email to security", 0)
	require.NoError(t, err)

	require.NotEmpty(t, res.Ranked)
	assert.Equal(t, res.Ranked[0], res.Best())
	assert.True(t, strings.Contains(res.Best(), "Phishing Email Triage"), res.Best())
	assert.Len(t, res.Ranked, 3)
}

func TestRetrieve_ZeroOverlapStillReturnsBestEffort(t *testing.T) {
	res, err := indexedRetriever(t).Retrieve(context.Background(), "zzzz qqqq", 2)
	require.NoError(t, err)
	assert.False(t, res.Empty())
	assert.NotEqual(t, NoInformationFound, res.Best())
	assert.Len(t, res.Ranked, 2)
}

type errStore struct{ VectorStore }

func (errStore) Search(ctx context.Context, query []float32, k, fetchK int) ([]Candidate, error) {
	return nil, errors.New("index offline")
}

func TestRetrieve_StoreErrorPropagates(t *testing.T) {
	r := NewRetriever(errStore{}, ai.NewHashEmbedder(8), 5, nil)
	_, err := r.Retrieve(context.Background(), "phishing", 0)
	assert.ErrorContains(t, err, "index offline")
}

type recordingStore struct {
	VectorStore
	k, fetchK int
}

func (s *recordingStore) Search(ctx context.Context, query []float32, k, fetchK int) ([]Candidate, error) {
	s.k, s.fetchK = k, fetchK
	return nil, nil
}

func TestRetrieve_OverFetchesTwiceK(t *testing.T) {
	s := &recordingStore{}
	_, err := NewRetriever(s, ai.NewHashEmbedder(8), 5, nil).Retrieve(context.Background(), "mfa", 0)
	require.NoError(t, err)
	assert.Equal(t, 5, s.k)
	assert.Equal(t, 10, s.fetchK)
}

func TestRerankByOverlap_StableOnTies(t *testing.T) {
	got := rerankByOverlap("Phishing urgency", []Candidate{
		{Content: "backups matter"},
		{Content: "phishing uses urgency"},
		{Content: "tailgating at doors"},
		{Content: "phishing links"},
	})
	assert.Equal(t, []string{
		"phishing uses urgency",
		"phishing links",
		"backups matter",
		"tailgating at doors",
	}, got)
}

func TestMaximalMarginalRelevance_SkipsNearDuplicates(t *testing.T) {
	query := []float32{0.9, 0.436}
	embeddings := [][]float32{
		{1, 0},
		{1, 0.01},
		{0.5, 0.866},
	}
	assert.Equal(t, []int{1, 2}, maximalMarginalRelevance(query, embeddings, 2, DefaultMMRLambda))
	assert.Len(t, maximalMarginalRelevance(query, embeddings, 10, DefaultMMRLambda), 3)
	assert.Nil(t, maximalMarginalRelevance(query, nil, 2, DefaultMMRLambda))
}
