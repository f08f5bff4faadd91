package knowledge

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/DerMichael0408/CyberGuide/internal/ai"
	"github.com/DerMichael0408/CyberGuide/internal/logger"
	"go.uber.org/zap"
)

const (
	NoInformationFound = "No relevant cybersecurity information found."
	DefaultTopK        = 5
)

// Result is a ranked list of chunk texts, best first.
type Result struct {
	Ranked []string `json:"ranked"`
}

// Best is the top-ranked chunk, or NoInformationFound when nothing matched.
func (r Result) Best() string {
	if len(r.Ranked) == 0 {
		return NoInformationFound
	}
	return r.Ranked[0]
}

func (r Result) Empty() bool { return len(r.Ranked) == 0 }

type Retriever struct {
	store    VectorStore
	embedder ai.Embedder
	topK     int
	log      *zap.Logger
}

func NewRetriever(store VectorStore, embedder ai.Embedder, topK int, log *zap.Logger) *Retriever {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Retriever{
		store:    store,
		embedder: embedder,
		topK:     topK,
		log:      logger.OrNop(log).Named("retriever"),
	}
}

// Retrieve over-fetches 2k diverse neighbours and re-ranks them by word
// overlap with the query. k <= 0 uses the configured default. An empty query
// or an empty index yields the empty Result, not an error.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) (Result, error) {
	if k <= 0 {
		k = r.topK
	}
	if strings.TrimSpace(query) == "" {
		return Result{}, nil
	}

	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return Result{}, fmt.Errorf("embed query: %w", err)
	}

	candidates, err := r.store.Search(ctx, vec, k, 2*k)
	if err != nil {
		return Result{}, fmt.Errorf("search: %w", err)
	}
	if len(candidates) == 0 {
		r.log.Debug("no candidates", zap.String("query", query))
		return Result{}, nil
	}

	return Result{Ranked: rerankByOverlap(query, candidates)}, nil
}

func tokenSet(s string) map[string]struct{} {
	words := strings.Fields(strings.ToLower(s))
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// rerankByOverlap orders candidates by how many distinct query words they
// contain. Ties keep the search order.
func rerankByOverlap(query string, candidates []Candidate) []string {
	q := tokenSet(query)

	type ranked struct {
		content string
		overlap int
	}
	items := make([]ranked, len(candidates))
	for i, c := range candidates {
		n := 0
		for w := range tokenSet(c.Content) {
			if _, ok := q[w]; ok {
				n++
			}
		}
		items[i] = ranked{content: c.Content, overlap: n}
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].overlap > items[j].overlap })

	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.content
	}
	return out
}
