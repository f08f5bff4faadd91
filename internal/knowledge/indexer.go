package knowledge

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/DerMichael0408/CyberGuide/internal/ai"
	"github.com/DerMichael0408/CyberGuide/internal/logger"
	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"
)

// Indexer ingests documents into a VectorStore. Re-indexing a document only
// adds chunks whose source_id is not stored yet.
type Indexer struct {
	store    VectorStore
	embedder ai.Embedder
	splitter *Splitter
	log      *zap.Logger

	// serializes the list-then-insert window within this process; the store's
	// unique index covers other processes
	mu sync.Mutex
}

func NewIndexer(store VectorStore, embedder ai.Embedder, splitter *Splitter, log *zap.Logger) *Indexer {
	if splitter == nil {
		splitter = NewSplitter()
	}
	return &Indexer{
		store:    store,
		embedder: embedder,
		splitter: splitter,
		log:      logger.OrNop(log).Named("indexer"),
	}
}

func SourceID(document string, ordinal int) string {
	return fmt.Sprintf("%s_%d", document, ordinal)
}

func (ix *Indexer) IndexFile(ctx context.Context, path string) (int, error) {
	return ix.Index(ctx, Source{Path: path})
}

// Index returns the number of chunks newly added for src. Unsupported
// document types are skipped with a warning and report 0. Embedding failures
// abort the call.
func (ix *Indexer) Index(ctx context.Context, src Source) (int, error) {
	blocks, err := extractBlocks(src)
	if err != nil {
		if errors.Is(err, ErrUnsupportedDocument) {
			ix.log.Warn("skipping unsupported document", zap.String("path", src.Path))
			return 0, nil
		}
		return 0, err
	}

	var texts []string
	for _, block := range blocks {
		texts = append(texts, ix.splitter.Split(block)...)
	}
	if len(texts) == 0 {
		ix.log.Warn("document has no text", zap.String("path", src.Path))
		return 0, nil
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	existing, err := ix.store.ExistingSourceIDs(ctx, src.Path)
	if err != nil {
		return 0, fmt.Errorf("list indexed chunks: %w", err)
	}

	fresh := make([]Chunk, 0, len(texts))
	for i, text := range texts {
		id := SourceID(src.Path, i)
		if _, ok := existing[id]; ok {
			continue
		}
		vec, err := ix.embedder.Embed(ctx, text)
		if err != nil {
			return 0, fmt.Errorf("embed %s: %w", id, err)
		}
		fresh = append(fresh, Chunk{
			SourceID:  id,
			Document:  src.Path,
			Ordinal:   i,
			Content:   text,
			Embedding: pgvector.NewVector(vec),
		})
	}

	if len(fresh) == 0 {
		ix.log.Info("document already indexed", zap.String("path", src.Path), zap.Int("chunks", len(texts)))
		return 0, nil
	}

	n, err := ix.store.Insert(ctx, fresh)
	if err != nil {
		return 0, fmt.Errorf("insert chunks: %w", err)
	}
	ix.log.Info("document indexed",
		zap.String("path", src.Path),
		zap.Int("chunks", len(texts)),
		zap.Int("new", n),
	)
	return n, nil
}
