package knowledge

import (
	"context"
	"sort"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Candidate is a nearest-neighbour hit returned by a VectorStore.
type Candidate struct {
	SourceID string
	Content  string
	Score    float32
}

// VectorStore is the append-only index shared by every session.
type VectorStore interface {
	// ExistingSourceIDs lists the source ids already stored for a document.
	ExistingSourceIDs(ctx context.Context, document string) (map[string]struct{}, error)
	// Insert stores chunks, silently skipping any source_id that already
	// exists, and reports how many rows were actually added.
	Insert(ctx context.Context, chunks []Chunk) (int, error)
	// Search returns up to k diverse neighbours chosen from the fetchK
	// nearest chunks.
	Search(ctx context.Context, query []float32, k, fetchK int) ([]Candidate, error)
	Count(ctx context.Context) (int64, error)
}

// GormStore keeps chunks in a relational table. On postgres the nearest
// neighbour step runs in SQL with pgvector's cosine distance operator; other
// dialects rank every row in process. Uniqueness of source_id is enforced by the table's unique index.
type GormStore struct {
	db     *gorm.DB
	lambda float32
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db, lambda: DefaultMMRLambda}
}

func (s *GormStore) ExistingSourceIDs(ctx context.Context, document string) (map[string]struct{}, error) {
	var ids []string
	if err := s.db.WithContext(ctx).
		Model(&Chunk{}).
		Where("document = ?", document).
		Pluck("source_id", &ids).Error; err != nil {
		return nil, err
	}
	out := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out, nil
}

func (s *GormStore) Insert(ctx context.Context, chunks []Chunk) (int, error) {
	inserted := 0
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range chunks {
			res := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "source_id"}},
				DoNothing: true,
			}).Create(&chunks[i])
			if res.Error != nil {
				return res.Error
			}
			inserted += int(res.RowsAffected)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

func (s *GormStore) Search(ctx context.Context, query []float32, k, fetchK int) ([]Candidate, error) {
	if k <= 0 {
		return nil, nil
	}
	if fetchK < k {
		fetchK = k
	}

	rows, err := s.nearest(ctx, query, fetchK)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	type scored struct {
		row   *Chunk
		score float32
	}
	hits := make([]scored, len(rows))
	for i := range rows {
		hits[i] = scored{row: &rows[i], score: cosine(query, rows[i].Embedding.Slice())}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	if len(hits) > fetchK {
		hits = hits[:fetchK]
	}

	embeddings := make([][]float32, len(hits))
	for i, h := range hits {
		embeddings[i] = h.row.Embedding.Slice()
	}

	picked := maximalMarginalRelevance(query, embeddings, k, s.lambda)
	out := make([]Candidate, 0, len(picked))
	for _, idx := range picked {
		out = append(out, Candidate{
			SourceID: hits[idx].row.SourceID,
			Content:  hits[idx].row.Content,
			Score:    hits[idx].score,
		})
	}
	return out, nil
}

func (s *GormStore) nearest(ctx context.Context, query []float32, fetchK int) ([]Chunk, error) {
	tx := s.db.WithContext(ctx).Select("source_id", "content", "embedding")
	if pushesDownNearest(s.db) {
		tx = orderByDistance(tx, query, fetchK)
	} else {
		tx = tx.Order("id ASC")
	}
	var rows []Chunk
	if err := tx.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func pushesDownNearest(db *gorm.DB) bool {
	return db.Dialector != nil && db.Dialector.Name() == "postgres"
}

// orderByDistance limits tx to the fetchK rows closest to query by cosine
// distance. The column holds pgvector's text encoding, hence the cast.
func orderByDistance(tx *gorm.DB, query []float32, fetchK int) *gorm.DB {
	return tx.
		Clauses(clause.OrderBy{Expression: clause.Expr{
			SQL:                "embedding::vector <=> ?, id ASC",
			Vars:               []any{pgvector.NewVector(query)},
			WithoutParentheses: true,
		}}).
		Limit(fetchK)
}

func (s *GormStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&Chunk{}).Count(&n).Error
	return n, err
}
