package knowledge

import (
	"context"
	"testing"

	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestPushesDownNearest_OnlyOnPostgres(t *testing.T) {
	assert.False(t, pushesDownNearest(openTestDB(t)))
	assert.False(t, pushesDownNearest(&gorm.DB{Config: &gorm.Config{}}))
}

func TestOrderByDistance_LimitsToFetchK(t *testing.T) {
	db := openTestDB(t).Session(&gorm.Session{DryRun: true})

	var rows []Chunk
	stmt := orderByDistance(db.Select("source_id", "content", "embedding"), []float32{1, 0}, 7).
		Find(&rows).Statement

	sql := stmt.SQL.String()
	assert.Contains(t, sql, "ORDER BY embedding::vector <=> ?, id ASC")
	assert.Contains(t, sql, "LIMIT 7")
	require.Len(t, stmt.Vars, 1)
	assert.Equal(t, pgvector.NewVector([]float32{1, 0}), stmt.Vars[0])
}

func TestGormStore_SearchRanksInProcessOffPostgres(t *testing.T) {
	store := NewGormStore(openTestDB(t))
	ctx := context.Background()
	_, err := store.Insert(ctx, []Chunk{
		{SourceID: "a_0", Document: "a", Content: "far", Embedding: pgvector.NewVector([]float32{0, 1})},
		{SourceID: "a_1", Document: "a", Content: "near", Embedding: pgvector.NewVector([]float32{1, 0.1})},
	})
	require.NoError(t, err)

	got, err := store.Search(ctx, []float32{1, 0}, 1, 2)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "near", got[0].Content)
}
