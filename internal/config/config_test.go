package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DB_DSN", "")
	t.Setenv("KNOWLEDGE_CHUNK_SIZE", "")
	t.Setenv("KNOWLEDGE_CHUNK_OVERLAP", "")
	t.Setenv("RETRIEVER_TOP_K", "")
	t.Setenv("AI_PROVIDER", "")

	cfg := Load()

	assert.Equal(t, "sqlite://cyberguide.db", cfg.DBDSN)
	assert.Equal(t, 800, cfg.KnowledgeChunkSize)
	assert.Equal(t, 300, cfg.KnowledgeChunkOverlap)
	assert.Equal(t, 5, cfg.RetrieverTopK)
	assert.Equal(t, "ollama", cfg.AIProvider)
	assert.Equal(t, "memory", cfg.TurnLockBackend)
}

func TestLoad_OverridesAndClamps(t *testing.T) {
	t.Setenv("AI_PROVIDER", "OpenRouter")
	t.Setenv("KNOWLEDGE_CHUNK_SIZE", "400")
	t.Setenv("KNOWLEDGE_CHUNK_OVERLAP", "500")
	t.Setenv("WORKER_CONCURRENCY", "99")
	t.Setenv("CORS_ORIGINS", "http://a.test, http://b.test ,")
	t.Setenv("EXPERT_INCLUDE_RANKED_CONTEXT", "true")

	cfg := Load()

	assert.Equal(t, "openrouter", cfg.AIProvider)
	assert.Equal(t, 400, cfg.KnowledgeChunkSize)
	assert.Equal(t, 200, cfg.KnowledgeChunkOverlap)
	assert.Equal(t, 50, cfg.WorkerConcurrency)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSOrigins)
	assert.True(t, cfg.ExpertIncludeRankedContext)
}
