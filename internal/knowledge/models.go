package knowledge

import (
	"time"

	"github.com/pgvector/pgvector-go"
)

// Chunk is one indexed slice of a document. Embedding is written once at
// index time and never updated.
type Chunk struct {
	ID       uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	SourceID string `gorm:"type:varchar(512);uniqueIndex;not null" json:"source_id"`
	Document string `gorm:"type:varchar(512);index;not null" json:"document"`
	Ordinal  int    `gorm:"not null" json:"ordinal"`
	Content  string `gorm:"type:text;not null" json:"content"`
	// stored as pgvector's "[x,y,...]" text encoding so the column works on
	// every dialect db.Connect supports
	Embedding pgvector.Vector `gorm:"type:text;not null" json:"-"`
	CreatedAt time.Time       `json:"created_at"`
}

func (Chunk) TableName() string { return "knowledge_chunks" }

type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// IndexJob tracks an asynchronous indexing request.
type IndexJob struct {
	ID string `gorm:"primaryKey;size:26" json:"id"` // ULID length

	Path string `gorm:"type:varchar(512);not null" json:"path"`

	IdempotencyKey *string `gorm:"type:varchar(128);uniqueIndex:uniq_index_job_idempo" json:"-"`

	Status JobStatus `gorm:"type:varchar(16);index;not null" json:"status"`

	// Filled when succeeded
	NewChunks int `gorm:"not null;default:0" json:"new_chunks"`

	// Filled when failed
	Error *string `gorm:"type:text" json:"error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (IndexJob) TableName() string { return "knowledge_index_jobs" }

// Models lists the tables owned by this package, for AutoMigrate.
func Models() []any {
	return []any{&Chunk{}, &IndexJob{}}
}
