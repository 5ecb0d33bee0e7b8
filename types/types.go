package types

import (
	"time"

	"github.com/google/uuid"
)

// DocumentStatus is the ingestion lifecycle state of a document.
// Transitions only move forward, except processing->failed and
// failed->processing on reprocess.
type DocumentStatus string

const (
	StatusUploaded   DocumentStatus = "uploaded"
	StatusProcessing DocumentStatus = "processing"
	StatusProcessed  DocumentStatus = "processed"
	StatusFailed     DocumentStatus = "failed"
)

type Document struct {
	ID            uuid.UUID      `json:"id"`
	Filename      string         `json:"filename"`
	FileType      string         `json:"file_type"`
	FileSize      int64          `json:"file_size"`
	ObjectKey     string         `json:"object_key"`
	CollectionID  uuid.UUID      `json:"collection_id"`
	Status        DocumentStatus `json:"status"`
	UploadDate    time.Time      `json:"upload_date"`
	ProcessedDate *time.Time     `json:"processed_date,omitempty"`
}

// Chunk is one retrievable unit of a document's text. VectorID is the id of
// the single point carrying this chunk in the vector index.
type Chunk struct {
	ID         uuid.UUID         `json:"id"`
	DocumentID uuid.UUID         `json:"document_id"`
	Index      int               `json:"chunk_index"`
	Content    string            `json:"content"`
	VectorID   uuid.UUID         `json:"vector_id"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Collection is a named partition of the vector index plus its relational
// bookkeeping row. Vector dimensionality is fixed at creation time.
type Collection struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	Dimension     int       `json:"dimension"`
	DocumentCount int       `json:"document_count"`
	CreatedAt     time.Time `json:"created_at"`
}

// Source is a citation back to the originating document and chunk.
type Source struct {
	DocumentID     uuid.UUID `json:"document_id"`
	Filename       string    `json:"filename"`
	ChunkIndex     int       `json:"chunk_index"`
	RelevanceScore float64   `json:"relevance_score"`
}

// QueryRecord is the immutable audit entry for one answered question.
type QueryRecord struct {
	ID              uuid.UUID `json:"id"`
	QueryText       string    `json:"query_text"`
	ResponseText    *string   `json:"response_text,omitempty"`
	Sources         []Source  `json:"sources"`
	ExecutionTimeMs int64     `json:"execution_time_ms"`
	CreatedAt       time.Time `json:"created_at"`
}

type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// ProcessingJob marks an in-flight ingestion task. It exists for
// observability and does not gate pipeline execution.
type ProcessingJob struct {
	ID         uuid.UUID `json:"id"`
	JobType    string    `json:"job_type"`
	DocumentID uuid.UUID `json:"document_id"`
	Status     JobStatus `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}

// DocumentFilter narrows ListDocuments results.
type DocumentFilter struct {
	Collection string
	Status     DocumentStatus
	Limit      int
	Offset     int
}
