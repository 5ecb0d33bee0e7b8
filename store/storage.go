package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"openrag/types"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBStorer is the metadata store contract consumed by the pipelines and the
// API handlers.
type DBStorer interface {
	CreateDocument(ctx context.Context, doc types.Document) error
	GetDocument(ctx context.Context, id uuid.UUID) (*types.Document, error)
	ListDocuments(ctx context.Context, filter types.DocumentFilter) ([]types.Document, error)
	UpdateDocumentStatus(ctx context.Context, id uuid.UUID, status types.DocumentStatus) error
	DeleteDocument(ctx context.Context, id uuid.UUID) error

	CreateChunk(ctx context.Context, chunk types.Chunk) error
	GetDocumentChunks(ctx context.Context, documentID uuid.UUID) ([]types.Chunk, error)
	DeleteDocumentChunks(ctx context.Context, documentID uuid.UUID) error

	GetOrCreateCollection(ctx context.Context, name string, dimension int) (*types.Collection, error)
	GetCollection(ctx context.Context, id uuid.UUID) (*types.Collection, error)
	ListCollections(ctx context.Context) ([]types.Collection, error)

	SaveQuery(ctx context.Context, record types.QueryRecord) error

	CreateJob(ctx context.Context, jobType string, documentID uuid.UUID) (uuid.UUID, error)
	UpdateJobStatus(ctx context.Context, jobID uuid.UUID, status types.JobStatus) error

	Ping(ctx context.Context) error
}

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connStr string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *PostgresStore) CreateDocument(ctx context.Context, doc types.Document) error {
	query := `INSERT INTO documents (id, filename, file_type, file_size, object_key, collection_id, status, upload_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := p.pool.Exec(ctx, query,
		doc.ID, doc.Filename, doc.FileType, doc.FileSize, doc.ObjectKey, doc.CollectionID, doc.Status, doc.UploadDate,
	)
	if err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	return nil
}

func (p *PostgresStore) GetDocument(ctx context.Context, id uuid.UUID) (*types.Document, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT id, filename, file_type, file_size, object_key, collection_id, status, upload_date, processed_date
		 FROM documents WHERE id = $1`, id)

	doc := &types.Document{}
	err := row.Scan(&doc.ID, &doc.Filename, &doc.FileType, &doc.FileSize, &doc.ObjectKey,
		&doc.CollectionID, &doc.Status, &doc.UploadDate, &doc.ProcessedDate)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get document: %w", err)
	}
	return doc, nil
}

func (p *PostgresStore) ListDocuments(ctx context.Context, filter types.DocumentFilter) ([]types.Document, error) {
	query := `SELECT d.id, d.filename, d.file_type, d.file_size, d.object_key, d.collection_id, d.status, d.upload_date, d.processed_date
		FROM documents d`
	args := []any{}
	where := ""

	if filter.Collection != "" {
		query += " JOIN collections c ON d.collection_id = c.id"
		args = append(args, filter.Collection)
		where = fmt.Sprintf(" WHERE c.name = $%d", len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		if where == "" {
			where = fmt.Sprintf(" WHERE d.status = $%d", len(args))
		} else {
			where += fmt.Sprintf(" AND d.status = $%d", len(args))
		}
	}
	query += where

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit, filter.Offset)
	query += fmt.Sprintf(" ORDER BY d.upload_date DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []types.Document
	for rows.Next() {
		var doc types.Document
		if err := rows.Scan(&doc.ID, &doc.Filename, &doc.FileType, &doc.FileSize, &doc.ObjectKey,
			&doc.CollectionID, &doc.Status, &doc.UploadDate, &doc.ProcessedDate); err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (p *PostgresStore) UpdateDocumentStatus(ctx context.Context, id uuid.UUID, status types.DocumentStatus) error {
	query := `UPDATE documents
		SET status = $1,
		    processed_date = CASE WHEN $1 = 'processed' THEN CURRENT_TIMESTAMP ELSE processed_date END
		WHERE id = $2`
	tag, err := p.pool.Exec(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("update document status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteDocument removes the relational record; chunks go with it via the
// schema's ON DELETE CASCADE.
func (p *PostgresStore) DeleteDocument(ctx context.Context, id uuid.UUID) error {
	_, err := p.pool.Exec(ctx, "DELETE FROM documents WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

func (p *PostgresStore) CreateChunk(ctx context.Context, c types.Chunk) error {
	meta, err := json.Marshal(c.Metadata)
	if err != nil {
		return fmt.Errorf("encode chunk metadata: %w", err)
	}
	query := `INSERT INTO document_chunks (id, document_id, chunk_index, content, vector_id, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := p.pool.Exec(ctx, query, c.ID, c.DocumentID, c.Index, c.Content, c.VectorID, meta); err != nil {
		return fmt.Errorf("create chunk: %w", err)
	}
	return nil
}

func (p *PostgresStore) GetDocumentChunks(ctx context.Context, documentID uuid.UUID) ([]types.Chunk, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, document_id, chunk_index, content, vector_id, metadata
		 FROM document_chunks WHERE document_id = $1 ORDER BY chunk_index`, documentID)
	if err != nil {
		return nil, fmt.Errorf("get document chunks: %w", err)
	}
	defer rows.Close()

	var chunks []types.Chunk
	for rows.Next() {
		var c types.Chunk
		var meta []byte
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Index, &c.Content, &c.VectorID, &meta); err != nil {
			return nil, err
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &c.Metadata); err != nil {
				return nil, fmt.Errorf("decode chunk metadata: %w", err)
			}
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

func (p *PostgresStore) DeleteDocumentChunks(ctx context.Context, documentID uuid.UUID) error {
	_, err := p.pool.Exec(ctx, "DELETE FROM document_chunks WHERE document_id = $1", documentID)
	if err != nil {
		return fmt.Errorf("delete document chunks: %w", err)
	}
	return nil
}

func (p *PostgresStore) GetOrCreateCollection(ctx context.Context, name string, dimension int) (*types.Collection, error) {
	col := &types.Collection{}
	err := p.pool.QueryRow(ctx,
		`SELECT id, name, description, dimension, created_at FROM collections WHERE name = $1`, name).
		Scan(&col.ID, &col.Name, &col.Description, &col.Dimension, &col.CreatedAt)
	if err == nil {
		return col, nil
	}
	if err != pgx.ErrNoRows {
		return nil, fmt.Errorf("get collection: %w", err)
	}

	err = p.pool.QueryRow(ctx,
		`INSERT INTO collections (id, name, dimension)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		 RETURNING id, name, description, dimension, created_at`,
		uuid.New(), name, dimension).
		Scan(&col.ID, &col.Name, &col.Description, &col.Dimension, &col.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	return col, nil
}

func (p *PostgresStore) GetCollection(ctx context.Context, id uuid.UUID) (*types.Collection, error) {
	col := &types.Collection{}
	err := p.pool.QueryRow(ctx,
		`SELECT id, name, description, dimension, created_at FROM collections WHERE id = $1`, id).
		Scan(&col.ID, &col.Name, &col.Description, &col.Dimension, &col.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get collection: %w", err)
	}
	return col, nil
}

func (p *PostgresStore) ListCollections(ctx context.Context) ([]types.Collection, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT c.id, c.name, c.description, c.dimension, c.created_at, COUNT(d.id)
		 FROM collections c
		 LEFT JOIN documents d ON d.collection_id = c.id
		 GROUP BY c.id, c.name, c.description, c.dimension, c.created_at
		 ORDER BY c.name`)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	defer rows.Close()

	var cols []types.Collection
	for rows.Next() {
		var c types.Collection
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.Dimension, &c.CreatedAt, &c.DocumentCount); err != nil {
			return nil, err
		}
		cols = append(cols, c)
	}
	return cols, rows.Err()
}

func (p *PostgresStore) SaveQuery(ctx context.Context, record types.QueryRecord) error {
	sources, err := json.Marshal(record.Sources)
	if err != nil {
		return fmt.Errorf("encode query sources: %w", err)
	}
	query := `INSERT INTO queries (id, query_text, response_text, sources, execution_time_ms)
		VALUES ($1, $2, $3, $4, $5)`
	if _, err := p.pool.Exec(ctx, query,
		record.ID, record.QueryText, record.ResponseText, sources, record.ExecutionTimeMs); err != nil {
		return fmt.Errorf("save query: %w", err)
	}
	return nil
}

func (p *PostgresStore) CreateJob(ctx context.Context, jobType string, documentID uuid.UUID) (uuid.UUID, error) {
	id := uuid.New()
	_, err := p.pool.Exec(ctx,
		`INSERT INTO processing_jobs (id, job_type, document_id, status) VALUES ($1, $2, $3, $4)`,
		id, jobType, documentID, types.JobPending)
	if err != nil {
		return uuid.Nil, fmt.Errorf("create job: %w", err)
	}
	return id, nil
}

func (p *PostgresStore) UpdateJobStatus(ctx context.Context, jobID uuid.UUID, status types.JobStatus) error {
	_, err := p.pool.Exec(ctx, "UPDATE processing_jobs SET status = $1 WHERE id = $2", status, jobID)
	if err != nil {
		return fmt.Errorf("update job status: %w", err)
	}
	return nil
}

func (p *PostgresStore) createTables(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS collections (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		description TEXT NOT NULL DEFAULT '',
		dimension INTEGER NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS documents (
		id UUID PRIMARY KEY,
		filename TEXT NOT NULL,
		file_type TEXT,
		file_size BIGINT NOT NULL DEFAULT 0,
		object_key TEXT NOT NULL,
		collection_id UUID NOT NULL REFERENCES collections(id),
		status TEXT NOT NULL CHECK (status IN ('uploaded','processing','processed','failed')),
		upload_date TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT CURRENT_TIMESTAMP,
		processed_date TIMESTAMP WITH TIME ZONE
	);

	CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(status);
	CREATE INDEX IF NOT EXISTS idx_documents_collection ON documents(collection_id);

	CREATE TABLE IF NOT EXISTS document_chunks (
		id UUID PRIMARY KEY,
		document_id UUID NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
		chunk_index INT NOT NULL,
		content TEXT NOT NULL,
		vector_id UUID NOT NULL,
		metadata JSONB
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_document ON document_chunks(document_id);
	CREATE INDEX IF NOT EXISTS idx_chunks_vector ON document_chunks(vector_id);

	CREATE TABLE IF NOT EXISTS queries (
		id UUID PRIMARY KEY,
		query_text TEXT NOT NULL,
		response_text TEXT,
		sources JSONB,
		execution_time_ms BIGINT,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS processing_jobs (
		id UUID PRIMARY KEY,
		job_type TEXT NOT NULL,
		document_id UUID NOT NULL,
		status TEXT NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := p.pool.Exec(ctx, query)
	return err
}

func (p *PostgresStore) Init(ctx context.Context) error {
	return p.createTables(ctx)
}

// Close closes the connection pool.
func (p *PostgresStore) Close() error {
	if p.pool != nil {
		p.pool.Close()
		log.Println("Postgres connection pool is closed")
	}
	return nil
}
