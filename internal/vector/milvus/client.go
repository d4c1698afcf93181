// Package milvus is the vector index adapter. The collection holds one record
// per embedded chunk, keyed deterministically by source file and chunk
// sequence so re-ingesting a file overwrites its previous records instead of
// duplicating them.
package milvus

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.uber.org/zap"

	"github.com/campusbrain/backend/pkg/apperr"
)

const vectorField = "embedding"

// Per-call deadlines so a hung gRPC connection cannot wedge a request or an
// ingestion run. Upserts flush, so they get the longer budget.
const (
	searchTimeout = 30 * time.Second
	upsertTimeout = 2 * time.Minute
)

// Record is the unit persisted in the index.
type Record struct {
	ID        string
	Embedding []float32
	Text      string
	Cohort    string
	FileID    string
	FileName  string
	FileLink  string
	Seq       int64
}

// Passage is one retrieved record with its similarity score.
type Passage struct {
	RecordID string
	Text     string
	Cohort   string
	FileID   string
	FileName string
	FileLink string
	Seq      int64
	Score    float32
}

type Client struct {
	client         client.Client
	collectionName string
	vectorDim      int
	logger         *zap.Logger
}

func NewClient(ctx context.Context, endpoint, collectionName string, vectorDim int, logger *zap.Logger) (*Client, error) {
	c, err := client.NewGrpcClient(ctx, endpoint)
	if err != nil {
		return nil, apperr.Unavailable("milvus connect", err)
	}

	logger.Info("Milvus client initialized",
		zap.String("endpoint", endpoint),
		zap.String("collection", collectionName),
		zap.Int("dim", vectorDim),
	)

	return &Client{
		client:         c,
		collectionName: collectionName,
		vectorDim:      vectorDim,
		logger:         logger,
	}, nil
}

func (m *Client) Close() error {
	return m.client.Close()
}

// EnsureCollection creates the collection on first run. When it already
// exists, the live vector dimension is checked against the configured one and
// a mismatch is returned as a fatal DimensionMismatch: mixing vectors from two
// embedding models in one collection silently corrupts rankings.
func (m *Client) EnsureCollection(ctx context.Context) error {
	has, err := m.client.HasCollection(ctx, m.collectionName)
	if err != nil {
		return apperr.Unavailable("milvus check collection", err)
	}

	if has {
		existing, err := m.client.DescribeCollection(ctx, m.collectionName)
		if err != nil {
			return apperr.Unavailable("milvus describe collection", err)
		}
		dim, err := collectionDim(existing.Schema)
		if err != nil {
			return err
		}
		if dim != m.vectorDim {
			return apperr.DimensionMismatch(m.vectorDim, dim)
		}
		m.logger.Info("Collection already exists", zap.String("collection", m.collectionName))
		return nil
	}

	schema := &entity.Schema{
		CollectionName: m.collectionName,
		Description:    "Cohort-scoped study material embeddings",
		Fields: []*entity.Field{
			{
				Name:       "record_id",
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				AutoID:     false,
				TypeParams: map[string]string{"max_length": "128"},
			},
			{
				Name:     vectorField,
				DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					"dim": fmt.Sprintf("%d", m.vectorDim),
				},
			},
			{
				Name:       "text",
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "8192"},
			},
			{
				Name:       "cohort",
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "32"},
			},
			{
				Name:       "file_id",
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "128"},
			},
			{
				Name:       "file_name",
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "512"},
			},
			{
				Name:       "file_link",
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "512"},
			},
			{
				Name:     "seq",
				DataType: entity.FieldTypeInt64,
			},
		},
	}

	if err := m.client.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
		return apperr.Unavailable("milvus create collection", err)
	}

	idx, err := entity.NewIndexIvfFlat(entity.COSINE, 1024)
	if err != nil {
		return apperr.Unavailable("milvus create index", err)
	}
	if err := m.client.CreateIndex(ctx, m.collectionName, vectorField, idx, false); err != nil {
		return apperr.Unavailable("milvus create index", err)
	}

	if err := m.client.LoadCollection(ctx, m.collectionName, false); err != nil {
		return apperr.Unavailable("milvus load collection", err)
	}

	m.logger.Info("Collection created and loaded", zap.String("collection", m.collectionName))

	return nil
}

// Upsert writes records keyed by record_id. Existing ids are overwritten.
func (m *Client) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, upsertTimeout)
	defer cancel()

	ids := make([]string, len(records))
	embeddings := make([][]float32, len(records))
	texts := make([]string, len(records))
	cohorts := make([]string, len(records))
	fileIDs := make([]string, len(records))
	fileNames := make([]string, len(records))
	fileLinks := make([]string, len(records))
	seqs := make([]int64, len(records))

	for i, rec := range records {
		if len(rec.Embedding) != m.vectorDim {
			return apperr.DimensionMismatch(m.vectorDim, len(rec.Embedding))
		}
		ids[i] = rec.ID
		embeddings[i] = rec.Embedding
		texts[i] = rec.Text
		cohorts[i] = rec.Cohort
		fileIDs[i] = rec.FileID
		fileNames[i] = rec.FileName
		fileLinks[i] = rec.FileLink
		seqs[i] = rec.Seq
	}

	_, err := m.client.Upsert(
		ctx,
		m.collectionName,
		"",
		entity.NewColumnVarChar("record_id", ids),
		entity.NewColumnFloatVector(vectorField, m.vectorDim, embeddings),
		entity.NewColumnVarChar("text", texts),
		entity.NewColumnVarChar("cohort", cohorts),
		entity.NewColumnVarChar("file_id", fileIDs),
		entity.NewColumnVarChar("file_name", fileNames),
		entity.NewColumnVarChar("file_link", fileLinks),
		entity.NewColumnInt64("seq", seqs),
	)
	if err != nil {
		return apperr.Unavailable("milvus upsert", err)
	}

	if err := m.client.Flush(ctx, m.collectionName, false); err != nil {
		return apperr.Unavailable("milvus flush", err)
	}

	m.logger.Info("Records upserted", zap.Int("count", len(records)))

	return nil
}

// Search runs a cohort-filtered similarity search. The cohort filter is
// mandatory: there is deliberately no way to search across cohorts.
func (m *Client) Search(ctx context.Context, vector []float32, cohort string, topK int) ([]Passage, error) {
	if cohort == "" {
		return nil, apperr.InvalidInput("milvus search: empty cohort")
	}
	if len(vector) != m.vectorDim {
		return nil, apperr.DimensionMismatch(m.vectorDim, len(vector))
	}

	ctx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()

	sp, _ := entity.NewIndexIvfFlatSearchParam(16)

	searchResult, err := m.client.Search(
		ctx,
		m.collectionName,
		[]string{},
		CohortFilter(cohort),
		outputFields,
		[]entity.Vector{entity.FloatVector(vector)},
		vectorField,
		entity.COSINE,
		topK,
		sp,
	)
	if err != nil {
		return nil, apperr.Unavailable("milvus search", err)
	}

	passages := make([]Passage, 0)
	for _, sr := range searchResult {
		batch, err := resultPassages(sr)
		if err != nil {
			return nil, err
		}
		passages = append(passages, batch...)
	}

	m.logger.Debug("Vector search completed",
		zap.String("cohort", cohort),
		zap.Int("topK", topK),
		zap.Int("results", len(passages)),
	)

	return passages, nil
}

var outputFields = []string{"record_id", "text", "cohort", "file_id", "file_name", "file_link", "seq"}

// resultPassages converts one raw search result into passages. A missing
// output column means the live collection schema drifted from what this
// adapter expects; that is an error, not a panic.
func resultPassages(sr client.SearchResult) ([]Passage, error) {
	cols := make(map[string]entity.Column, len(outputFields))
	for _, name := range outputFields {
		col := sr.Fields.GetColumn(name)
		if col == nil {
			return nil, apperr.Unavailable("milvus search",
				fmt.Errorf("result is missing field %q", name))
		}
		cols[name] = col
	}

	passages := make([]Passage, 0, sr.ResultCount)
	for i := 0; i < sr.ResultCount; i++ {
		recordID, _ := cols["record_id"].GetAsString(i)
		text, _ := cols["text"].GetAsString(i)
		cohortVal, _ := cols["cohort"].GetAsString(i)
		fileID, _ := cols["file_id"].GetAsString(i)
		fileName, _ := cols["file_name"].GetAsString(i)
		fileLink, _ := cols["file_link"].GetAsString(i)
		seq, _ := cols["seq"].GetAsInt64(i)

		passages = append(passages, Passage{
			RecordID: recordID,
			Text:     text,
			Cohort:   cohortVal,
			FileID:   fileID,
			FileName: fileName,
			FileLink: fileLink,
			Seq:      seq,
			Score:    sr.Scores[i],
		})
	}

	return passages, nil
}

// CohortFilter builds the exact-match filter expression for one cohort key.
func CohortFilter(cohort string) string {
	escaped := strings.ReplaceAll(cohort, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	return fmt.Sprintf(`cohort == "%s"`, escaped)
}

func collectionDim(schema *entity.Schema) (int, error) {
	for _, field := range schema.Fields {
		if field.Name != vectorField {
			continue
		}
		raw, ok := field.TypeParams["dim"]
		if !ok {
			break
		}
		dim, err := strconv.Atoi(raw)
		if err != nil {
			break
		}
		return dim, nil
	}
	return 0, fmt.Errorf("collection %q has no usable vector field dimension", schema.CollectionName)
}
