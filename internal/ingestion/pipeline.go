// Package ingestion orchestrates the batch path: list each cohort's source
// folder, download and parse every document, chunk and embed the text, and
// upsert the records into the vector index. Failures are isolated per file
// and aggregated into a run report; one bad PDF never blocks the other fifty.
//
// Runs are not safe to execute concurrently against the same cohort; the
// scheduler guarantees at most one run at a time.
package ingestion

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campusbrain/backend/internal/chunker"
	"github.com/campusbrain/backend/internal/drive"
	"github.com/campusbrain/backend/internal/metrics"
	"github.com/campusbrain/backend/internal/parser"
	"github.com/campusbrain/backend/internal/storage/models"
	"github.com/campusbrain/backend/internal/vector/milvus"
	"github.com/campusbrain/backend/pkg/apperr"
)

// linkTrailer is appended to every segment so the source link survives into
// retrieved context and the model can surface it verbatim.
const linkTrailer = "[OFFICIAL DOCUMENT LINK]: "

type Source interface {
	ListFolder(ctx context.Context, folderID string) ([]drive.SourceFile, error)
	Download(ctx context.Context, fileID, dest string) error
	ExportHTML(ctx context.Context, fileID string) (string, error)
}

type Parser interface {
	ParsePDF(ctx context.Context, path string) ([]string, error)
}

type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

type VectorStore interface {
	Upsert(ctx context.Context, records []milvus.Record) error
}

// Recorder persists run reports. Optional; persistence failures are logged
// and never fail the run.
type Recorder interface {
	InsertIngestRun(run *models.IngestRun) error
	InsertIngestFileError(fe *models.IngestFileError) error
}

type Pipeline struct {
	source          Source
	parser          Parser
	embedder        Embedder
	store           VectorStore
	chunker         *chunker.Chunker
	recorder        Recorder
	scratchDir      string
	throttleBackoff time.Duration
	logger          *zap.Logger
}

type Options struct {
	ScratchDir      string
	ThrottleBackoff time.Duration
	Recorder        Recorder
}

func NewPipeline(source Source, parser Parser, embedder Embedder, store VectorStore,
	ch *chunker.Chunker, opts Options, logger *zap.Logger) *Pipeline {
	scratch := opts.ScratchDir
	if scratch == "" {
		scratch = "./temp_downloads"
	}
	backoff := opts.ThrottleBackoff
	if backoff <= 0 {
		backoff = 60 * time.Second
	}

	return &Pipeline{
		source:          source,
		parser:          parser,
		embedder:        embedder,
		store:           store,
		chunker:         ch,
		recorder:        opts.Recorder,
		scratchDir:      scratch,
		throttleBackoff: backoff,
		logger:          logger,
	}
}

// Ingest processes every cohort in cohortMap and returns the aggregated
// report. Only environmental failures (scratch directory, cancelled context)
// abort the run; everything else is reported per cohort or per file.
func (p *Pipeline) Ingest(ctx context.Context, cohortMap map[string]string) (*Report, error) {
	report := &Report{
		RunID:     uuid.New().String(),
		StartedAt: time.Now().UTC(),
	}

	if err := os.MkdirAll(p.scratchDir, 0o755); err != nil {
		return nil, fmt.Errorf("create scratch dir %s: %w", p.scratchDir, err)
	}
	defer func() {
		if err := os.RemoveAll(p.scratchDir); err != nil {
			p.logger.Warn("Failed to remove scratch dir", zap.Error(err))
		}
	}()

	cohorts := make([]string, 0, len(cohortMap))
	for cohort := range cohortMap {
		cohorts = append(cohorts, cohort)
	}
	sort.Strings(cohorts)

	for _, cohort := range cohorts {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		p.logger.Info("Processing cohort", zap.String("cohort", cohort))

		cr, throttled := p.processCohort(ctx, cohort, cohortMap[cohort])
		if throttled {
			p.logger.Warn("Cohort throttled, backing off",
				zap.String("cohort", cohort),
				zap.Duration("backoff", p.throttleBackoff),
			)
			select {
			case <-ctx.Done():
				report.Cohorts = append(report.Cohorts, cr)
				return report, ctx.Err()
			case <-time.After(p.throttleBackoff):
			}
			// Record ids are deterministic, so re-running the cohort
			// overwrites whatever the first pass already uploaded.
			cr, _ = p.processCohort(ctx, cohort, cohortMap[cohort])
			cr.Retried = true
		}

		report.Cohorts = append(report.Cohorts, cr)
	}

	report.FinishedAt = time.Now().UTC()

	p.persist(report)

	p.logger.Info("Ingestion run finished",
		zap.String("run_id", report.RunID),
		zap.Int("files_seen", report.FilesSeen()),
		zap.Int("segments", report.SegmentsUploaded()),
		zap.Int("errors", report.ErrorCount()),
	)

	return report, nil
}

// processCohort runs one pass over a cohort folder. The second return value
// reports whether any upstream signalled throttling during the pass.
func (p *Pipeline) processCohort(ctx context.Context, cohort, folderID string) (CohortReport, bool) {
	cr := CohortReport{Cohort: cohort}
	throttled := false

	files, err := p.source.ListFolder(ctx, folderID)
	if err != nil {
		cr.Errors = append(cr.Errors, FileError{Err: fmt.Sprintf("list folder: %v", err)})
		return cr, apperr.IsThrottled(err)
	}

	if len(files) == 0 {
		// Almost always a sharing problem, not an empty course.
		cr.EmptyListing = true
		p.logger.Warn("No files found in cohort folder",
			zap.String("cohort", cohort),
			zap.String("folder_id", folderID),
		)
		return cr, false
	}

	cr.FilesSeen = len(files)

	for _, file := range files {
		if ctx.Err() != nil {
			return cr, throttled
		}

		segments, empty, err := p.ingestFile(ctx, cohort, file)
		switch {
		case err != nil:
			if apperr.IsThrottled(err) {
				throttled = true
			}
			cr.Errors = append(cr.Errors, FileError{
				FileID:   file.ID,
				FileName: file.Name,
				Err:      err.Error(),
			})
			metrics.IngestFileErrors.Inc()
			p.logger.Error("Failed to ingest file",
				zap.String("cohort", cohort),
				zap.String("file", file.Name),
				zap.Error(err),
			)
		case empty:
			cr.FilesEmpty++
			p.logger.Warn("No extractable text, file flagged",
				zap.String("cohort", cohort),
				zap.String("file", file.Name),
			)
		case segments == 0:
			cr.FilesSkipped++
		default:
			cr.FilesIngested++
			cr.SegmentsUploaded += segments
		}
	}

	return cr, throttled
}

// ingestFile dispatches on mime type. Returns the number of segments
// uploaded, and empty=true when the file parsed cleanly but produced no text
// (an image-only scan).
func (p *Pipeline) ingestFile(ctx context.Context, cohort string, file drive.SourceFile) (int, bool, error) {
	switch file.MimeType {
	case drive.MimeTypePDF:
		return p.ingestPDF(ctx, cohort, file)
	case drive.MimeTypeGoogleDoc:
		return p.ingestGoogleDoc(ctx, cohort, file)
	default:
		p.logger.Debug("Skipping unsupported file",
			zap.String("file", file.Name),
			zap.String("mime_type", file.MimeType),
		)
		return 0, false, nil
	}
}

func (p *Pipeline) ingestPDF(ctx context.Context, cohort string, file drive.SourceFile) (int, bool, error) {
	p.logger.Info("Linking and parsing",
		zap.String("cohort", cohort),
		zap.String("file", file.Name),
	)

	dest := filepath.Join(p.scratchDir, file.ID+".pdf")
	defer func() {
		// The scratch copy goes away whether or not parsing worked.
		if err := os.Remove(dest); err != nil && !os.IsNotExist(err) {
			p.logger.Warn("Failed to remove scratch file", zap.Error(err))
		}
	}()

	if err := p.source.Download(ctx, file.ID, dest); err != nil {
		return 0, false, fmt.Errorf("download: %w", err)
	}

	pages, err := p.parser.ParsePDF(ctx, dest)
	if err != nil {
		return 0, false, fmt.Errorf("parse: %w", err)
	}

	return p.upsertSegments(ctx, cohort, file, pages)
}

func (p *Pipeline) ingestGoogleDoc(ctx context.Context, cohort string, file drive.SourceFile) (int, bool, error) {
	html, err := p.source.ExportHTML(ctx, file.ID)
	if err != nil {
		return 0, false, fmt.Errorf("export: %w", err)
	}

	text, err := parser.ExtractHTML(html)
	if err != nil {
		return 0, false, fmt.Errorf("extract: %w", err)
	}

	return p.upsertSegments(ctx, cohort, file, []string{text})
}

// upsertSegments chunks the page texts, embeds them and writes the records.
// Sequence numbers run across pages so a file's record ids are stable between
// runs.
func (p *Pipeline) upsertSegments(ctx context.Context, cohort string, file drive.SourceFile, pages []string) (int, bool, error) {
	var texts []string

	for _, page := range pages {
		if strings.TrimSpace(page) == "" {
			continue
		}
		chunks, err := p.chunker.Split(page)
		if err != nil {
			return 0, false, fmt.Errorf("chunk: %w", err)
		}
		for _, chunk := range chunks {
			texts = append(texts, chunk+"\n\n"+linkTrailer+file.WebLink)
		}
	}

	if len(texts) == 0 {
		return 0, true, nil
	}

	vectors, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, false, fmt.Errorf("embed: %w", err)
	}
	if len(vectors) != len(texts) {
		return 0, false, fmt.Errorf("embed: got %d vectors for %d segments", len(vectors), len(texts))
	}

	records := make([]milvus.Record, len(texts))
	for i, text := range texts {
		records[i] = milvus.Record{
			ID:        fmt.Sprintf("%s:%d", file.ID, i),
			Embedding: vectors[i],
			Text:      text,
			Cohort:    cohort,
			FileID:    file.ID,
			FileName:  file.Name,
			FileLink:  file.WebLink,
			Seq:       int64(i),
		}
	}

	if err := p.store.Upsert(ctx, records); err != nil {
		return 0, false, fmt.Errorf("upsert: %w", err)
	}

	metrics.SegmentsIngested.Add(float64(len(records)))

	return len(records), false, nil
}

func (p *Pipeline) persist(report *Report) {
	if p.recorder == nil {
		return
	}

	run := &models.IngestRun{
		ID:               report.RunID,
		StartedAt:        report.StartedAt,
		FinishedAt:       report.FinishedAt,
		Cohorts:          len(report.Cohorts),
		FilesSeen:        report.FilesSeen(),
		FilesIngested:    report.FilesIngested(),
		SegmentsUploaded: report.SegmentsUploaded(),
		ErrorCount:       report.ErrorCount(),
	}
	if err := p.recorder.InsertIngestRun(run); err != nil {
		p.logger.Warn("Failed to persist ingest run", zap.Error(err))
		return
	}

	for _, cr := range report.Cohorts {
		for _, fe := range cr.Errors {
			err := p.recorder.InsertIngestFileError(&models.IngestFileError{
				RunID:     report.RunID,
				Cohort:    cr.Cohort,
				FileID:    fe.FileID,
				FileName:  fe.FileName,
				Error:     fe.Err,
				CreatedAt: time.Now().UTC(),
			})
			if err != nil {
				p.logger.Warn("Failed to persist file error", zap.Error(err))
			}
		}
	}
}
