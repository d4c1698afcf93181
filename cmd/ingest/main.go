// Command ingest runs one full ingestion pass: every configured cohort
// folder is listed, parsed, chunked, embedded and upserted into the vector
// index. Intended to run from cron or by hand after uploading new notes.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/campusbrain/backend/internal/chunker"
	"github.com/campusbrain/backend/internal/cohort"
	"github.com/campusbrain/backend/internal/drive"
	"github.com/campusbrain/backend/internal/ingestion"
	"github.com/campusbrain/backend/internal/llm"
	"github.com/campusbrain/backend/internal/metrics"
	"github.com/campusbrain/backend/internal/parser"
	"github.com/campusbrain/backend/internal/storage/sqlite"
	"github.com/campusbrain/backend/internal/vector/milvus"
	"github.com/campusbrain/backend/pkg/apperr"
	"github.com/campusbrain/backend/pkg/config"
	appLogger "github.com/campusbrain/backend/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting ingestion run")

	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path, appLogger.L())
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	err = sqliteClient.InitSchema()
	if err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	milvusClient, err := milvus.NewClient(ctx,
		cfg.Milvus.Endpoint,
		cfg.Milvus.CollectionName,
		cfg.LLM.EmbeddingDim,
		appLogger.L(),
	)
	if err != nil {
		appLogger.Fatal("Failed to create Milvus client", zap.Error(err))
	}
	defer milvusClient.Close()

	err = milvusClient.EnsureCollection(ctx)
	if err != nil {
		if apperr.IsDimensionMismatch(err) {
			appLogger.Fatal("Collection dimension does not match embedding model; drop the collection and re-run", zap.Error(err))
		}
		appLogger.Fatal("Failed to ensure collection", zap.Error(err))
	}

	llmClient := llm.NewClient(cfg.LLM, appLogger.L())

	driveClient, err := drive.NewClient(ctx, cfg.Drive.CredentialsPath, appLogger.L())
	if err != nil {
		appLogger.Fatal("Failed to create Drive client", zap.Error(err))
	}

	parserClient := parser.NewClient(cfg.Parser, appLogger.L())
	textChunker := chunker.New(cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap)
	cohorts := cohort.NewRegistry(cfg.Cohorts, cfg.Retrieval.DefaultCohort)

	pipeline := ingestion.NewPipeline(
		driveClient,
		parserClient,
		llmClient,
		milvusClient,
		textChunker,
		ingestion.Options{
			ScratchDir:      cfg.Drive.ScratchDir,
			ThrottleBackoff: time.Duration(cfg.Ingest.ThrottleBackoffSec) * time.Second,
			Recorder:        sqliteClient,
		},
		appLogger.L(),
	)

	report, err := pipeline.Ingest(ctx, cohorts.FolderMap())
	if err != nil {
		appLogger.Fatal("Ingestion run aborted", zap.Error(err))
	}

	for _, cr := range report.Cohorts {
		appLogger.Info("Cohort summary",
			zap.String("cohort", cr.Cohort),
			zap.Int("files_seen", cr.FilesSeen),
			zap.Int("files_ingested", cr.FilesIngested),
			zap.Int("files_empty", cr.FilesEmpty),
			zap.Int("segments", cr.SegmentsUploaded),
			zap.Int("errors", len(cr.Errors)),
			zap.Bool("retried", cr.Retried),
		)
		for _, fe := range cr.Errors {
			appLogger.Warn("File failed",
				zap.String("cohort", cr.Cohort),
				zap.String("file", fe.FileName),
				zap.String("error", fe.Err),
			)
		}
	}

	// Partial failures are already isolated in the report; only config and
	// connect errors above exit non-zero.
	appLogger.Info("Ingestion run complete",
		zap.String("run_id", report.RunID),
		zap.Int("files_seen", report.FilesSeen()),
		zap.Int("files_ingested", report.FilesIngested()),
		zap.Int("segments", report.SegmentsUploaded()),
		zap.Int("errors", report.ErrorCount()),
		zap.Duration("elapsed", report.FinishedAt.Sub(report.StartedAt)),
	)
}
