// Package retrieval turns a question into an ordered context window: embed
// the question with the process-wide embedding model, run a cohort-filtered
// similarity search, and return the top passages best first.
//
// The engine is deliberately filter-policy-agnostic: it issues whatever
// cohort it is given, and an unknown cohort simply yields an empty window.
// Fallback to a default cohort is the caller's decision.
package retrieval

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/campusbrain/backend/internal/vector/milvus"
	"github.com/campusbrain/backend/pkg/apperr"
)

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type Searcher interface {
	Search(ctx context.Context, vector []float32, cohort string, topK int) ([]milvus.Passage, error)
}

type Engine struct {
	embedder    Embedder
	store       Searcher
	defaultTopK int
	logger      *zap.Logger
}

func NewEngine(embedder Embedder, store Searcher, defaultTopK int, logger *zap.Logger) *Engine {
	if defaultTopK <= 0 {
		defaultTopK = 5
	}
	return &Engine{
		embedder:    embedder,
		store:       store,
		defaultTopK: defaultTopK,
		logger:      logger,
	}
}

// Retrieve embeds question and returns up to k passages from the cohort,
// ordered by descending similarity, ties broken by insertion order. Results
// are never cached; every call re-embeds and re-queries so answers always
// reflect the current index.
func (e *Engine) Retrieve(ctx context.Context, question, cohort string, k int) ([]milvus.Passage, error) {
	if question == "" {
		return nil, apperr.InvalidInput("retrieve: empty question")
	}
	if cohort == "" {
		return nil, apperr.InvalidInput("retrieve: empty cohort")
	}
	if k <= 0 {
		k = e.defaultTopK
	}

	vector, err := e.embedder.Embed(ctx, question)
	if err != nil {
		return nil, err
	}

	passages, err := e.store.Search(ctx, vector, cohort, k)
	if err != nil {
		return nil, err
	}

	// The index already returns ranked results, but the ordering contract is
	// ours: descending score, then ascending seq for deterministic ties.
	sort.SliceStable(passages, func(i, j int) bool {
		if passages[i].Score != passages[j].Score {
			return passages[i].Score > passages[j].Score
		}
		return passages[i].Seq < passages[j].Seq
	})

	e.logger.Debug("Context retrieved",
		zap.String("cohort", cohort),
		zap.Int("k", k),
		zap.Int("results", len(passages)),
	)

	return passages, nil
}
