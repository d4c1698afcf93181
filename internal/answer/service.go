package answer

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campusbrain/backend/internal/cohort"
	"github.com/campusbrain/backend/internal/metrics"
	"github.com/campusbrain/backend/internal/storage/models"
	"github.com/campusbrain/backend/internal/vector/milvus"
	"github.com/campusbrain/backend/pkg/apperr"
)

// The chat contract promises renderable text no matter what breaks. These are
// the only two failure strings a user ever sees; internal stages keep their
// typed errors for logging.
const (
	MsgRateLimited = "I'm thinking too fast! Please wait 30 seconds and ask me again. (Speed limit reached)"
	MsgUnavailable = "I'm having trouble reaching my brain right now. Please try again in a moment. 🤖"
	MsgAskAnything = "Ask me something about your course and I'll dig through the notes!"
)

// Outcome labels for metrics and the chat log.
const (
	OutcomeOK           = "ok"
	OutcomeThrottled    = "throttled"
	OutcomeFailed       = "failed"
	OutcomeInvalidInput = "invalid_input"
)

type Retriever interface {
	Retrieve(ctx context.Context, question, cohort string, k int) ([]milvus.Passage, error)
}

// ChatLogger persists answered requests for later inspection. Optional.
type ChatLogger interface {
	InsertChatRecord(rec *models.ChatRecord) error
}

type Request struct {
	Question string
	Cohort   string
	Persona  string
}

type Response struct {
	Answer    string
	Outcome   string
	LatencyMS int
}

type Service struct {
	retriever Retriever
	synth     *Synthesizer
	cohorts   *cohort.Registry
	topK      int
	timeout   time.Duration
	chatLog   ChatLogger
	logger    *zap.Logger
}

func NewService(retriever Retriever, synth *Synthesizer, cohorts *cohort.Registry,
	topK int, timeout time.Duration, chatLog ChatLogger, logger *zap.Logger) *Service {
	if topK <= 0 {
		topK = 5
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Service{
		retriever: retriever,
		synth:     synth,
		cohorts:   cohorts,
		topK:      topK,
		timeout:   timeout,
		chatLog:   chatLog,
		logger:    logger,
	}
}

// Answer runs the full pipeline for one request. It always returns renderable
// text: pipeline failures collapse into the canned rate-limit or unavailable
// message here, at the outermost boundary, and nowhere else. One deadline
// covers embedding, search and synthesis together, so a hung upstream turns
// into the unavailable message instead of a stuck request.
func (s *Service) Answer(ctx context.Context, req Request) Response {
	started := time.Now()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp := s.answer(ctx, req)
	resp.LatencyMS = int(time.Since(started).Milliseconds())

	metrics.ChatTotal.WithLabelValues(resp.Outcome).Inc()
	metrics.ChatDuration.Observe(time.Since(started).Seconds())

	s.record(req, resp)

	return resp
}

func (s *Service) answer(ctx context.Context, req Request) Response {
	if req.Question == "" {
		return Response{Answer: MsgAskAnything, Outcome: OutcomeInvalidInput}
	}

	// Unknown cohorts deterministically fall back to the default rather than
	// producing an empty (or worse, unfiltered) search.
	cohortKey := s.cohorts.Normalize(req.Cohort)

	window, err := s.retriever.Retrieve(ctx, req.Question, cohortKey, s.topK)
	if err != nil {
		return s.degrade("retrieve", req, err)
	}

	metrics.RetrievalResults.Observe(float64(len(window)))

	text, err := s.synth.Synthesize(ctx, req.Question, window, req.Persona, cohortKey)
	if err != nil {
		return s.degrade("synthesize", req, err)
	}

	return Response{Answer: text, Outcome: OutcomeOK}
}

func (s *Service) degrade(stage string, req Request, err error) Response {
	s.logger.Error("Chat pipeline failed",
		zap.String("stage", stage),
		zap.String("cohort", req.Cohort),
		zap.Error(err),
	)

	if apperr.IsThrottled(err) {
		return Response{Answer: MsgRateLimited, Outcome: OutcomeThrottled}
	}
	return Response{Answer: MsgUnavailable, Outcome: OutcomeFailed}
}

func (s *Service) record(req Request, resp Response) {
	if s.chatLog == nil {
		return
	}

	err := s.chatLog.InsertChatRecord(&models.ChatRecord{
		ID:        uuid.New().String(),
		Cohort:    s.cohorts.Normalize(req.Cohort),
		Persona:   req.Persona,
		Question:  req.Question,
		Answer:    resp.Answer,
		Outcome:   resp.Outcome,
		LatencyMS: resp.LatencyMS,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		s.logger.Warn("Failed to record chat", zap.Error(err))
	}
}
