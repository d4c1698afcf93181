package answer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campusbrain/backend/internal/persona"
	"github.com/campusbrain/backend/internal/storage/models"
	"github.com/campusbrain/backend/internal/vector/milvus"
	"github.com/campusbrain/backend/pkg/apperr"
)

type fakeRetriever struct {
	passages []milvus.Passage
	err      error

	gotCohort string
	gotK      int
	calls     int
}

func (f *fakeRetriever) Retrieve(ctx context.Context, question, cohort string, k int) ([]milvus.Passage, error) {
	f.calls++
	f.gotCohort = cohort
	f.gotK = k
	return f.passages, f.err
}

type fakeChatLog struct {
	records []*models.ChatRecord
	err     error
}

func (f *fakeChatLog) InsertChatRecord(rec *models.ChatRecord) error {
	f.records = append(f.records, rec)
	return f.err
}

func newTestService(retriever Retriever, llm Completer, chatLog ChatLogger) *Service {
	cohorts := testCohorts()
	synth := NewSynthesizer(llm, persona.NewRegistry(nil), cohorts, zap.NewNop())
	return NewService(retriever, synth, cohorts, 5, time.Second, chatLog, zap.NewNop())
}

func TestAnswerHappyPath(t *testing.T) {
	retriever := &fakeRetriever{passages: []milvus.Passage{{Text: "Exams start March 10.", Score: 0.9}}}
	llm := &fakeCompleter{response: "Exams kick off on March 10! 🚀"}
	chatLog := &fakeChatLog{}

	svc := newTestService(retriever, llm, chatLog)

	resp := svc.Answer(context.Background(), Request{
		Question: "When do exams start?",
		Cohort:   "3",
		Persona:  "Study Buddy",
	})

	assert.Equal(t, "Exams kick off on March 10! 🚀", resp.Answer)
	assert.Equal(t, OutcomeOK, resp.Outcome)
	assert.Equal(t, "3", retriever.gotCohort)

	require.Len(t, chatLog.records, 1)
	assert.Equal(t, "3", chatLog.records[0].Cohort)
	assert.Equal(t, OutcomeOK, chatLog.records[0].Outcome)
}

func TestAnswerUnknownCohortFallsBackToDefault(t *testing.T) {
	retriever := &fakeRetriever{}
	llm := &fakeCompleter{response: "ok"}

	svc := newTestService(retriever, llm, nil)

	resp := svc.Answer(context.Background(), Request{Question: "q", Cohort: "9"})

	assert.Equal(t, OutcomeOK, resp.Outcome)
	assert.Equal(t, "1", retriever.gotCohort)
}

func TestAnswerEmptyQuestion(t *testing.T) {
	retriever := &fakeRetriever{}
	svc := newTestService(retriever, &fakeCompleter{}, nil)

	resp := svc.Answer(context.Background(), Request{Question: ""})

	assert.Equal(t, MsgAskAnything, resp.Answer)
	assert.Equal(t, OutcomeInvalidInput, resp.Outcome)
	assert.Zero(t, retriever.calls)
}

func TestAnswerCollapsesThrottleIntoRateLimitMessage(t *testing.T) {
	retriever := &fakeRetriever{err: apperr.Throttled("embed", errors.New("429"))}
	svc := newTestService(retriever, &fakeCompleter{}, nil)

	resp := svc.Answer(context.Background(), Request{Question: "q", Cohort: "1"})

	assert.Equal(t, MsgRateLimited, resp.Answer)
	assert.Equal(t, OutcomeThrottled, resp.Outcome)
}

func TestAnswerCollapsesOtherErrorsIntoUnavailable(t *testing.T) {
	retriever := &fakeRetriever{err: apperr.Unavailable("search", errors.New("connection refused"))}
	svc := newTestService(retriever, &fakeCompleter{}, nil)

	resp := svc.Answer(context.Background(), Request{Question: "q", Cohort: "1"})

	assert.Equal(t, MsgUnavailable, resp.Answer)
	assert.Equal(t, OutcomeFailed, resp.Outcome)
}

func TestAnswerCompletionThrottleAlsoRateLimits(t *testing.T) {
	retriever := &fakeRetriever{}
	llm := &fakeCompleter{err: apperr.Throttled("complete", errors.New("429"))}
	svc := newTestService(retriever, llm, nil)

	resp := svc.Answer(context.Background(), Request{Question: "q", Cohort: "1"})

	assert.Equal(t, MsgRateLimited, resp.Answer)
	assert.Equal(t, OutcomeThrottled, resp.Outcome)
}

func TestAnswerChatLogFailureDoesNotBreakResponse(t *testing.T) {
	retriever := &fakeRetriever{}
	llm := &fakeCompleter{response: "fine"}
	chatLog := &fakeChatLog{err: errors.New("disk full")}

	svc := newTestService(retriever, llm, chatLog)

	resp := svc.Answer(context.Background(), Request{Question: "q", Cohort: "1"})
	assert.Equal(t, "fine", resp.Answer)
	assert.Equal(t, OutcomeOK, resp.Outcome)
}

// blockingRetriever simulates a hung vector store: it only returns once the
// request context is cancelled.
type blockingRetriever struct{}

func (b *blockingRetriever) Retrieve(ctx context.Context, question, cohort string, k int) ([]milvus.Passage, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestAnswerTimesOutHungPipeline(t *testing.T) {
	cohorts := testCohorts()
	synth := NewSynthesizer(&fakeCompleter{}, persona.NewRegistry(nil), cohorts, zap.NewNop())
	svc := NewService(&blockingRetriever{}, synth, cohorts, 5, 20*time.Millisecond, nil, zap.NewNop())

	started := time.Now()
	resp := svc.Answer(context.Background(), Request{Question: "q", Cohort: "1"})

	assert.Equal(t, MsgUnavailable, resp.Answer)
	assert.Equal(t, OutcomeFailed, resp.Outcome)
	assert.Less(t, time.Since(started), time.Second)
}

func TestAnswerRecordsFailuresInChatLog(t *testing.T) {
	retriever := &fakeRetriever{err: apperr.Unavailable("search", errors.New("down"))}
	chatLog := &fakeChatLog{}
	svc := newTestService(retriever, &fakeCompleter{}, chatLog)

	svc.Answer(context.Background(), Request{Question: "q", Cohort: "2"})

	require.Len(t, chatLog.records, 1)
	assert.Equal(t, OutcomeFailed, chatLog.records[0].Outcome)
	assert.Equal(t, MsgUnavailable, chatLog.records[0].Answer)
}
