package answer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campusbrain/backend/internal/cohort"
	"github.com/campusbrain/backend/internal/persona"
	"github.com/campusbrain/backend/internal/vector/milvus"
	"github.com/campusbrain/backend/pkg/config"
)

type fakeCompleter struct {
	response string
	err      error

	gotSystem string
	gotUser   string
}

func (f *fakeCompleter) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	f.gotSystem = systemPrompt
	f.gotUser = userPrompt
	return f.response, f.err
}

func testCohorts() *cohort.Registry {
	return cohort.NewRegistry(map[string]config.CohortConfig{
		"1": {FolderID: "f1", ResourceLink: "https://example.com/year1"},
		"3": {FolderID: "f3", ResourceLink: "https://example.com/year3"},
	}, "1")
}

func newTestSynthesizer(llm Completer) *Synthesizer {
	return NewSynthesizer(llm, persona.NewRegistry(nil), testCohorts(), zap.NewNop())
}

func TestSynthesizePromptCarriesContextAndQuestion(t *testing.T) {
	llm := &fakeCompleter{response: "Internal exams start on March 10."}
	s := newTestSynthesizer(llm)

	window := []milvus.Passage{
		{Text: "Internal exams for third years start March 10.", Score: 0.9},
		{Text: "Lab submissions are due March 5.", Score: 0.7},
	}

	got, err := s.Synthesize(context.Background(), "When do internal exams start?", window, "Study Buddy", "3")
	require.NoError(t, err)
	assert.Equal(t, "Internal exams start on March 10.", got)

	assert.Contains(t, llm.gotUser, "[1] Internal exams for third years start March 10.")
	assert.Contains(t, llm.gotUser, "[2] Lab submissions are due March 5.")
	assert.Contains(t, llm.gotUser, "Query: When do internal exams start?")
	assert.NotContains(t, llm.gotUser, "(no relevant passages found)")
}

func TestSynthesizeSystemPromptCombinesPersonaAndProtocol(t *testing.T) {
	llm := &fakeCompleter{response: "ok"}
	s := newTestSynthesizer(llm)

	_, err := s.Synthesize(context.Background(), "q", nil, "The Professor", "3")
	require.NoError(t, err)

	assert.Contains(t, llm.gotSystem, "Professor Sharma")
	assert.Contains(t, llm.gotSystem, "RESPONSE PROTOCOL")
	assert.Contains(t, llm.gotSystem, "https://example.com/year3")
}

func TestSynthesizeUnknownPersonaUsesDefault(t *testing.T) {
	llm := &fakeCompleter{response: "ok"}
	s := newTestSynthesizer(llm)

	_, err := s.Synthesize(context.Background(), "q", nil, "Pirate", "1")
	require.NoError(t, err)

	reg := persona.NewRegistry(nil)
	assert.Contains(t, llm.gotSystem, reg.Instruction(persona.DefaultKey))
}

func TestSynthesizeEmptyWindowMarkedInPrompt(t *testing.T) {
	llm := &fakeCompleter{response: "Sorry, nothing found."}
	s := newTestSynthesizer(llm)

	got, err := s.Synthesize(context.Background(), "What is the syllabus for quantum basket weaving?", nil, "Study Buddy", "1")
	require.NoError(t, err)
	assert.Equal(t, "Sorry, nothing found.", got)
	assert.Contains(t, llm.gotUser, "(no relevant passages found)")
}

func TestSynthesizePropagatesCompletionError(t *testing.T) {
	llm := &fakeCompleter{err: context.DeadlineExceeded}
	s := newTestSynthesizer(llm)

	_, err := s.Synthesize(context.Background(), "q", nil, "Study Buddy", "1")
	assert.Error(t, err)
}
