// Package answer drives answer synthesis: persona instruction plus a fixed
// response protocol, the retrieved context window, and the verbatim question
// go into one single-shot completion. The outer Service owns the friendly
// degradation contract of the chat endpoint.
package answer

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/campusbrain/backend/internal/cohort"
	"github.com/campusbrain/backend/internal/persona"
	"github.com/campusbrain/backend/internal/vector/milvus"
)

type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

type Synthesizer struct {
	llm      Completer
	personas *persona.Registry
	cohorts  *cohort.Registry
	logger   *zap.Logger
}

func NewSynthesizer(llm Completer, personas *persona.Registry, cohorts *cohort.Registry, logger *zap.Logger) *Synthesizer {
	return &Synthesizer{
		llm:      llm,
		personas: personas,
		cohorts:  cohorts,
		logger:   logger,
	}
}

// Synthesize produces the answer text for question given the retrieved
// window. personaKey may be anything; unknown keys resolve to the default
// persona. The model's output is returned untouched.
func (s *Synthesizer) Synthesize(ctx context.Context, question string, window []milvus.Passage, personaKey, cohortKey string) (string, error) {
	systemPrompt := s.buildSystemPrompt(personaKey, cohortKey)
	userPrompt := buildUserPrompt(question, window)

	text, err := s.llm.Complete(ctx, systemPrompt, userPrompt)
	if err != nil {
		return "", err
	}

	s.logger.Debug("Answer synthesized",
		zap.String("persona", personaKey),
		zap.String("cohort", cohortKey),
		zap.Int("context_passages", len(window)),
		zap.Int("answer_length", len(text)),
	)

	return text, nil
}

// buildSystemPrompt combines the persona voice with the fixed response
// protocol. The protocol decides when to hand out the cohort resource link
// versus answering from retrieved notes.
func (s *Synthesizer) buildSystemPrompt(personaKey, cohortKey string) string {
	instruction := s.personas.Instruction(personaKey)
	resourceLink := s.cohorts.ResourceLink(cohortKey)

	var b strings.Builder
	b.WriteString(instruction)
	b.WriteString("\n\nRESPONSE PROTOCOL:\n")
	b.WriteString("1. FILES & TIMETABLES: if the user asks for a document, the full timetable or \"where are the notes\", ")
	b.WriteString("reply with the resource link below. If a passage carries an [OFFICIAL DOCUMENT LINK], prefer that direct link.\n")
	b.WriteString("2. KNOWLEDGE QUESTIONS: answer strictly from the provided context passages. ")
	b.WriteString("Do not invent facts that are not in the context.\n")
	b.WriteString("3. NO TABLES: never draw Markdown or ASCII tables; they render broken. Use a simple list instead.\n")
	b.WriteString("4. NO MATCHES: if the context section is empty, say you could not find anything relevant ")
	b.WriteString("in this year's materials and offer the resource link.\n")
	b.WriteString("\nRESOURCE LINK: ")
	b.WriteString(resourceLink)

	return b.String()
}

func buildUserPrompt(question string, window []milvus.Passage) string {
	var b strings.Builder

	b.WriteString("Context from course notes:\n")
	b.WriteString("---------------------\n")
	if len(window) == 0 {
		b.WriteString("(no relevant passages found)\n")
	}
	for i, passage := range window {
		b.WriteString(fmt.Sprintf("[%d] %s\n", i+1, passage.Text))
	}
	b.WriteString("---------------------\n")
	b.WriteString("Query: ")
	b.WriteString(question)
	b.WriteString("\nAnswer: ")

	return b.String()
}
