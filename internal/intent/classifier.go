package intent

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const classificationTimeout = 3 * time.Second

const promptTemplate = "Classify the intent of the following customer message " +
	"for a clinic. Answer with exactly one word from {scheduling, pricing, faq}. " +
	"Message: ```%s```"

// Completer is the slice of the LLM gateway the classifier needs.
type Completer interface {
	Complete(ctx context.Context, model, prompt string) (string, error)
}

// Classifier labels conversation turns using an LLM.
type Classifier struct {
	llm    Completer
	model  string
	logger *slog.Logger
}

// NewClassifier creates a Classifier using the given gateway and model name.
func NewClassifier(llm Completer, model string) *Classifier {
	return &Classifier{llm: llm, model: model, logger: slog.Default()}
}

// Classify labels the text. It never fails: on gateway error or timeout it
// logs a warning and returns GeneralFAQ, because a wrong-but-safe label is
// preferable to a broken conversation turn.
func (c *Classifier) Classify(ctx context.Context, text string) Label {
	ctx, cancel := context.WithTimeout(ctx, classificationTimeout)
	defer cancel()

	raw, err := c.llm.Complete(ctx, c.model, fmt.Sprintf(promptTemplate, text))
	if err != nil {
		c.logger.Warn("intent classification degraded, falling back to FAQ", "error", err)
		return GeneralFAQ
	}
	return Parse(raw)
}
