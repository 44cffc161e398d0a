// Package postprocess refines a finished transcript with an LLM: spelling and
// punctuation correction, then a short summary with topic tags.
package postprocess

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"bobbin/internal/config"
	"bobbin/internal/logging"
	"bobbin/internal/queue"
	"bobbin/internal/services"
	"bobbin/internal/services/llm"
	"bobbin/internal/source"
)

// Processor mutates a job's outputs.
type Processor interface {
	Name() string
	Process(ctx context.Context, item *queue.Item, src source.Source) error
}

// Corrector fixes transcription errors.
type Corrector interface {
	CorrectTranscript(ctx context.Context, context, transcript string) (string, error)
}

// Summarizer produces a summary and tags.
type Summarizer interface {
	SummarizeTranscript(ctx context.Context, title, transcript string) (llm.Summary, error)
}

// NewProcessors returns the processors enabled in cfg, in execution order.
func NewProcessors(cfg *config.Config, client *llm.Client, logger *slog.Logger) []Processor {
	var processors []Processor
	if client == nil {
		return processors
	}
	if cfg.Postprocess.Correct {
		processors = append(processors, NewCorrection(client, logger))
	}
	if cfg.Postprocess.Summarize {
		processors = append(processors, NewSummary(client))
	}
	return processors
}

// NewLLMClient builds the OpenRouter client, or nil when no API key is set.
func NewLLMClient(cfg *config.Config) *llm.Client {
	if strings.TrimSpace(cfg.LLM.APIKey) == "" {
		return nil
	}
	return llm.NewClient(llm.Config{
		APIKey:         cfg.LLM.APIKey,
		BaseURL:        cfg.LLM.BaseURL,
		Model:          cfg.LLM.Model,
		Referer:        cfg.LLM.Referer,
		Title:          cfg.LLM.Title,
		Temperature:    cfg.LLM.Temperature,
		TimeoutSeconds: cfg.LLM.TimeoutSeconds,
	})
}

// Correction stores a corrected copy of the raw transcript.
type Correction struct {
	client Corrector
	logger *slog.Logger
}

// NewCorrection builds the correction processor.
func NewCorrection(client Corrector, logger *slog.Logger) *Correction {
	return &Correction{client: client, logger: logging.NewComponentLogger(logger, "postprocess")}
}

// Name identifies the processor.
func (c *Correction) Name() string { return "correction" }

// Process corrects item.RawText into item.CorrectedText. A correction that
// drops structural lines (headings or speaker labels) is discarded.
func (c *Correction) Process(ctx context.Context, item *queue.Item, src source.Source) error {
	corrected, err := c.client.CorrectTranscript(ctx, correctionContext(src), item.RawText)
	if err != nil {
		return services.Wrap(services.ErrPostprocess, "postprocess", "correct",
			fmt.Sprintf("correction failed for %s", item.Label()), err)
	}
	if !sameStructure(item.RawText, corrected) {
		logging.WarnWithContext(logging.WithContext(ctx, c.logger), "correction altered transcript structure", "correction_discarded",
			logging.String("title", item.Label()),
			logging.String(logging.FieldImpact, "raw transcript is exported without correction"),
			logging.String(logging.FieldErrorHint, "try a different llm.model"),
		)
		item.CorrectedText = ""
		return nil
	}
	item.CorrectedText = corrected
	return nil
}

func correctionContext(src source.Source) string {
	var parts []string
	if src.Title != "" {
		parts = append(parts, "title: "+src.Title)
	}
	if len(src.Speakers) > 0 {
		parts = append(parts, "speakers: "+strings.Join(src.Speakers, ", "))
	}
	if len(src.Tags) > 0 {
		parts = append(parts, "topics: "+strings.Join(src.Tags, ", "))
	}
	return strings.Join(parts, "; ")
}

// sameStructure compares heading and speaker label lines in order.
func sameStructure(before, after string) bool {
	a, b := structuralLines(before), structuralLines(after)
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func structuralLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "## ") || strings.HasPrefix(line, "Speaker ") {
			lines = append(lines, line)
		}
	}
	return lines
}

// Summary writes a short summary and tags.
type Summary struct {
	client Summarizer
}

// NewSummary builds the summary processor.
func NewSummary(client Summarizer) *Summary {
	return &Summary{client: client}
}

// Name identifies the processor.
func (s *Summary) Name() string { return "summary" }

// Process keeps a caller-supplied summary and otherwise asks the model.
func (s *Summary) Process(ctx context.Context, item *queue.Item, src source.Source) error {
	if summary := strings.TrimSpace(src.Summary); summary != "" {
		item.Summary = summary
		return nil
	}
	result, err := s.client.SummarizeTranscript(ctx, item.Title, item.Text())
	if err != nil {
		return services.Wrap(services.ErrPostprocess, "postprocess", "summarize",
			fmt.Sprintf("summary failed for %s", item.Label()), err)
	}
	item.Summary = result.Summary
	item.SummaryTags = result.Tags
	return nil
}
