package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// CorrectionPrompt instructs the model to fix transcription errors without
// rewriting content.
const CorrectionPrompt = `You correct automatic speech recognition output.
Fix misspellings, misheard words, punctuation, and capitalization.
Keep every markdown heading line (starting with "##") and every speaker label line (starting with "Speaker ") exactly as given.
Do not summarize, reorder, or add commentary. Return only the corrected transcript.`

// SummaryPrompt requests a structured summary of a transcript.
const SummaryPrompt = `You summarize transcripts of talks, lectures, and podcast episodes.
Respond with JSON only: {"summary": "<2-4 sentence summary>", "tags": ["<topic>", ...]}.
Use at most 8 short lowercase tags.`

// Summary captures the structured summary payload returned by the model.
type Summary struct {
	Summary string   `json:"summary"`
	Tags    []string `json:"tags"`
	Raw     string   `json:"-"`
}

// CorrectTranscript asks the model to clean up a transcript. The context
// string (title, speakers) is prepended to help with proper nouns.
func (c *Client) CorrectTranscript(ctx context.Context, context, transcript string) (string, error) {
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return "", errors.New("llm correct: transcript required")
	}
	user := transcript
	if context = strings.TrimSpace(context); context != "" {
		user = "Context: " + context + "\n\nTranscript:\n" + transcript
	}
	corrected, err := c.Complete(ctx, CorrectionPrompt, user)
	if err != nil {
		return "", err
	}
	return unfence(corrected), nil
}

// SummarizeTranscript requests a summary and topic tags for the transcript.
func (c *Client) SummarizeTranscript(ctx context.Context, title, transcript string) (Summary, error) {
	var empty Summary
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return empty, errors.New("llm summarize: transcript required")
	}
	user := transcript
	if title = strings.TrimSpace(title); title != "" {
		user = "Title: " + title + "\n\n" + transcript
	}
	content, err := c.CompleteJSON(ctx, SummaryPrompt, user)
	if err != nil {
		return empty, err
	}
	var parsed Summary
	if err := DecodeJSON(content, &parsed); err != nil {
		return empty, fmt.Errorf("llm summarize: parse payload: %w", err)
	}
	parsed.Raw = content
	parsed.Summary = strings.TrimSpace(parsed.Summary)
	tags := make([]string, 0, len(parsed.Tags))
	for _, tag := range parsed.Tags {
		if tag = strings.ToLower(strings.TrimSpace(tag)); tag != "" {
			tags = append(tags, tag)
		}
	}
	parsed.Tags = tags
	if parsed.Summary == "" {
		return empty, errors.New("llm summarize: empty summary")
	}
	return parsed, nil
}
