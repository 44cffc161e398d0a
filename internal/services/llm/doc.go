// Package llm is the OpenRouter chat client behind transcript correction and
// summarization.
//
// Complete sends a plain-text request, CompleteJSON asks for a JSON object and
// DecodeJSON reads one back even when the model wraps it in a code fence.
// CorrectTranscript and SummarizeTranscript build the prompts the
// post-processing stage uses.
//
// Requests that hit a rate limit, a 5xx, a timeout or an empty reply are
// retried with doubling backoff (1s up to 10s, five attempts by default) and
// a Retry-After header takes precedence. Errors carry the services markers,
// so a 401 classifies as a configuration failure and a 503 as transient.
package llm
