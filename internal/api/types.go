package api

import "encoding/json"

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// QueueItem describes a queue entry in a transport-friendly format.
type QueueItem struct {
	ID             int64             `json:"id"`
	Title          string            `json:"title"`
	CollectionPath string            `json:"collectionPath"`
	SourceKind     string            `json:"sourceKind"`
	Media          string            `json:"media"`
	Status         string            `json:"status"`
	Diarize        bool              `json:"diarize"`
	Progress       QueueProgress     `json:"progress"`
	ErrorMessage   string            `json:"errorMessage"`
	ErrorKind      string            `json:"errorKind,omitempty"`
	Summary        string            `json:"summary,omitempty"`
	SummaryTags    []string          `json:"summaryTags,omitempty"`
	MarkdownPath   string            `json:"markdownPath,omitempty"`
	JSONPath       string            `json:"jsonPath,omitempty"`
	TextPath       string            `json:"textPath,omitempty"`
	Exports        map[string]string `json:"exports,omitempty"`
	CreatedAt      string            `json:"createdAt,omitempty"`
	UpdatedAt      string            `json:"updatedAt,omitempty"`
	CompletedAt    string            `json:"completedAt,omitempty"`
	Source         json.RawMessage   `json:"source,omitempty"`
}

// QueueProgress captures stage progress information for a queue entry.
type QueueProgress struct {
	Stage   string  `json:"stage"`
	Percent float64 `json:"percent"`
	Message string  `json:"message"`
}

// WorkflowStatus summarizes workflow execution state.
type WorkflowStatus struct {
	Running     bool           `json:"running"`
	State       string         `json:"state"`
	QueueStats  map[string]int `json:"queueStats"`
	LastError   string         `json:"lastError,omitempty"`
	LastItem    *QueueItem     `json:"lastItem,omitempty"`
	StageHealth []StageHealth  `json:"stageHealth"`
	ScratchPath string         `json:"scratchPath,omitempty"`
}

// StageHealth mirrors readiness reporting for workflow stages.
type StageHealth struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool               `json:"running"`
	RunActive    bool               `json:"runActive"`
	PID          int                `json:"pid"`
	QueueDBPath  string             `json:"queueDbPath"`
	LockFilePath string             `json:"lockFilePath"`
	Workflow     WorkflowStatus     `json:"workflow"`
	Dependencies []DependencyStatus `json:"dependencies"`
}

// QueueListResponse wraps a collection of queue items for API responses.
type QueueListResponse struct {
	Items []QueueItem `json:"items"`
}

// QueueItemResponse wraps a single queue item.
type QueueItemResponse struct {
	Item QueueItem `json:"item"`
}

// SubmitRequest is the body of a submit or preprocess call. Dates use
// YYYY-MM-DD.
type SubmitRequest struct {
	Source            string   `json:"source"`
	CollectionPath    string   `json:"collectionPath"`
	Title             string   `json:"title,omitempty"`
	Date              string   `json:"date,omitempty"`
	Tags              []string `json:"tags,omitempty"`
	Categories        []string `json:"categories,omitempty"`
	Speakers          []string `json:"speakers,omitempty"`
	Summary           string   `json:"summary,omitempty"`
	Episode           *int     `json:"episode,omitempty"`
	ExternalMediaLink string   `json:"externalMediaLink,omitempty"`
	Exclude           []string `json:"exclude,omitempty"`
	Cutoff            string   `json:"cutoff,omitempty"`
	Preprocess        bool     `json:"preprocess,omitempty"`
	Diarize           bool     `json:"diarize,omitempty"`
}

// SkippedCandidate explains why a candidate was not queued.
type SkippedCandidate struct {
	Locator string `json:"locator"`
	Title   string `json:"title,omitempty"`
	Reason  string `json:"reason"`
}

// SubmitResponse summarizes what a submission queued, wrote or skipped.
type SubmitResponse struct {
	Added    []int64            `json:"added"`
	Metadata []string           `json:"metadata,omitempty"`
	Excluded int                `json:"excluded"`
	Skipped  []SkippedCandidate `json:"skipped,omitempty"`
}

// RunResponse acknowledges a run request.
type RunResponse struct {
	Started bool   `json:"started"`
	Message string `json:"message"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}
