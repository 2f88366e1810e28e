package models

import (
	"time"
)

// Phase tracks where an analysis invocation is in its lifecycle.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseUploading Phase = "uploading"
	PhaseAnalyzing Phase = "analyzing"
	PhaseComplete  Phase = "complete"
	PhaseError     Phase = "error"
)

// Terminal reports whether no further transitions can occur.
func (p Phase) Terminal() bool {
	return p == PhaseComplete || p == PhaseError
}

// SourceVideo is the footage handed to the pipeline. It is immutable once
// selected and owned by the invocation that received it.
type SourceVideo struct {
	Filename string
	MimeType string
	Size     int64
	Data     []byte
}

// SecurityEvent is a single model-reported incident on the timeline. The
// pipeline never synthesizes or mutates events, only validates their shape.
type SecurityEvent struct {
	Timestamp      string  `json:"timestamp"`
	Severity       int     `json:"severity"`
	Classification string  `json:"classification"`
	Description    string  `json:"description"`
	Confidence     float64 `json:"confidence"`
}

type VideoMeta struct {
	Duration string `json:"duration"`
	Lighting string `json:"lighting"`
}

// AnalysisResult is built atomically from one successful parse of the model
// response. Event order is the model's output order and is meaningful for
// timeline display.
type AnalysisResult struct {
	VideoMeta VideoMeta       `json:"video_meta"`
	Events    []SecurityEvent `json:"events"`
	Summary   string          `json:"summary"`
}

// Job is the in-memory record of one analysis invocation.
type Job struct {
	ID        string    `json:"id"`
	Filename  string    `json:"filename"`
	Phase     Phase     `json:"phase"`
	Result    *AnalysisResult `json:"result,omitempty"`
	Error     string    `json:"error,omitempty"`
	ErrorKind string    `json:"error_kind,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (j *Job) IsComplete() bool { return j.Phase == PhaseComplete }
func (j *Job) IsFailed() bool   { return j.Phase == PhaseError }

// IsStale checks if the job has been sitting in a terminal phase long
// enough to be swept from the registry.
func (j *Job) IsStale(ttl time.Duration) bool {
	if !j.Phase.Terminal() {
		return false
	}
	return time.Since(j.UpdatedAt) > ttl
}

// JobResponse represents the API response for a job.
type JobResponse struct {
	ID             string          `json:"id"`
	Filename       string          `json:"filename"`
	Phase          Phase           `json:"phase"`
	Result         *AnalysisResult `json:"result,omitempty"`
	Error          string          `json:"error,omitempty"`
	Reauthenticate bool            `json:"reauthenticate,omitempty"`
}

// NewJobResponse creates a response from a job record. A credential
// rejection is surfaced as a reauthenticate hint so the client prompts for
// a new key instead of retrying the upload.
func NewJobResponse(j *Job) *JobResponse {
	return &JobResponse{
		ID:             j.ID,
		Filename:       j.Filename,
		Phase:          j.Phase,
		Result:         j.Result,
		Error:          j.Error,
		Reauthenticate: j.ErrorKind == "auth",
	}
}
