package model

// ScriptRequest is the logical submission: who asked, which reel, what idea.
type ScriptRequest struct {
	Identity  string `json:"subscriberId" validate:"required,max=64"`
	SourceURL string `json:"sourceUrl" validate:"required,url,max=2048"`
	Idea      string `json:"idea" validate:"required,max=500"`
	Hints     string `json:"hints,omitempty" validate:"omitempty,max=500"`
}

// Submission outcome statuses returned by the intake gateway.
const (
	SubmitStatusQueued     = "queued"
	SubmitStatusProcessing = "processing"
	SubmitStatusCompleted  = "completed"
)

// SubmitResponse is the synchronous acknowledgment. The finished artifact is
// only included when the gate hit an already-stored result.
type SubmitResponse struct {
	Status     string `json:"status"`
	JobID      string `json:"jobId,omitempty"`
	ResultText string `json:"resultText,omitempty"`
	ImageURL   string `json:"imageUrl,omitempty"`
	ShareURL   string `json:"shareUrl,omitempty"`
}
