// Package web provides HTTP request and response types for the run API.
package web

// SubmitRunRequest represents the request body for submitting a form and
// instantiating a run.
type SubmitRunRequest struct {
	FormID   string         `json:"form_id"   validate:"required"`
	Title    string         `json:"title"`
	FormData map[string]any `json:"form_data"`
}

// SubmitRunResponse carries the identifier of the newly instantiated run.
type SubmitRunResponse struct {
	RunID string `json:"run_id"`
}

// CompleteStepRequest represents the request body for completing a run step.
// The attachment, when present, is base64-encoded file content that is stored
// before the completion is applied.
type CompleteStepRequest struct {
	Comment        string `json:"comment,omitempty"`
	Decision       string `json:"decision,omitempty"`
	Attachment     []byte `json:"attachment,omitempty"`
	AttachmentName string `json:"attachment_name,omitempty" validate:"required_with=Attachment"`
}
