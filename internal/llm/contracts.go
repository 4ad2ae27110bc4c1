package llm

import "context"

// CompletionRequest is one prompt sent to a model backend.
type CompletionRequest struct {
	ReqID  string
	Prompt string
}

// Completer is the boundary to a model backend. It returns the model's text
// untouched; nothing it returns is trusted until Parser has validated it.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// Attempt describes which try of a document this is.
type Attempt struct {
	Number      int  // 1-based
	Reformulate bool // append the strict output contract to the prompt
}
