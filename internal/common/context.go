package common

import (
	"context"
)

// Context keys for storing values in context
type contextKey string

const (
	ContextKeyRunID        contextKey = "run_id"
	ContextKeyDocumentPath contextKey = "document_path"
)

// WithRunID adds a batch run ID to the context
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, ContextKeyRunID, runID)
}

// RunIDFromContext extracts the batch run ID from context
func RunIDFromContext(ctx context.Context) string {
	if runID, ok := ctx.Value(ContextKeyRunID).(string); ok {
		return runID
	}
	return ""
}

// WithDocumentPath adds the document being processed to the context
func WithDocumentPath(ctx context.Context, path string) context.Context {
	return context.WithValue(ctx, ContextKeyDocumentPath, path)
}

// DocumentPathFromContext extracts the document path from context
func DocumentPathFromContext(ctx context.Context) string {
	if path, ok := ctx.Value(ContextKeyDocumentPath).(string); ok {
		return path
	}
	return ""
}
