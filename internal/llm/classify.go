package llm

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/joseph-ayodele/caba/internal/common"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// account-level exhaustion, as opposed to a per-minute rate limit
var quotaMarkers = []string{
	"insufficient_quota",
	"exceeded your current quota",
	"billing",
	"per day",
	"perday",
}

// ClassifyError maps a backend error onto the retry taxonomy. Errors that are
// already classified pass through unchanged.
func ClassifyError(err error) error {
	if err == nil {
		return nil
	}
	if common.KindOf(err) != "" {
		return err
	}

	if st, ok := status.FromError(err); ok && st.Code() != codes.OK && st.Code() != codes.Unknown {
		return classifyGRPC(st.Code(), st.Message(), err)
	}

	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		return classifyHTTP(gErr.Code, gErr.Message+" "+gErr.Body, err)
	}

	var sErr *StatusError
	if errors.As(err, &sErr) {
		return classifyHTTP(sErr.Code, sErr.Body, err)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return common.NewTransientAIError("AI call timed out", err)
	}
	if errors.Is(err, context.Canceled) {
		return common.NewTransientAIError("AI call cancelled", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return common.NewTransientAIError("network error", err)
	}
	return common.NewTransientAIError("AI call failed", err)
}

func classifyGRPC(code codes.Code, msg string, err error) error {
	switch code {
	case codes.ResourceExhausted:
		if hasQuotaMarker(msg) {
			return common.NewQuotaError("AI quota exhausted", err)
		}
		return common.NewTransientAIError("AI rate limited", err)
	case codes.Unauthenticated, codes.PermissionDenied:
		return common.NewQuotaError("AI credentials rejected", err)
	case codes.InvalidArgument, codes.FailedPrecondition, codes.OutOfRange:
		return common.NewAIRequestError("AI request rejected", err)
	default:
		// Unavailable, DeadlineExceeded, Internal, Aborted, ...
		return common.NewTransientAIError("AI service error", err)
	}
}

func classifyHTTP(code int, body string, err error) error {
	switch {
	case code == http.StatusTooManyRequests:
		if hasQuotaMarker(body) {
			return common.NewQuotaError("AI quota exhausted", err)
		}
		return common.NewTransientAIError("AI rate limited", err)
	case code == http.StatusUnauthorized, code == http.StatusForbidden, code == http.StatusPaymentRequired:
		return common.NewQuotaError("AI credentials rejected", err)
	case code == http.StatusRequestTimeout, code >= 500:
		return common.NewTransientAIError("AI service error", err)
	case code == http.StatusBadRequest, code == http.StatusNotFound, code == http.StatusRequestEntityTooLarge, code == http.StatusUnprocessableEntity:
		return common.NewAIRequestError("AI request rejected", err)
	default:
		return common.NewTransientAIError("AI call failed", err)
	}
}

func hasQuotaMarker(s string) bool {
	s = strings.ToLower(s)
	for _, m := range quotaMarkers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
