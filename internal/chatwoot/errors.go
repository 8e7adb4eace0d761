package chatwoot

import (
	"errors"

	"funnelboard_backend/platform/apperr"
)

// AsAppError converts a client failure into a typed domain error for the
// HTTP layer. *APIError keeps its upstream status and decoded body so the
// handler can relay them; anything else becomes an internal error.
func AsAppError(op string, err error) *apperr.Error {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apperr.Upstream(apiErr.Status, apiErr.Data).WithOp(op)
	}

	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return appErr
	}

	return apperr.Wrap(apperr.KindInternal, "chatwoot client failure", err).WithOp(op)
}
