package graph

import (
	"context"
	"errors"

	"notes-api/internal/models"
	"notes-api/internal/rbac"
	"notes-api/pkg/logger"

	gqlerrors "github.com/graph-gophers/graphql-go/errors"
)

// Error codes carried in extensions.code.
const (
	CodeUnauthenticated  = "UNAUTHENTICATED"
	CodeForbidden        = "FORBIDDEN"
	CodeNotFound         = "NOT_FOUND"
	CodeBadUserInput     = "BAD_USER_INPUT"
	CodeBadRequest       = "BAD_REQUEST"
	CodeValidationFailed = "GRAPHQL_VALIDATION_FAILED"
	CodeTooManyRequests  = "TOO_MANY_REQUESTS"
	CodeInternal         = "INTERNAL_SERVER_ERROR"
)

// Error is a client-facing resolver error. The engine copies Extensions into
// the response.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Extensions() map[string]interface{} {
	return map[string]interface{}{"code": e.Code}
}

func newError(code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// ErrorEnvelope is the response body for requests refused before execution.
func ErrorEnvelope(code, msg string) map[string]interface{} {
	return map[string]interface{}{
		"errors": []*gqlerrors.QueryError{{
			Message:    msg,
			Extensions: map[string]interface{}{"code": code},
		}},
	}
}

// resolverError maps domain errors to client errors. Anything unrecognised is
// logged and reported as an internal error without its cause.
func resolverError(ctx context.Context, op string, err error) error {
	var gqlErr *Error
	switch {
	case errors.As(err, &gqlErr):
		return gqlErr
	case errors.Is(err, rbac.ErrUnauthenticated):
		return newError(CodeUnauthenticated, err.Error())
	case errors.Is(err, rbac.ErrForbidden):
		return newError(CodeForbidden, err.Error())
	case errors.Is(err, models.ErrNotFound):
		return newError(CodeNotFound, "not found")
	case errors.Is(err, models.ErrConflict):
		return newError(CodeBadUserInput, "already exists")
	case errors.Is(err, models.ErrInvalidArgument):
		return newError(CodeBadUserInput, "invalid argument")
	}
	logger.From(ctx).Error("graphql resolver failed", "op", op, "err", err)
	return newError(CodeInternal, "internal server error")
}
