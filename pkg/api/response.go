package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"cardvault/pkg/errors"
	"cardvault/pkg/repository"
)

// envelope wraps every JSON response
type envelope struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *errorBody `json:"error,omitempty"`
}

type errorBody struct {
	Code    errors.Code `json:"code"`
	Message string      `json:"message"`
	Details any         `json:"details,omitempty"`
}

func respond(c *gin.Context, status int, data any) {
	c.JSON(status, envelope{Success: true, Data: data})
}

// respondError writes err as an error envelope and aborts the chain.
// Coded domain errors keep their status and message; anything else is a 500
// whose detail stays in the log.
func respondError(c *gin.Context, log *slog.Logger, err error) {
	var domainErr *errors.Error
	switch {
	case errors.As(err, &domainErr):
	case errors.Is(err, repository.ErrNotFound):
		domainErr = errors.NotFound("Not found")
	case errors.Is(err, repository.ErrDuplicate):
		domainErr = errors.Conflict("Already exists")
	default:
		log.Error("request error", "error", err)
		domainErr = errors.Wrap(err, errors.CodeInternal, "Something went wrong")
	}

	c.AbortWithStatusJSON(domainErr.HTTPStatus(), envelope{
		Error: &errorBody{
			Code:    domainErr.Code,
			Message: domainErr.Message,
			Details: domainErr.Details,
		},
	})
}

// bindError converts a gin binding failure into a validation error
func bindError(err error) *errors.Error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		details := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			details[fe.Field()] = fe.Tag()
		}
		return errors.ValidationWithDetails("Invalid request", details)
	}
	return errors.Validation("Invalid request body")
}
