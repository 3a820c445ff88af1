package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-drill/internal/engine"
	"github.com/stemsi/exstem-drill/internal/model"
	"github.com/stemsi/exstem-drill/internal/response"
	"github.com/stemsi/exstem-drill/internal/service"
)

type errMapping struct {
	target error
	status int
	code   response.ErrCode
}

// errTable maps domain errors to API errors. Order matters for wrapped
// errors: the first match wins.
var errTable = []errMapping{
	{service.ErrSessionNotFound, http.StatusNotFound, response.ErrSessionNotFound},
	{service.ErrNoSnapshot, http.StatusNotFound, response.ErrNoSnapshot},
	{service.ErrExerciseNotFound, http.StatusNotFound, response.ErrExerciseNotFound},
	{service.ErrSessionLimit, http.StatusTooManyRequests, response.ErrSessionLimit},
	{service.ErrShuttingDown, http.StatusServiceUnavailable, response.ErrInternal},
	{service.ErrCatalogUnavailable, http.StatusNotImplemented, response.ErrNotFound},
	{service.ErrResultsUnavailable, http.StatusNotImplemented, response.ErrNotFound},
	{service.ErrInvalidClientKey, http.StatusUnauthorized, response.ErrForbidden},
	{service.ErrIssuanceDisabled, http.StatusForbidden, response.ErrForbidden},
	{service.ErrUnknownTokenType, http.StatusBadRequest, response.ErrInvalidPayload},

	{engine.ErrInvalidConfig, http.StatusBadRequest, response.ErrInvalidConfig},
	{engine.ErrMissingExerciseData, http.StatusUnprocessableEntity, response.ErrMissingExercise},
	{model.ErrEmptyExercise, http.StatusUnprocessableEntity, response.ErrMissingExercise},
	{engine.ErrAlreadyStarted, http.StatusConflict, response.ErrAlreadyStarted},
	{engine.ErrNotStarted, http.StatusConflict, response.ErrNotStarted},
	{engine.ErrPaused, http.StatusConflict, response.ErrSessionPaused},
	{engine.ErrNotPaused, http.StatusConflict, response.ErrSessionNotPaused},
	{engine.ErrCompleted, http.StatusConflict, response.ErrSessionCompleted},
	{engine.ErrFailed, http.StatusConflict, response.ErrSessionFailed},
	{engine.ErrDestroyed, http.StatusGone, response.ErrSessionNotFound},
	{engine.ErrNoCurrentQuestion, http.StatusConflict, response.ErrNoCurrentQuestion},
	{engine.ErrQuestionOutOfRange, http.StatusBadRequest, response.ErrQuestionOutOfRange},
	{engine.ErrProgressionBlocked, http.StatusConflict, response.ErrProgressionBlocked},
	{engine.ErrSnapshotMismatch, http.StatusConflict, response.ErrSnapshotMismatch},
	{model.ErrInvalidTransition, http.StatusConflict, response.ErrInvalidTransition},
}

// classify returns the HTTP status and error code for err. Unknown errors
// are internal.
func classify(err error) (int, response.ErrCode) {
	for _, m := range errTable {
		if errors.Is(err, m.target) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, response.ErrInternal
}

// failErr writes the API error for err, logging anything unexpected.
func failErr(c *gin.Context, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		zerolog.Ctx(c.Request.Context()).Error().Err(err).Str("path", c.FullPath()).Msg("Request failed")
	}
	response.Fail(c, status, code)
}
