package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/stemsi/exstem-drill/internal/engine"
	"github.com/stemsi/exstem-drill/internal/middleware"
	"github.com/stemsi/exstem-drill/internal/model"
	"github.com/stemsi/exstem-drill/internal/response"
	"github.com/stemsi/exstem-drill/internal/service"
	"github.com/stemsi/exstem-drill/internal/validator"
)

// SessionHandler exposes the exercise engine of a learner's sessions.
type SessionHandler struct {
	sessionService *service.SessionService
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessionService *service.SessionService) *SessionHandler {
	return &SessionHandler{sessionService: sessionService}
}

// engineFor resolves the session in the path for the calling learner,
// writing the error response itself when it cannot.
func (h *SessionHandler) engineFor(c *gin.Context) (*engine.Engine, bool) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return nil, false
	}

	sessionID := c.Param("session_id")
	if _, err := uuid.Parse(sessionID); err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return nil, false
	}

	eng, err := h.sessionService.Get(sessionID, claims.UserID)
	if err != nil {
		failErr(c, err)
		return nil, false
	}
	return eng, true
}

// Create godoc
// POST /api/v1/sessions
// Loads an exercise (inline or stored) into a new session, or resumes a saved one.
func (h *SessionHandler) Create(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.CreateSessionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	view, err := h.sessionService.Create(c.Request.Context(), claims.UserID, req)
	if err != nil {
		failErr(c, err)
		return
	}

	status := http.StatusCreated
	if view.Restored {
		status = http.StatusOK
	}
	response.Success(c, status, view)
}

// List godoc
// GET /api/v1/sessions?page=1&per_page=20
// Lists the learner's sessions, live and saved.
func (h *SessionHandler) List(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var q model.PageQuery
	if fields := validator.BindQuery(c, &q); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	q.Normalize()

	refs, total := h.sessionService.List(c.Request.Context(), claims.UserID, q)
	response.SuccessWithPagination(c, http.StatusOK, gin.H{"sessions": refs}, response.NewPagination(q.Page, q.PerPage, total))
}

// Get godoc
// GET /api/v1/sessions/:session_id
// Returns the session snapshot and the current question.
func (h *SessionHandler) Get(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	view, err := h.sessionService.View(c.Param("session_id"), claims.UserID)
	if err != nil {
		failErr(c, err)
		return
	}
	response.Success(c, http.StatusOK, view)
}

// Start godoc
// POST /api/v1/sessions/:session_id/start
func (h *SessionHandler) Start(c *gin.Context) {
	eng, ok := h.engineFor(c)
	if !ok {
		return
	}
	if err := eng.Start(c.Request.Context()); err != nil {
		failErr(c, err)
		return
	}
	h.respondState(c, eng)
}

// SubmitAnswer godoc
// POST /api/v1/sessions/:session_id/answer
// Validates and scores an answer to the current question.
func (h *SessionHandler) SubmitAnswer(c *gin.Context) {
	eng, ok := h.engineFor(c)
	if !ok {
		return
	}

	var req model.SubmitAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	if req.Answer == nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, map[string]string{"answer": "answer is required"})
		return
	}

	res, err := eng.SubmitAnswer(c.Request.Context(), req.Answer)
	if err != nil {
		failErr(c, err)
		return
	}
	response.Success(c, http.StatusOK, res)
}

// Next godoc
// POST /api/v1/sessions/:session_id/next
// Moves forward; past the last question the session completes.
func (h *SessionHandler) Next(c *gin.Context) {
	eng, ok := h.engineFor(c)
	if !ok {
		return
	}
	nav, err := eng.NextQuestion(c.Request.Context())
	if err != nil {
		failErr(c, err)
		return
	}
	response.Success(c, http.StatusOK, nav)
}

// Previous godoc
// POST /api/v1/sessions/:session_id/previous
func (h *SessionHandler) Previous(c *gin.Context) {
	eng, ok := h.engineFor(c)
	if !ok {
		return
	}
	nav, err := eng.PreviousQuestion(c.Request.Context())
	if err != nil {
		failErr(c, err)
		return
	}
	response.Success(c, http.StatusOK, nav)
}

// GoTo godoc
// POST /api/v1/sessions/:session_id/goto
func (h *SessionHandler) GoTo(c *gin.Context) {
	eng, ok := h.engineFor(c)
	if !ok {
		return
	}

	var req model.GoToQuestionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	nav, err := eng.GoToQuestion(c.Request.Context(), *req.Index)
	if err != nil {
		failErr(c, err)
		return
	}
	response.Success(c, http.StatusOK, nav)
}

// Hint godoc
// POST /api/v1/sessions/:session_id/hint
func (h *SessionHandler) Hint(c *gin.Context) {
	eng, ok := h.engineFor(c)
	if !ok {
		return
	}

	var req model.HintRequest
	if c.Request.ContentLength > 0 {
		if fields := validator.Bind(c, &req); fields != nil {
			response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
			return
		}
	}

	hint, err := eng.GetHint(c.Request.Context(), req.Level)
	if err != nil {
		failErr(c, err)
		return
	}
	response.Success(c, http.StatusOK, hint)
}

// Pause godoc
// POST /api/v1/sessions/:session_id/pause
func (h *SessionHandler) Pause(c *gin.Context) {
	eng, ok := h.engineFor(c)
	if !ok {
		return
	}
	if err := eng.Pause(c.Request.Context()); err != nil {
		failErr(c, err)
		return
	}
	h.respondState(c, eng)
}

// Resume godoc
// POST /api/v1/sessions/:session_id/resume
func (h *SessionHandler) Resume(c *gin.Context) {
	eng, ok := h.engineFor(c)
	if !ok {
		return
	}
	if err := eng.Resume(c.Request.Context()); err != nil {
		failErr(c, err)
		return
	}
	h.respondState(c, eng)
}

// Bookmark godoc
// POST /api/v1/sessions/:session_id/bookmark
// Toggles a bookmark on the given question, or on the current one.
func (h *SessionHandler) Bookmark(c *gin.Context) {
	eng, ok := h.engineFor(c)
	if !ok {
		return
	}

	var req model.BookmarkRequest
	if c.Request.ContentLength > 0 {
		if fields := validator.Bind(c, &req); fields != nil {
			response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
			return
		}
	}

	var (
		added bool
		err   error
	)
	if req.Index != nil {
		added, err = eng.BookmarkQuestion(c.Request.Context(), *req.Index)
	} else {
		added, err = eng.BookmarkCurrent(c.Request.Context())
	}
	if err != nil {
		failErr(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"bookmarked": added, "bookmarks": eng.GetState().Bookmarks})
}

// Complete godoc
// POST /api/v1/sessions/:session_id/complete
// Finishes the session and returns the final result. Repeated calls return
// the same result.
func (h *SessionHandler) Complete(c *gin.Context) {
	eng, ok := h.engineFor(c)
	if !ok {
		return
	}
	res, err := eng.Complete(c.Request.Context())
	if err != nil {
		failErr(c, err)
		return
	}
	response.Success(c, http.StatusOK, res)
}

// Reset godoc
// POST /api/v1/sessions/:session_id/reset
// Clears all progress, keeping the loaded exercise.
func (h *SessionHandler) Reset(c *gin.Context) {
	eng, ok := h.engineFor(c)
	if !ok {
		return
	}
	if err := eng.Reset(c.Request.Context()); err != nil {
		failErr(c, err)
		return
	}
	h.respondState(c, eng)
}

// Delete godoc
// DELETE /api/v1/sessions/:session_id
// Unloads the session. Its last snapshot stays resumable.
func (h *SessionHandler) Delete(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	if err := h.sessionService.Destroy(c.Request.Context(), c.Param("session_id"), claims.UserID); err != nil {
		failErr(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{})
}

func (h *SessionHandler) respondState(c *gin.Context, eng *engine.Engine) {
	response.Success(c, http.StatusOK, stateData(eng))
}
