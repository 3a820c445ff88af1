package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stemsi/exstem-drill/internal/middleware"
	"github.com/stemsi/exstem-drill/internal/model"
	"github.com/stemsi/exstem-drill/internal/response"
	"github.com/stemsi/exstem-drill/internal/service"
	"github.com/stemsi/exstem-drill/internal/validator"
)

// ExerciseHandler handles author management of stored exercises.
type ExerciseHandler struct {
	exerciseService *service.ExerciseService
	resultService   *service.ResultService
}

// NewExerciseHandler creates a new ExerciseHandler.
func NewExerciseHandler(exerciseService *service.ExerciseService, resultService *service.ResultService) *ExerciseHandler {
	return &ExerciseHandler{exerciseService: exerciseService, resultService: resultService}
}

// Put godoc
// PUT /api/v1/exercises/:exercise_id
// Creates or replaces an exercise definition. The body id must match the path.
func (h *ExerciseHandler) Put(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var def model.ExerciseDefinition
	if fields := validator.Bind(c, &def); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	if def.ID != c.Param("exercise_id") {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, map[string]string{"id": "id must match the path"})
		return
	}

	if err := h.exerciseService.Put(c.Request.Context(), &def, claims.UserID); err != nil {
		failErr(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"id": def.ID, "question_count": def.QuestionCount()})
}

// Get godoc
// GET /api/v1/exercises/:exercise_id
// Returns the full definition including answer keys.
func (h *ExerciseHandler) Get(c *gin.Context) {
	def, err := h.exerciseService.Get(c.Request.Context(), c.Param("exercise_id"))
	if err != nil {
		failErr(c, err)
		return
	}
	response.Success(c, http.StatusOK, def)
}

// List godoc
// GET /api/v1/exercises?page=1&per_page=20
func (h *ExerciseHandler) List(c *gin.Context) {
	var q model.PageQuery
	if fields := validator.BindQuery(c, &q); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	q.Normalize()

	items, total, err := h.exerciseService.List(c.Request.Context(), q)
	if err != nil {
		failErr(c, err)
		return
	}
	if items == nil {
		items = []model.ExerciseSummary{}
	}
	response.SuccessWithPagination(c, http.StatusOK, gin.H{"exercises": items}, response.NewPagination(q.Page, q.PerPage, total))
}

// Delete godoc
// DELETE /api/v1/exercises/:exercise_id
func (h *ExerciseHandler) Delete(c *gin.Context) {
	if err := h.exerciseService.Delete(c.Request.Context(), c.Param("exercise_id")); err != nil {
		failErr(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{})
}

// Results godoc
// GET /api/v1/exercises/:exercise_id/results?page=1&per_page=20
// Lists every learner's persisted results for the exercise.
func (h *ExerciseHandler) Results(c *gin.Context) {
	var q model.PageQuery
	if fields := validator.BindQuery(c, &q); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	q.Normalize()

	results, total, err := h.resultService.ForExercise(c.Request.Context(), c.Param("exercise_id"), q)
	if err != nil {
		failErr(c, err)
		return
	}
	if results == nil {
		results = []model.StoredResult{}
	}
	response.SuccessWithPagination(c, http.StatusOK, gin.H{"results": results}, response.NewPagination(q.Page, q.PerPage, total))
}
