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

// ResultHandler serves a learner's own persisted results.
type ResultHandler struct {
	resultService *service.ResultService
}

// NewResultHandler creates a new ResultHandler.
func NewResultHandler(resultService *service.ResultService) *ResultHandler {
	return &ResultHandler{resultService: resultService}
}

// List godoc
// GET /api/v1/results?page=1&per_page=20
func (h *ResultHandler) List(c *gin.Context) {
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

	results, total, err := h.resultService.ForLearner(c.Request.Context(), claims.UserID, q)
	if err != nil {
		failErr(c, err)
		return
	}
	if results == nil {
		results = []model.StoredResult{}
	}
	response.SuccessWithPagination(c, http.StatusOK, gin.H{"results": results}, response.NewPagination(q.Page, q.PerPage, total))
}
