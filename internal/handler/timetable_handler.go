package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-timetable/internal/dto"
	"github.com/noah-isme/sma-timetable/internal/models"
	"github.com/noah-isme/sma-timetable/internal/service"
	appErrors "github.com/noah-isme/sma-timetable/pkg/errors"
	"github.com/noah-isme/sma-timetable/pkg/response"
)

const maxGroupsPerRequest = 256

type timetableService interface {
	Generate(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.TimetableProposalResponse, error)
	GetProposal(ctx context.Context, id string) (*dto.TimetableProposalResponse, error)
	Save(ctx context.Context, req dto.SaveTimetableRequest) (string, error)
	List(ctx context.Context, query dto.TimetableRunQuery) ([]models.TimetableRun, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.TimetableRunDetail, error)
	Publish(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	Export(ctx context.Context, proposalID string, query dto.ExportTimetableQuery) (*dto.ExportFile, error)
	PurgeCache(ctx context.Context) error
}

// TimetableHandler exposes timetable generation endpoints.
type TimetableHandler struct {
	service timetableService
}

// NewTimetableHandler constructs the handler.
func NewTimetableHandler(svc *service.TimetableService) *TimetableHandler {
	return &TimetableHandler{service: svc}
}

// Generate godoc
// @Summary Generate a weekly timetable proposal
// @Description Runs the engine over the supplied groups, teachers, subjects and time slots. Inputs the engine rejects return 422 with the reason.
// @Tags Timetable
// @Accept json
// @Produce json
// @Param payload body dto.GenerateTimetableRequest true "Generate timetable payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /timetables/generate [post]
func (h *TimetableHandler) Generate(c *gin.Context) {
	var req dto.GenerateTimetableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid generate payload"))
		return
	}
	if len(req.Groups) > maxGroupsPerRequest {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "groups exceeds supported limit"))
		return
	}
	result, err := h.service.Generate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil, map[string]interface{}{"mode": "preview"})
}

// Proposal godoc
// @Summary Get a generated proposal
// @Tags Timetable
// @Produce json
// @Param id path string true "Proposal ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /timetables/proposals/{id} [get]
func (h *TimetableHandler) Proposal(c *gin.Context) {
	result, err := h.service.GetProposal(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Save godoc
// @Summary Save a proposal as a draft timetable
// @Tags Timetable
// @Accept json
// @Produce json
// @Param payload body dto.SaveTimetableRequest true "Save timetable payload"
// @Success 201 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /timetables/save [post]
func (h *TimetableHandler) Save(c *gin.Context) {
	var req dto.SaveTimetableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid save payload"))
		return
	}
	id, err := h.service.Save(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.SaveTimetableResponse{RunID: id})
}

// List godoc
// @Summary List saved timetables
// @Tags Timetable
// @Produce json
// @Param status query string false "DRAFT or PUBLISHED"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /timetables [get]
func (h *TimetableHandler) List(c *gin.Context) {
	var query dto.TimetableRunQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	runs, pagination, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, runs, pagination)
}

// Get godoc
// @Summary Get a saved timetable with its sessions
// @Tags Timetable
// @Produce json
// @Param id path string true "Timetable ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /timetables/{id} [get]
func (h *TimetableHandler) Get(c *gin.Context) {
	detail, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Publish godoc
// @Summary Publish a draft timetable
// @Tags Timetable
// @Produce json
// @Param id path string true "Timetable ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /timetables/{id}/publish [post]
func (h *TimetableHandler) Publish(c *gin.Context) {
	id := c.Param("id")
	if err := h.service.Publish(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"id": id, "status": models.TimetableRunStatusPublished}, nil)
}

// Delete godoc
// @Summary Delete a draft timetable
// @Tags Timetable
// @Param id path string true "Timetable ID"
// @Success 204
// @Failure 409 {object} response.Envelope
// @Router /timetables/{id} [delete]
func (h *TimetableHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Export godoc
// @Summary Download a proposal as CSV, PDF, XLSX or iCalendar
// @Tags Timetable
// @Produce octet-stream
// @Param id path string true "Proposal ID"
// @Param format query string true "csv, pdf, xlsx or ics"
// @Param termStart query string false "First day of term (YYYY-MM-DD), ics only"
// @Param weeks query int false "Recurrence length in weeks, ics only"
// @Success 200 {file} file
// @Failure 404 {object} response.Envelope
// @Router /timetables/proposals/{id}/export [get]
func (h *TimetableHandler) Export(c *gin.Context) {
	var query dto.ExportTimetableQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid export parameters"))
		return
	}
	file, err := h.service.Export(c.Request.Context(), c.Param("id"), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Data)
}

// PurgeCache godoc
// @Summary Drop cached generation reports
// @Tags Timetable
// @Success 204
// @Failure 500 {object} response.Envelope
// @Router /timetables/cache/purge [post]
func (h *TimetableHandler) PurgeCache(c *gin.Context) {
	if err := h.service.PurgeCache(c.Request.Context()); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
