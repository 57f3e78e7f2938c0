package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/school-system/reportgen/internal/export"
	"github.com/school-system/reportgen/internal/logging"
	"github.com/school-system/reportgen/internal/models"
	"github.com/school-system/reportgen/internal/services"
	"go.uber.org/zap"
)

type HistoryHandler struct {
	historyService *services.HistoryService
	reportService  *services.ReportService
	auditService   *services.AuditService
	logger         *zap.Logger
}

func NewHistoryHandler(historyService *services.HistoryService, reportService *services.ReportService, auditService *services.AuditService, logger *zap.Logger) *HistoryHandler {
	return &HistoryHandler{
		historyService: historyService,
		reportService:  reportService,
		auditService:   auditService,
		logger:         logging.OrNop(logger),
	}
}

type EmailRequest struct {
	To     string `json:"to" binding:"required,email"`
	Attach bool   `json:"attach"`
}

type MailtoQuery struct {
	To string `form:"to" binding:"required,email"`
}

// @Summary List generation history
// @Tags history
// @Produce json
// @Success 200 {array} models.HistoryItem
// @Security BearerAuth
// @Router /api/v1/history [get]
func (h *HistoryHandler) List(c *gin.Context) {
	items, err := h.historyService.List(c.Request.Context(), ownerKey(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

// @Summary Get a history item with its student records
// @Tags history
// @Produce json
// @Param id path string true "History ID"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /api/v1/history/{id} [get]
func (h *HistoryHandler) Get(c *gin.Context) {
	id, ok := pathUUID(c)
	if !ok {
		return
	}
	item, err := h.historyService.Get(c.Request.Context(), ownerKey(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	records, err := item.Records()
	if err != nil {
		h.logger.Warn("Unreadable history records", zap.String("history_id", id.String()), zap.Error(err))
		records = []models.StudentRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"item": item, "students": records})
}

// @Summary Delete a history item
// @Tags history
// @Produce json
// @Param id path string true "History ID"
// @Success 200
// @Security BearerAuth
// @Router /api/v1/history/{id} [delete]
func (h *HistoryHandler) Delete(c *gin.Context) {
	id, ok := pathUUID(c)
	if !ok {
		return
	}
	if err := h.historyService.Delete(c.Request.Context(), ownerKey(c), id); err != nil {
		writeError(c, err)
		return
	}
	h.auditService.Record(c.Request.Context(), actorID(c), services.ActionDelete, "history", id, nil, c.ClientIP())
	c.JSON(http.StatusOK, gin.H{"message": "History item deleted"})
}

// @Summary Clear all history
// @Tags history
// @Produce json
// @Success 200
// @Security BearerAuth
// @Router /api/v1/history [delete]
func (h *HistoryHandler) Clear(c *gin.Context) {
	n, err := h.historyService.Clear(c.Request.Context(), ownerKey(c))
	if err != nil {
		writeError(c, err)
		return
	}
	h.auditService.Record(c.Request.Context(), actorID(c), services.ActionDelete, "history", actorID(c),
		models.JSONB{"deleted": n}, c.ClientIP())
	c.JSON(http.StatusOK, gin.H{"message": "History cleared", "deleted": n})
}

// @Summary Export a stored batch as PDF
// @Description Regenerates the batch from its stored records and returns a zip of PDF files.
// @Tags history
// @Produce application/zip
// @Param id path string true "History ID"
// @Success 200 {file} file
// @Security BearerAuth
// @Router /api/v1/history/{id}/export [post]
func (h *HistoryHandler) Export(c *gin.Context) {
	id, ok := pathUUID(c)
	if !ok {
		return
	}
	item, err := h.historyService.Get(c.Request.Context(), ownerKey(c), id)
	if err != nil {
		writeError(c, err)
		return
	}

	writeZip(c, h.logger, export.BaseName(item.FileName), func(sink export.Sink) (*services.ExportResult, error) {
		out, err := h.reportService.ExportHistory(c.Request.Context(), ownerKey(c), id, sink)
		if out != nil {
			h.auditService.Record(c.Request.Context(), actorID(c), services.ActionExport, "history", id,
				models.JSONB{"files": len(out.Files)}, c.ClientIP())
		}
		return out, err
	})
}

// @Summary Prefilled mail link for a stored batch
// @Tags history
// @Produce json
// @Param id path string true "History ID"
// @Param to query string true "Recipient address"
// @Success 200 {object} map[string]string
// @Security BearerAuth
// @Router /api/v1/history/{id}/mailto [get]
func (h *HistoryHandler) Mailto(c *gin.Context) {
	id, ok := pathUUID(c)
	if !ok {
		return
	}
	var q MailtoQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	draft, err := h.historyService.Mailto(c.Request.Context(), ownerKey(c), id, q.To)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"to":      draft.To,
		"subject": draft.Subject,
		"body":    draft.Body,
		"mailto":  draft.MailtoURL(),
	})
}

// @Summary Email a stored batch
// @Description Sends the batch notice, optionally with the regenerated PDF files attached.
// @Tags history
// @Accept json
// @Produce json
// @Param id path string true "History ID"
// @Param request body EmailRequest true "Recipient"
// @Success 200 {object} map[string]string
// @Security BearerAuth
// @Router /api/v1/history/{id}/email [post]
func (h *HistoryHandler) Email(c *gin.Context) {
	id, ok := pathUUID(c)
	if !ok {
		return
	}
	var req EmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	draft, err := h.historyService.Email(c.Request.Context(), ownerKey(c), id, req.To, req.Attach)
	if err != nil {
		writeError(c, err)
		return
	}

	h.auditService.Record(c.Request.Context(), actorID(c), services.ActionEmail, "history", id,
		models.JSONB{"to": draft.To, "attach": req.Attach}, c.ClientIP())
	c.JSON(http.StatusOK, gin.H{"message": "Email sent", "to": draft.To, "subject": draft.Subject})
}
