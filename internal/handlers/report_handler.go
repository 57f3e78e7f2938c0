package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/school-system/reportgen/internal/export"
	"github.com/school-system/reportgen/internal/ingest"
	"github.com/school-system/reportgen/internal/logging"
	"github.com/school-system/reportgen/internal/models"
	"github.com/school-system/reportgen/internal/render"
	"github.com/school-system/reportgen/internal/services"
	"go.uber.org/zap"
)

type ReportHandler struct {
	reportService  *services.ReportService
	auditService   *services.AuditService
	maxUploadBytes int64
	logger         *zap.Logger
}

func NewReportHandler(reportService *services.ReportService, auditService *services.AuditService, maxUploadBytes int64, logger *zap.Logger) *ReportHandler {
	return &ReportHandler{
		reportService:  reportService,
		auditService:   auditService,
		maxUploadBytes: maxUploadBytes,
		logger:         logging.OrNop(logger),
	}
}

// upload reads and parses the "file" form field.
func (h *ReportHandler) upload(c *gin.Context) (string, []models.StudentRecord, bool) {
	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File is required"})
		return "", nil, false
	}
	if err := ingest.ValidateUpload(fh.Filename, fh.Header.Get("Content-Type")); err != nil {
		writeError(c, err)
		return "", nil, false
	}
	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read file"})
		return "", nil, false
	}
	defer f.Close()

	records, err := ingest.Parse(f)
	if err != nil {
		writeError(c, err)
		return "", nil, false
	}
	return fh.Filename, records, true
}

// @Summary Generate report cards
// @Description Parses an .xlsx marks sheet, generates every student's result and renders the cards. With stream=true progress is sent as server-sent events followed by a result event.
// @Tags reports
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Marks sheet (.xlsx)"
// @Param stream query bool false "Stream progress events"
// @Success 200 {object} services.BatchResult
// @Security BearerAuth
// @Router /api/v1/reports/generate [post]
func (h *ReportHandler) Generate(c *gin.Context) {
	fileName, records, ok := h.upload(c)
	if !ok {
		return
	}

	stream, _ := strconv.ParseBool(c.Query("stream"))
	var onProgress func(float64)
	if stream {
		c.Header("Cache-Control", "no-cache")
		onProgress = func(p float64) {
			c.SSEvent("progress", gin.H{"progress": p})
			c.Writer.Flush()
		}
	}

	res, err := h.reportService.Generate(c.Request.Context(), ownerKey(c), fileName, records, onProgress)
	if err != nil {
		if stream {
			c.SSEvent("error", gin.H{"error": err.Error()})
			return
		}
		writeError(c, err)
		return
	}

	h.recordBatch(c, services.ActionGenerate, res)

	if stream {
		c.SSEvent("result", res)
		return
	}
	c.JSON(http.StatusOK, res)
}

// @Summary Export report cards as PDF
// @Description Generates the batch and returns a zip of A4 PDF files. When the export stops part way the files saved so far are returned with an X-Export-Error header.
// @Tags reports
// @Accept multipart/form-data
// @Produce application/zip
// @Param file formData file true "Marks sheet (.xlsx)"
// @Success 200 {file} file
// @Security BearerAuth
// @Router /api/v1/reports/export [post]
func (h *ReportHandler) Export(c *gin.Context) {
	fileName, records, ok := h.upload(c)
	if !ok {
		return
	}
	writeZip(c, h.logger, export.BaseName(fileName), func(sink export.Sink) (*services.ExportResult, error) {
		out, err := h.reportService.Export(c.Request.Context(), ownerKey(c), fileName, records, sink)
		if out != nil && out.Batch != nil {
			h.recordBatch(c, services.ActionExport, out.Batch)
		}
		return out, err
	})
}

// @Summary Download one report card
// @Description Renders a single result with the caller's template and returns the HTML fragment as a download.
// @Tags reports
// @Accept json
// @Produce html
// @Param request body models.StudentResult true "Student result"
// @Success 200 {string} string
// @Security BearerAuth
// @Router /api/v1/reports/card [post]
func (h *ReportHandler) Card(c *gin.Context) {
	var result models.StudentResult
	if err := c.ShouldBindJSON(&result); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	card, err := h.reportService.RenderCard(c.Request.Context(), ownerKey(c), result)
	if err != nil {
		writeError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, render.FileName(card.StudentName)))
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(card.HTML))
}

// @Summary Generate a single report card
// @Description Produces one complete card for one student record.
// @Tags reports
// @Accept json
// @Produce json
// @Param request body models.StudentRecord true "Student record"
// @Success 200 {object} genai.CardOutput
// @Security BearerAuth
// @Router /api/v1/reports/single [post]
func (h *ReportHandler) Single(c *gin.Context) {
	var record models.StudentRecord
	if err := c.ShouldBindJSON(&record); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	card, err := h.reportService.SingleCard(c.Request.Context(), ownerKey(c), record)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, card)
}

func (h *ReportHandler) recordBatch(c *gin.Context, action string, res *services.BatchResult) {
	resourceID := uuid.Nil
	if res.HistoryID != nil {
		resourceID = *res.HistoryID
	}
	h.auditService.Record(c.Request.Context(), actorID(c), action, "history", resourceID, models.JSONB{
		"file_name":     res.FileName,
		"total":         res.Total,
		"generated":     res.Generated,
		"failed_chunks": len(res.FailedChunks),
	}, c.ClientIP())
}

// writeZip runs an export into an in-memory archive. Files saved before a
// failure are still sent; the failure travels in X-Export-Error. Nothing
// saved means a JSON error instead.
func writeZip(c *gin.Context, logger *zap.Logger, base string, run func(export.Sink) (*services.ExportResult, error)) {
	var buf bytes.Buffer
	sink := export.NewZipSink(&buf)

	out, err := run(sink)
	var files []export.File
	if out != nil {
		files = out.Files
	}
	if err != nil && len(files) == 0 {
		writeError(c, err)
		return
	}
	if cerr := sink.Close(); cerr != nil {
		writeError(c, cerr)
		return
	}

	if err != nil {
		logger.Warn("Returning partial export", zap.Int("files", len(files)), zap.Error(err))
		_ = c.Error(err)
		c.Header("X-Export-Error", err.Error())
	}
	c.Header("X-Export-Files", strconv.Itoa(len(files)))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s_report_cards.zip"`, base))
	c.Data(http.StatusOK, "application/zip", buf.Bytes())
}
