package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/school-system/reportgen/internal/models"
	"github.com/school-system/reportgen/internal/services"
)

// maxImageBytes bounds a single logo or signature upload.
const maxImageBytes = 5 << 20

type SettingsHandler struct {
	settingsService *services.SettingsService
	auditService    *services.AuditService
}

func NewSettingsHandler(settingsService *services.SettingsService, auditService *services.AuditService) *SettingsHandler {
	return &SettingsHandler{settingsService: settingsService, auditService: auditService}
}

// @Summary Get template settings
// @Tags settings
// @Produce json
// @Success 200 {object} models.Settings
// @Security BearerAuth
// @Router /api/v1/settings [get]
func (h *SettingsHandler) Get(c *gin.Context) {
	settings, err := h.settingsService.Get(c.Request.Context(), ownerKey(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

// @Summary Update template settings
// @Description Merges the given fields into the stored settings. Omitted fields are unchanged.
// @Tags settings
// @Accept json
// @Produce json
// @Param request body models.SettingsPatch true "Fields to change"
// @Success 200 {object} models.Settings
// @Security BearerAuth
// @Router /api/v1/settings [put]
func (h *SettingsHandler) Update(c *gin.Context) {
	var patch models.SettingsPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	settings, err := h.settingsService.Update(c.Request.Context(), ownerKey(c), patch)
	if err != nil {
		writeError(c, err)
		return
	}

	h.auditService.Record(c.Request.Context(), actorID(c), services.ActionUpdate, "settings", actorID(c),
		models.JSONB{"school_name": settings.SchoolName, "theme_color": settings.ThemeColor}, c.ClientIP())
	c.JSON(http.StatusOK, settings)
}

// @Summary Reset template settings
// @Tags settings
// @Produce json
// @Success 200 {object} models.Settings
// @Security BearerAuth
// @Router /api/v1/settings/reset [post]
func (h *SettingsHandler) Reset(c *gin.Context) {
	settings, err := h.settingsService.Reset(c.Request.Context(), ownerKey(c))
	if err != nil {
		writeError(c, err)
		return
	}
	h.auditService.Record(c.Request.Context(), actorID(c), services.ActionUpdate, "settings", actorID(c),
		models.JSONB{"reset": true}, c.ClientIP())
	c.JSON(http.StatusOK, settings)
}

// @Summary Upload a template image
// @Description Stores a logo or signature. PNG, JPEG and WebP are accepted and normalized to PNG.
// @Tags settings
// @Accept multipart/form-data
// @Produce json
// @Param slot path string true "logo, signature_teacher or signature_principal"
// @Param image formData file true "Image file"
// @Success 200 {object} models.Settings
// @Security BearerAuth
// @Router /api/v1/settings/images/{slot} [post]
func (h *SettingsHandler) UploadImage(c *gin.Context) {
	fh, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Image is required"})
		return
	}
	if fh.Size > maxImageBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Image is too large"})
		return
	}
	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read image"})
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read image"})
		return
	}

	settings, err := h.settingsService.UploadImage(c.Request.Context(), ownerKey(c), c.Param("slot"), fh.Filename, data)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

// @Summary Remove a template image
// @Tags settings
// @Produce json
// @Param slot path string true "logo, signature_teacher or signature_principal"
// @Success 200 {object} models.Settings
// @Security BearerAuth
// @Router /api/v1/settings/images/{slot} [delete]
func (h *SettingsHandler) RemoveImage(c *gin.Context) {
	settings, err := h.settingsService.RemoveImage(c.Request.Context(), ownerKey(c), c.Param("slot"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}
