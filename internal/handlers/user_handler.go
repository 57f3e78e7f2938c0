package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/school-system/reportgen/internal/models"
	"github.com/school-system/reportgen/internal/services"
	"gorm.io/gorm"
)

type UserHandler struct {
	db           *gorm.DB
	authService  *services.AuthService
	auditService *services.AuditService
}

func NewUserHandler(db *gorm.DB, authService *services.AuthService, auditService *services.AuditService) *UserHandler {
	return &UserHandler{
		db:           db,
		authService:  authService,
		auditService: auditService,
	}
}

type CreateUserRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	FullName string `json:"full_name" binding:"required"`
	Role     string `json:"role" binding:"required"`
}

type UpdateUserRequest struct {
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
	IsActive *bool  `json:"is_active"`
}

// @Summary List users
// @Tags users
// @Produce json
// @Success 200 {array} models.User
// @Security BearerAuth
// @Router /api/v1/users [get]
func (h *UserHandler) List(c *gin.Context) {
	var users []models.User
	if err := h.db.WithContext(c.Request.Context()).Order("created_at").Find(&users).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, users)
}

// @Summary Create user
// @Tags users
// @Accept json
// @Produce json
// @Param request body CreateUserRequest true "New user"
// @Success 201 {object} models.User
// @Security BearerAuth
// @Router /api/v1/users [post]
func (h *UserHandler) Create(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user := &models.User{
		Email:    req.Email,
		FullName: req.FullName,
		Role:     req.Role,
		IsActive: true,
	}

	if err := h.authService.CreateUser(c.Request.Context(), user, req.Password); err != nil {
		if errors.Is(err, services.ErrInvalidRole) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Role must be admin or teacher"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.auditService.Record(c.Request.Context(), actorID(c), services.ActionCreate, "user", user.ID,
		models.JSONB{"name": user.FullName, "role": user.Role}, c.ClientIP())

	c.JSON(http.StatusCreated, user)
}

// @Summary Get user
// @Tags users
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} models.User
// @Security BearerAuth
// @Router /api/v1/users/{id} [get]
func (h *UserHandler) Get(c *gin.Context) {
	id, ok := pathUUID(c)
	if !ok {
		return
	}
	var user models.User
	if err := h.db.WithContext(c.Request.Context()).First(&user, "id = ?", id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	c.JSON(http.StatusOK, user)
}

// @Summary Update user
// @Tags users
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param request body UpdateUserRequest true "Fields to change"
// @Success 200 {object} models.User
// @Security BearerAuth
// @Router /api/v1/users/{id} [put]
func (h *UserHandler) Update(c *gin.Context) {
	id, ok := pathUUID(c)
	if !ok {
		return
	}
	db := h.db.WithContext(c.Request.Context())

	var user models.User
	if err := db.First(&user, "id = ?", id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Email != "" {
		user.Email = strings.ToLower(strings.TrimSpace(req.Email))
	}
	if req.FullName != "" {
		user.FullName = req.FullName
	}
	if req.Role != "" {
		if !services.ValidRole(req.Role) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Role must be admin or teacher"})
			return
		}
		user.Role = req.Role
	}
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}

	if err := db.Save(&user).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.auditService.Record(c.Request.Context(), actorID(c), services.ActionUpdate, "user", user.ID,
		models.JSONB{"name": user.FullName, "role": user.Role, "is_active": user.IsActive}, c.ClientIP())

	c.JSON(http.StatusOK, user)
}

// @Summary Delete user
// @Tags users
// @Produce json
// @Param id path string true "User ID"
// @Success 200
// @Security BearerAuth
// @Router /api/v1/users/{id} [delete]
func (h *UserHandler) Delete(c *gin.Context) {
	id, ok := pathUUID(c)
	if !ok {
		return
	}
	if id == actorID(c) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "You cannot delete your own account"})
		return
	}

	res := h.db.WithContext(c.Request.Context()).Delete(&models.User{}, "id = ?", id)
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": res.Error.Error()})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	h.auditService.Record(c.Request.Context(), actorID(c), services.ActionDelete, "user", id, nil, c.ClientIP())

	c.JSON(http.StatusOK, gin.H{"message": "User deleted"})
}
