package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/school-system/reportgen/internal/images"
	"github.com/school-system/reportgen/internal/logging"
	"github.com/school-system/reportgen/internal/models"
	"github.com/school-system/reportgen/internal/store"
	"github.com/school-system/reportgen/internal/validation"
	"go.uber.org/zap"
)

var (
	ErrInvalidThemeColor = errors.New("invalid theme color")
	ErrInvalidImage      = errors.New("invalid image")
)

// ValidationError is a settings update the editor should have rejected.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

type SettingsService struct {
	store  store.Store
	logger *zap.Logger
}

func NewSettingsService(st store.Store, logger *zap.Logger) *SettingsService {
	return &SettingsService{store: st, logger: logging.OrNop(logger)}
}

func (s *SettingsService) Get(ctx context.Context, userID string) (*models.Settings, error) {
	return s.store.GetSettings(ctx, userID)
}

// Update validates and merges a partial update.
func (s *SettingsService) Update(ctx context.Context, userID string, patch models.SettingsPatch) (*models.Settings, error) {
	if err := validatePatch(patch); err != nil {
		return nil, err
	}
	settings, err := s.store.SaveSettings(ctx, userID, patch)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Settings saved", zap.String("user_id", userID))
	return settings, nil
}

// Reset restores the default template, clearing uploaded images.
func (s *SettingsService) Reset(ctx context.Context, userID string) (*models.Settings, error) {
	d := models.DefaultSettings(userID)
	return s.store.SaveSettings(ctx, userID, models.SettingsPatch{
		SchoolName:         &d.SchoolName,
		Address:            &d.Address,
		Session:            &d.Session,
		ThemeColor:         &d.ThemeColor,
		Logo:               &d.Logo,
		TeacherSignature:   &d.TeacherSignature,
		PrincipalSignature: &d.PrincipalSignature,
		GradingScale:       &d.GradingScale,
	})
}

// UploadImage normalizes an uploaded image and stores it in slot.
func (s *SettingsService) UploadImage(ctx context.Context, userID, slotName, filename string, data []byte) (*models.Settings, error) {
	slot, err := images.ParseSlot(slotName)
	if err != nil {
		return nil, &ValidationError{Field: "slot", Err: err}
	}
	w, h := slot.MaxSize()
	dataURL, err := images.Normalize(data, filename, w, h)
	if err != nil {
		return nil, &ValidationError{Field: string(slot), Err: fmt.Errorf("%w: %v", ErrInvalidImage, err)}
	}
	return s.store.SaveSettings(ctx, userID, slot.Patch(dataURL))
}

// RemoveImage clears the image in slot.
func (s *SettingsService) RemoveImage(ctx context.Context, userID, slotName string) (*models.Settings, error) {
	slot, err := images.ParseSlot(slotName)
	if err != nil {
		return nil, &ValidationError{Field: "slot", Err: err}
	}
	return s.store.SaveSettings(ctx, userID, slot.Patch(""))
}

func validatePatch(p models.SettingsPatch) error {
	if err := validation.Struct(p); err != nil {
		field, _, _ := validation.FirstField(err)
		if field == "theme_color" {
			return &ValidationError{Field: field, Err: fmt.Errorf("%w: %q", ErrInvalidThemeColor, *p.ThemeColor)}
		}
		return &ValidationError{Field: field, Err: err}
	}
	if p.GradingScale != nil {
		if err := p.GradingScale.Validate(); err != nil {
			return &ValidationError{Field: "grading_scale", Err: err}
		}
	}
	for field, v := range map[string]*string{
		"logo":                p.Logo,
		"teacher_signature":   p.TeacherSignature,
		"principal_signature": p.PrincipalSignature,
	} {
		if v == nil || *v == "" {
			continue
		}
		if _, err := images.DecodeDataURL(*v); err != nil {
			return &ValidationError{Field: field, Err: fmt.Errorf("%w: %v", ErrInvalidImage, err)}
		}
	}
	return nil
}
