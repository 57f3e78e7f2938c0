package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/school-system/reportgen/internal/grading"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// JSONB custom type for JSON fields
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = make(JSONB)
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return nil
	}
	return json.Unmarshal(bytes, j)
}

// Base model with UUID
type BaseModel struct {
	ID        uuid.UUID      `gorm:"type:char(36);primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// User is a teacher or administrator who can sign in.
type User struct {
	BaseModel
	Email        string `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	PasswordHash string `gorm:"type:varchar(255);not null" json:"-"`
	Role         string `gorm:"type:varchar(20);not null" json:"role"`
	FullName     string `gorm:"type:varchar(255);not null" json:"full_name"`
	IsActive     bool   `gorm:"default:true" json:"is_active"`
}

// Theme colors offered by the settings editor.
var ThemeColors = []string{"blue", "green", "red", "purple", "orange"}

// Settings is the per-user report card template. Images are data URLs.
type Settings struct {
	UserID             string        `gorm:"type:varchar(64);primaryKey" json:"user_id" bson:"_id"`
	SchoolName         string        `gorm:"type:varchar(255)" json:"school_name" bson:"school_name"`
	Address            string        `gorm:"type:text" json:"address" bson:"address"`
	Session            string        `gorm:"type:varchar(50)" json:"session" bson:"session"`
	ThemeColor         string        `gorm:"type:varchar(20)" json:"theme_color" bson:"theme_color"`
	Logo               string        `gorm:"type:text" json:"logo" bson:"logo"`
	TeacherSignature   string        `gorm:"type:text" json:"teacher_signature" bson:"teacher_signature"`
	PrincipalSignature string        `gorm:"type:text" json:"principal_signature" bson:"principal_signature"`
	GradingScale       grading.Scale `gorm:"type:text;serializer:json" json:"grading_scale" bson:"grading_scale"`
	CreatedAt          time.Time     `json:"created_at" bson:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at" bson:"updated_at"`
}

// DefaultSettings is what a user sees before saving anything.
func DefaultSettings(userID string) Settings {
	scale := make(grading.Scale, len(grading.DefaultScale))
	copy(scale, grading.DefaultScale)
	return Settings{
		UserID:       userID,
		SchoolName:   "Springfield High",
		Session:      "2024-2025",
		ThemeColor:   "blue",
		GradingScale: scale,
	}
}

// SettingsPatch carries a partial settings update. Nil fields are left
// untouched by the store.
type SettingsPatch struct {
	SchoolName         *string        `json:"school_name"`
	Address            *string        `json:"address"`
	Session            *string        `json:"session"`
	ThemeColor         *string        `json:"theme_color" validate:"omitempty,oneof=blue green red purple orange"`
	Logo               *string        `json:"logo"`
	TeacherSignature   *string        `json:"teacher_signature"`
	PrincipalSignature *string        `json:"principal_signature"`
	GradingScale       *grading.Scale `json:"grading_scale"`
}

// Apply merges the patch into s.
func (p SettingsPatch) Apply(s *Settings) {
	if p.SchoolName != nil {
		s.SchoolName = *p.SchoolName
	}
	if p.Address != nil {
		s.Address = *p.Address
	}
	if p.Session != nil {
		s.Session = *p.Session
	}
	if p.ThemeColor != nil {
		s.ThemeColor = *p.ThemeColor
	}
	if p.Logo != nil {
		s.Logo = *p.Logo
	}
	if p.TeacherSignature != nil {
		s.TeacherSignature = *p.TeacherSignature
	}
	if p.PrincipalSignature != nil {
		s.PrincipalSignature = *p.PrincipalSignature
	}
	if p.GradingScale != nil {
		s.GradingScale = (*p.GradingScale).Sorted()
	}
}

// HistoryItem records one generation batch. Students keeps the ingested
// records so the batch can be regenerated without the source file.
type HistoryItem struct {
	ID        uuid.UUID      `gorm:"type:char(36);primaryKey" json:"id"`
	UserID    string         `gorm:"type:varchar(64);not null;index" json:"-"`
	FileName  string         `gorm:"type:varchar(255);not null" json:"file_name"`
	FileCount int            `gorm:"not null" json:"file_count"`
	Students  datatypes.JSON `json:"-"`
	CreatedAt time.Time      `gorm:"index" json:"date"`
}

func (h *HistoryItem) BeforeCreate(tx *gorm.DB) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	return nil
}

// Records decodes the stored student records.
func (h *HistoryItem) Records() ([]StudentRecord, error) {
	if len(h.Students) == 0 {
		return nil, nil
	}
	var records []StudentRecord
	if err := json.Unmarshal(h.Students, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// SetRecords encodes records into the item.
func (h *HistoryItem) SetRecords(records []StudentRecord) error {
	data, err := json.Marshal(records)
	if err != nil {
		return err
	}
	h.Students = datatypes.JSON(data)
	return nil
}

// AuditLog tracks generation, export and deletion events
type AuditLog struct {
	ID           uuid.UUID `gorm:"type:char(36);primaryKey" json:"id"`
	ActorUserID  uuid.UUID `gorm:"type:char(36);index" json:"actor_user_id"`
	Action       string    `gorm:"type:varchar(50);not null" json:"action"`
	ResourceType string    `gorm:"type:varchar(50);not null;index" json:"resource_type"`
	ResourceID   uuid.UUID `gorm:"type:char(36);index" json:"resource_id"`
	Before       JSONB     `gorm:"type:json" json:"before"`
	After        JSONB     `gorm:"type:json" json:"after"`
	Timestamp    time.Time `gorm:"autoCreateTime;index" json:"timestamp"`
	IP           string    `gorm:"type:varchar(45)" json:"ip"`
}

func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// RefreshToken stores refresh tokens for revocation
type RefreshToken struct {
	ID        uuid.UUID `gorm:"type:char(36);primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:char(36);not null;index" json:"user_id"`
	Token     string    `gorm:"type:varchar(500);uniqueIndex;not null" json:"token"`
	ExpiresAt time.Time `gorm:"not null;index" json:"expires_at"`
	Revoked   bool      `gorm:"default:false;index" json:"revoked"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (r *RefreshToken) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
