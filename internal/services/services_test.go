package services

import (
	"context"
	"errors"
	"fmt"
	"image"
	"path/filepath"
	"testing"
	"time"

	"github.com/school-system/reportgen/internal/config"
	"github.com/school-system/reportgen/internal/export"
	"github.com/school-system/reportgen/internal/generation"
	"github.com/school-system/reportgen/internal/grading"
	"github.com/school-system/reportgen/internal/mail"
	"github.com/school-system/reportgen/internal/models"
	"github.com/school-system/reportgen/internal/render"
	"github.com/school-system/reportgen/internal/store"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type blankRasterizer struct{}

func (blankRasterizer) Rasterize(ctx context.Context, html string) (image.Image, error) {
	return image.NewGray(image.Rect(0, 0, 10, 14)), nil
}

// fixedGrader returns the local results with every grade replaced, like a
// model that ignores the scale.
type fixedGrader struct {
	grade string
	fail  bool
}

func (g fixedGrader) Generate(ctx context.Context, students []models.StudentRecord, scale grading.Scale) ([]models.StudentResult, error) {
	if g.fail {
		return nil, errors.New("quota exceeded")
	}
	results, err := generation.Local{}.Generate(ctx, students, scale)
	for i := range results {
		results[i].Grade = g.grade
	}
	return results, err
}

type recordingSender struct {
	drafts      []mail.Draft
	attachments [][]mail.Attachment
	err         error
}

func (r *recordingSender) Send(ctx context.Context, d mail.Draft, attachments ...mail.Attachment) error {
	if r.err != nil {
		return r.err
	}
	r.drafts = append(r.drafts, d)
	r.attachments = append(r.attachments, attachments)
	return nil
}

// failingStore fails every call.
type failingStore struct{ store.Store }

func (failingStore) GetSettings(ctx context.Context, userID string) (*models.Settings, error) {
	return nil, &store.PersistenceError{Op: "get settings", Err: errors.New("connection refused")}
}

func (failingStore) AddHistory(ctx context.Context, item *models.HistoryItem) error {
	return &store.PersistenceError{Op: "add history", Err: errors.New("connection refused")}
}

func records(n int) []models.StudentRecord {
	out := make([]models.StudentRecord, n)
	for i := range out {
		out[i] = models.StudentRecord{
			Name:   fmt.Sprintf("Student %d", i+1),
			RollNo: fmt.Sprint(i + 1),
			Class:  "10",
			Marks: []models.SubjectMark{
				{Name: "Maths", Marks: float64(50 + i)},
				{Name: "Physics", Marks: 80},
			},
		}
	}
	return out
}

func newReportService(st store.Store, gen generation.Generator, chunk int) *ReportService {
	return NewReportService(
		st,
		generation.NewDispatcher(gen, generation.WithChunkSize(chunk)),
		render.NewRenderer(nil),
		export.NewExporter(blankRasterizer{}, 2, nil),
		nil,
		nil,
	)
}

func testConfig() *config.Config {
	return &config.Config{
		JWT: config.JWTConfig{
			Secret:        "test-secret",
			AccessExpiry:  15 * time.Minute,
			RefreshExpiry: time.Hour,
		},
		Argon2: config.Argon2Config{
			Memory:      8 * 1024,
			Iterations:  1,
			Parallelism: 1,
			SaltLength:  16,
			KeyLength:   32,
		},
	}
}

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "services.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.RefreshToken{}, &models.AuditLog{}))
	return db
}
