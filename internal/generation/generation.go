package generation

import (
	"context"
	"fmt"

	"github.com/school-system/reportgen/internal/grading"
	"github.com/school-system/reportgen/internal/models"
)

// DefaultChunkSize is the number of students sent per generation call.
const DefaultChunkSize = 50

// Generator turns a chunk of student records into results, one per
// student, in input order.
type Generator interface {
	Generate(ctx context.Context, students []models.StudentRecord, scale grading.Scale) ([]models.StudentResult, error)
}

// GenerationError reports a generation call that produced no usable data.
type GenerationError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *GenerationError) Error() string {
	msg := "generation failed"
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *GenerationError) Unwrap() error { return e.Err }
