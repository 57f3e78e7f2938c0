package generation

import (
	"context"
	"encoding/json"
	"math"

	"github.com/school-system/reportgen/internal/grading"
	"github.com/school-system/reportgen/internal/models"
)

// Local computes results without a model: totals and percentage from the
// marks, grade from the scale, and a canned remark. It is used when no AI
// key is configured.
type Local struct{}

func (Local) Generate(ctx context.Context, students []models.StudentRecord, scale grading.Scale) ([]models.StudentResult, error) {
	results := make([]models.StudentResult, 0, len(students))
	for _, s := range students {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r, err := Compute(s, scale)
		if err != nil {
			return nil, &GenerationError{Op: "local generate", Err: err}
		}
		results = append(results, r)
	}
	return results, nil
}

// Compute derives one result from a record.
func Compute(s models.StudentRecord, scale grading.Scale) (models.StudentResult, error) {
	subjects := s.Marks
	if subjects == nil {
		subjects = []models.SubjectMark{}
	}
	encoded, err := json.Marshal(subjects)
	if err != nil {
		return models.StudentResult{}, err
	}

	total := s.TotalMarks()
	percentage := round2(grading.Percentage(total, len(subjects)))
	return models.StudentResult{
		StudentData: s,
		TotalMarks:  total,
		Percentage:  percentage,
		Grade:       scale.Grade(percentage),
		Subjects:    string(encoded),
		Remarks:     grading.Remark(percentage),
	}, nil
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
