package grading

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/school-system/reportgen/internal/validation"
)

var (
	ErrEmptyGrade     = errors.New("grade label is required")
	ErrThresholdRange = errors.New("minimum percentage must be between 0 and 100")
	ErrDuplicateGrade = errors.New("duplicate grade label")
)

// Rule maps a grade label to the minimum percentage needed to earn it.
type Rule struct {
	Grade         string  `json:"grade" bson:"grade" validate:"notblank"`
	MinPercentage float64 `json:"minPercentage" bson:"min_percentage" validate:"min=0,max=100"`
}

// Scale is an ordered set of rules. It is always evaluated highest
// threshold first regardless of the order it was stored in.
type Scale []Rule

// DefaultScale applies when a user has not configured one.
var DefaultScale = Scale{
	{Grade: "A+", MinPercentage: 90},
	{Grade: "A", MinPercentage: 80},
	{Grade: "B", MinPercentage: 70},
	{Grade: "C", MinPercentage: 60},
	{Grade: "D", MinPercentage: 50},
	{Grade: "E", MinPercentage: 40},
	{Grade: "F", MinPercentage: 0},
}

// Sorted returns a copy ordered by descending threshold.
func (s Scale) Sorted() Scale {
	sorted := make(Scale, len(s))
	copy(sorted, s)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].MinPercentage > sorted[j].MinPercentage
	})
	return sorted
}

// OrDefault returns s, or DefaultScale when s has no rules.
func (s Scale) OrDefault() Scale {
	if len(s) == 0 {
		return DefaultScale
	}
	return s
}

// Grade returns the first rule, highest threshold first, whose threshold
// is met by percentage. A percentage below every threshold earns the
// lowest-defined grade.
func (s Scale) Grade(percentage float64) string {
	sorted := s.OrDefault().Sorted()
	for _, rule := range sorted {
		if rule.MinPercentage <= percentage {
			return rule.Grade
		}
	}
	return sorted[len(sorted)-1].Grade
}

// Validate checks the scale as entered in the settings editor.
func (s Scale) Validate() error {
	seen := make(map[string]bool, len(s))
	for i, rule := range s {
		label := strings.TrimSpace(rule.Grade)
		if err := validation.Struct(rule); err != nil {
			return fmt.Errorf("rule %d (%s): %w", i+1, label, ruleError(err))
		}
		if seen[label] {
			return fmt.Errorf("rule %d (%s): %w", i+1, label, ErrDuplicateGrade)
		}
		seen[label] = true
	}
	return nil
}

func ruleError(err error) error {
	field, _, ok := validation.FirstField(err)
	if !ok {
		return err
	}
	switch field {
	case "grade":
		return ErrEmptyGrade
	case "minPercentage":
		return ErrThresholdRange
	}
	return err
}

// Percentage computes obtained over maximum as a percentage, where every
// subject is out of 100.
func Percentage(obtained float64, subjects int) float64 {
	if subjects <= 0 {
		return 0
	}
	return obtained / float64(subjects*100) * 100
}

// Remark is the deterministic one-line remark used when no model wrote one.
func Remark(percentage float64) string {
	switch {
	case percentage >= 90:
		return "Outstanding performance. Keep up the excellent work."
	case percentage >= 75:
		return "Excellent performance. Keep up the good work."
	case percentage >= 60:
		return "Good performance with room to grow."
	case percentage >= 40:
		return "Satisfactory performance. More effort is needed."
	default:
		return "Needs significant improvement. Please seek extra support."
	}
}
