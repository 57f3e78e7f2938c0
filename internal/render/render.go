package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/school-system/reportgen/internal/logging"
	"github.com/school-system/reportgen/internal/models"
	"go.uber.org/zap"
)

const notAvailable = "N/A"

type palette struct {
	Primary template.CSS
	Light   template.CSS
	Dark    template.CSS
}

var palettes = map[string]palette{
	"blue":   {Primary: "#1d4ed8", Light: "#dbeafe", Dark: "#1e40af"},
	"green":  {Primary: "#15803d", Light: "#dcfce7", Dark: "#166534"},
	"red":    {Primary: "#b91c1c", Light: "#fee2e2", Dark: "#991b1b"},
	"purple": {Primary: "#7e22ce", Light: "#f3e8ff", Dark: "#6b21a8"},
	"orange": {Primary: "#c2410c", Light: "#ffedd5", Dark: "#9a3412"},
}

type subjectRow struct {
	Name  string
	Max   int
	Marks string
}

type cardView struct {
	SchoolName         string
	Address            string
	Session            string
	Theme              palette
	Logo               template.URL
	TeacherSignature   template.URL
	PrincipalSignature template.URL

	StudentName string
	FathersName string
	Class       string
	RollNo      string

	Subjects   []subjectRow
	Total      string
	Percentage string
	Grade      string
	Remarks    string
	Summary    string
}

// Renderer turns one result into a report card fragment. It is safe for
// concurrent use.
type Renderer struct {
	tmpl   *template.Template
	logger *zap.Logger
}

func NewRenderer(logger *zap.Logger) *Renderer {
	return &Renderer{
		tmpl:   template.Must(template.New("card").Parse(cardTemplate)),
		logger: logging.OrNop(logger),
	}
}

// Render produces the card fragment. A nil settings uses the defaults.
func (r *Renderer) Render(result models.StudentResult, settings *models.Settings) (string, error) {
	if settings == nil {
		s := models.DefaultSettings("")
		settings = &s
	}

	subjects := r.subjects(result)
	rows := make([]subjectRow, 0, len(subjects))
	for _, s := range subjects {
		rows = append(rows, subjectRow{Name: s.Name, Max: 100, Marks: formatNumber(s.Marks)})
	}

	theme, ok := palettes[settings.ThemeColor]
	if !ok {
		theme = palettes["blue"]
	}

	view := cardView{
		SchoolName:         settings.SchoolName,
		Address:            settings.Address,
		Session:            settings.Session,
		Theme:              theme,
		Logo:               imageURL(settings.Logo),
		TeacherSignature:   imageURL(settings.TeacherSignature),
		PrincipalSignature: imageURL(settings.PrincipalSignature),

		StudentName: orNA(result.StudentData.Name),
		FathersName: orNA(result.StudentData.FathersName),
		Class:       orNA(result.StudentData.Class),
		RollNo:      orNA(result.StudentData.RollNo),

		Subjects:   rows,
		Total:      fmt.Sprintf("%s / %d", formatNumber(result.TotalMarks), len(subjects)*100),
		Percentage: FormatPercentage(result.Percentage),
		Grade:      result.Grade,
		Remarks:    result.Remarks,
		Summary:    summary(result.Grade),
	}

	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, view); err != nil {
		return "", fmt.Errorf("execute card template: %w", err)
	}
	return buf.String(), nil
}

// Card renders a result into its named fragment.
func (r *Renderer) Card(result models.StudentResult, settings *models.Settings) (models.RenderedReportCard, error) {
	html, err := r.Render(result, settings)
	if err != nil {
		return models.RenderedReportCard{}, err
	}
	return models.RenderedReportCard{StudentName: result.StudentData.DisplayName(), HTML: html}, nil
}

// Cards renders every result in order.
func (r *Renderer) Cards(results []models.StudentResult, settings *models.Settings) ([]models.RenderedReportCard, error) {
	cards := make([]models.RenderedReportCard, 0, len(results))
	for _, res := range results {
		card, err := r.Card(res, settings)
		if err != nil {
			return nil, err
		}
		cards = append(cards, card)
	}
	return cards, nil
}

func (r *Renderer) subjects(result models.StudentResult) []models.SubjectMark {
	if strings.TrimSpace(result.Subjects) == "" {
		return nil
	}
	var subjects []models.SubjectMark
	if err := json.Unmarshal([]byte(result.Subjects), &subjects); err != nil {
		r.logger.Warn("Ignoring malformed subjects",
			zap.String("student", result.StudentData.DisplayName()),
			zap.Error(err))
		return nil
	}
	return subjects
}

// FormatPercentage renders a percentage with exactly two decimals,
// rounding half away from zero (92.345 is shown as 92.35%).
func FormatPercentage(p float64) string {
	return strconv.FormatFloat(math.Round(p*100)/100, 'f', 2, 64) + "%"
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return notAvailable
	}
	return s
}

func imageURL(s string) template.URL {
	if strings.HasPrefix(s, "data:image/") {
		return template.URL(s)
	}
	return ""
}

func summary(grade string) string {
	switch grade {
	case "A+", "A":
		return "Excellent"
	case "B":
		return "Good"
	default:
		return "Satisfactory"
	}
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// FileName is the download name of a single card, e.g.
// Jane_Doe_report_card.html.
func FileName(studentName string) string {
	name := unsafeFileChars.ReplaceAllString(strings.TrimSpace(studentName), "_")
	name = strings.Trim(name, "_")
	if name == "" {
		name = "student"
	}
	return name + "_report_card.html"
}

// Document wraps a fragment in a minimal standalone A4 page.
func Document(fragment string) string {
	var sb strings.Builder
	sb.WriteString(documentHead)
	sb.WriteString(fragment)
	sb.WriteString(documentTail)
	return sb.String()
}
