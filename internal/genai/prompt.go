package genai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/school-system/reportgen/internal/grading"
	"github.com/school-system/reportgen/internal/models"
)

const batchInstructions = `You are an expert teacher preparing student report cards.
You will be given a JSON array of students. Every key other than "Name",
"Father's Name", "Roll No." and "Class" is a subject and its value is the
marks obtained out of 100.

For every student, in the same order as the input, return an object with:
- "studentData": the original student object, unchanged
- "totalMarks": the sum of all subject marks
- "percentage": totalMarks divided by (number of subjects x 100), times 100
- "grade": the overall grade for the percentage, using the grading rules
- "subjects": a minified JSON string of an array like [{"name":"Math","marks":85}]
- "remarks": a unique, one-sentence remark about the student's performance

Respond with a JSON object of the form {"results":[...]} and nothing else.
`

const cardPrompt = `You are an expert in creating student report cards.
You will be given student data as a JSON string.
Generate a well-formatted and professional HTML report card.
Do not include <html> or <body> tags.
Respond with a JSON object {"reportCardHtml": "...", "studentName": "..."}.

Student Data:
%s
`

func batchPrompt(students []models.StudentRecord, scale grading.Scale) (string, error) {
	data, err := json.Marshal(students)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString(batchInstructions)
	sb.WriteString("\nGrading rules (grade: minimum percentage):\n")
	for _, r := range scale.OrDefault().Sorted() {
		fmt.Fprintf(&sb, "- %s: %g\n", r.Grade, r.MinPercentage)
	}
	sb.WriteString("\nStudents:\n")
	sb.Write(data)
	sb.WriteString("\n")
	return sb.String(), nil
}
