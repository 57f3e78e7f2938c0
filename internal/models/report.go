package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// Identifier columns of the marks sheet. Every other column is a subject.
const (
	KeyName        = "Name"
	KeyFathersName = "Father's Name"
	KeyRollNo      = "Roll No."
	KeyClass       = "Class"
)

// IsIdentifierKey reports whether key is one of the fixed identifier columns.
func IsIdentifierKey(key string) bool {
	switch key {
	case KeyName, KeyFathersName, KeyRollNo, KeyClass:
		return true
	}
	return false
}

// SubjectMark is one subject column of a student row.
type SubjectMark struct {
	Name  string  `json:"name"`
	Marks float64 `json:"marks"`
}

// StudentRecord is one row of the uploaded sheet: the fixed identifier
// fields plus an open set of subject marks in column order. Non-numeric
// values in subject columns are kept in Extra so they pass through to the
// model untouched.
//
// On the wire a record is a flat JSON object keyed by column header.
type StudentRecord struct {
	Name        string
	FathersName string
	RollNo      string
	Class       string
	Marks       []SubjectMark
	Extra       map[string]string
}

// DisplayName is the student's name, or a placeholder for unnamed rows.
func (r StudentRecord) DisplayName() string {
	if r.Name == "" {
		return "Unknown Student"
	}
	return r.Name
}

// TotalMarks sums every subject mark.
func (r StudentRecord) TotalMarks() float64 {
	var total float64
	for _, m := range r.Marks {
		total += m.Marks
	}
	return total
}

func (r StudentRecord) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	field := func(key string, value interface{}) error {
		k, err := json.Marshal(key)
		if err != nil {
			return err
		}
		v, err := json.Marshal(value)
		if err != nil {
			return err
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
		return nil
	}

	for _, id := range []struct{ key, value string }{
		{KeyName, r.Name},
		{KeyFathersName, r.FathersName},
		{KeyRollNo, r.RollNo},
		{KeyClass, r.Class},
	} {
		if id.value == "" {
			continue
		}
		if err := field(id.key, id.value); err != nil {
			return nil, err
		}
	}
	for _, m := range r.Marks {
		if err := field(m.Name, m.Marks); err != nil {
			return nil, err
		}
	}
	extraKeys := make([]string, 0, len(r.Extra))
	for k := range r.Extra {
		extraKeys = append(extraKeys, k)
	}
	sort.Strings(extraKeys)
	for _, k := range extraKeys {
		if err := field(k, r.Extra[k]); err != nil {
			return nil, err
		}
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (r *StudentRecord) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("student record: expected object, got %v", tok)
	}

	*r = StudentRecord{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := keyTok.(string)

		var raw interface{}
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("student record field %q: %w", key, err)
		}
		r.Set(key, raw)
	}
	_, err = dec.Token()
	return err
}

// Set assigns one column value, stringifying identifiers and splitting
// subject columns into marks and pass-through extras.
func (r *StudentRecord) Set(key string, value interface{}) {
	if value == nil {
		return
	}
	if IsIdentifierKey(key) {
		text := stringify(value)
		switch key {
		case KeyName:
			r.Name = text
		case KeyFathersName:
			r.FathersName = text
		case KeyRollNo:
			r.RollNo = text
		case KeyClass:
			r.Class = text
		}
		return
	}

	if marks, ok := number(value); ok {
		r.Marks = append(r.Marks, SubjectMark{Name: key, Marks: marks})
		return
	}
	if r.Extra == nil {
		r.Extra = make(map[string]string)
	}
	r.Extra[key] = stringify(value)
}

func number(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	}
	return 0, false
}

func stringify(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case bool:
		return strconv.FormatBool(v)
	}
	return fmt.Sprint(value)
}

// StudentResult is the computed outcome for one student. Subjects holds a
// JSON array of SubjectMark as returned by the model.
type StudentResult struct {
	StudentData StudentRecord `json:"studentData"`
	TotalMarks  float64       `json:"totalMarks"`
	Percentage  float64       `json:"percentage"`
	Grade       string        `json:"grade"`
	Subjects    string        `json:"subjects"`
	Remarks     string        `json:"remarks"`
}

// RenderedReportCard is a rendered HTML fragment for one student.
type RenderedReportCard struct {
	StudentName string `json:"student_name"`
	HTML        string `json:"html"`
}
