package render

const cardTemplate = `<div class="report-card" style="width: 210mm; min-height: 297mm; margin: auto; padding: 32px; box-sizing: border-box; font-family: Arial, Helvetica, sans-serif; background: #ffffff; color: #111827;">
<div style="text-align: center; border-bottom: 2px solid #9ca3af; padding-bottom: 16px;">
{{- if .Logo}}
<img src="{{.Logo}}" alt="School logo" style="height: 72px; margin-bottom: 8px;">
{{- end}}
<h1 data-field="school-name" style="font-size: 32px; font-weight: bold; margin: 0; color: {{.Theme.Primary}};">{{.SchoolName}}</h1>
{{- if .Address}}
<p data-field="address" style="margin: 4px 0; color: #4b5563;">{{.Address}}</p>
{{- end}}
<p style="font-size: 18px; margin: 4px 0;">Final Report Card - Session <span data-field="session">{{.Session}}</span></p>
</div>
<table style="width: 100%; margin-top: 24px; font-size: 16px;">
<tr>
<td><strong>Student Name:</strong> <span data-field="name">{{.StudentName}}</span></td>
<td><strong>Father's Name:</strong> <span data-field="fathers-name">{{.FathersName}}</span></td>
</tr>
<tr>
<td><strong>Class:</strong> <span data-field="class">{{.Class}}</span></td>
<td><strong>Roll No:</strong> <span data-field="roll-no">{{.RollNo}}</span></td>
</tr>
</table>
<table style="width: 100%; margin-top: 32px; border-collapse: collapse; border: 1px solid #e5e7eb;">
<thead>
<tr style="background: {{.Theme.Light}}; color: {{.Theme.Dark}}; font-weight: 600;">
<th style="padding: 8px; text-align: left;">Subject</th>
<th style="padding: 8px; text-align: center;">Total Marks</th>
<th style="padding: 8px; text-align: center;">Marks Obtained</th>
</tr>
</thead>
<tbody>
{{- range .Subjects}}
<tr style="border-bottom: 1px solid #e5e7eb;">
<td data-field="subject-name" style="padding: 8px;">{{.Name}}</td>
<td style="padding: 8px; text-align: center;">{{.Max}}</td>
<td data-field="subject-marks" style="padding: 8px; text-align: center;">{{.Marks}}</td>
</tr>
{{- end}}
</tbody>
</table>
<table style="width: 100%; margin-top: 32px; text-align: center; border-spacing: 16px 0;">
<tr>
<td style="padding: 16px; background: #f3f4f6; border-radius: 8px;">
<p style="font-size: 14px; font-weight: 600; color: #4b5563; margin: 0;">Total Marks</p>
<p data-field="total" style="font-size: 24px; font-weight: bold; margin: 4px 0 0;">{{.Total}}</p>
</td>
<td style="padding: 16px; background: #f3f4f6; border-radius: 8px;">
<p style="font-size: 14px; font-weight: 600; color: #4b5563; margin: 0;">Percentage</p>
<p data-field="percentage" style="font-size: 24px; font-weight: bold; margin: 4px 0 0;">{{.Percentage}}</p>
</td>
<td style="padding: 16px; background: {{.Theme.Light}}; border-radius: 8px;">
<p style="font-size: 14px; font-weight: 600; color: {{.Theme.Primary}}; margin: 0;">Final Grade</p>
<p data-field="grade" style="font-size: 24px; font-weight: bold; margin: 4px 0 0; color: {{.Theme.Dark}};">{{.Grade}}</p>
</td>
</tr>
</table>
<div style="margin-top: 48px; font-size: 14px; color: #374151;">
{{- if .Remarks}}
<p><strong>Remarks:</strong> <span data-field="remarks">{{.Remarks}}</span></p>
{{- else}}
<p><strong>Remarks:</strong> Overall performance is <strong>{{.Summary}}</strong>. Keep up the good work.</p>
{{- end}}
</div>
<table style="width: 100%; margin-top: 96px; text-align: center;">
<tr>
<td>
{{- if .TeacherSignature}}
<img src="{{.TeacherSignature}}" alt="Class teacher signature" style="height: 48px;">
{{- end}}
<div style="border-top: 2px solid #d1d5db; width: 192px; margin: auto; padding-top: 8px;">Class Teacher's Signature</div>
</td>
<td>
{{- if .PrincipalSignature}}
<img src="{{.PrincipalSignature}}" alt="Principal signature" style="height: 48px;">
{{- end}}
<div style="border-top: 2px solid #d1d5db; width: 192px; margin: auto; padding-top: 8px;">Principal's Signature</div>
</td>
</tr>
</table>
</div>`

const documentHead = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Report Card</title>
<style>html, body { margin: 0; padding: 0; background: #ffffff; } @page { size: A4; margin: 0; }</style>
</head>
<body>
`

const documentTail = `
</body>
</html>
`
