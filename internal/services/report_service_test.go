package services

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/school-system/reportgen/internal/export"
	"github.com/school-system/reportgen/internal/generation"
	"github.com/school-system/reportgen/internal/grading"
	"github.com/school-system/reportgen/internal/models"
	"github.com/school-system/reportgen/internal/render"
	"github.com/school-system/reportgen/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeneratePinsGradesToUserScale(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	scale := grading.Scale{{Grade: "Fail", MinPercentage: 0}, {Grade: "Pass", MinPercentage: 60}}
	_, err := st.SaveSettings(ctx, "u1", models.SettingsPatch{GradingScale: &scale})
	require.NoError(t, err)

	svc := newReportService(st, fixedGrader{grade: "Z"}, 2)
	res, err := svc.Generate(ctx, "u1", "term1.xlsx", records(3), nil)
	require.NoError(t, err)

	require.Len(t, res.Results, 3)
	for _, r := range res.Results {
		assert.Equal(t, "Pass", r.Grade, r.StudentData.Name)
	}
	assert.Len(t, res.Cards, 3)
	assert.Equal(t, 3, res.Generated)
	assert.Equal(t, 1.0, res.Progress)
	assert.Empty(t, res.FailedChunks)
	require.NotNil(t, res.HistoryID)

	item, err := st.GetHistory(ctx, "u1", *res.HistoryID)
	require.NoError(t, err)
	assert.Equal(t, "term1.xlsx", item.FileName)
	assert.Equal(t, 3, item.FileCount)
	stored, err := item.Records()
	require.NoError(t, err)
	assert.Equal(t, records(3), stored)
}

func TestPinGradesUsesLowestGradeBelowScale(t *testing.T) {
	scale := grading.Scale{{Grade: "Merit", MinPercentage: 70}, {Grade: "Pass", MinPercentage: 40}}
	in := []models.StudentResult{{Percentage: 75, Grade: "A"}, {Percentage: 12, Grade: "A"}}

	out := PinGrades(in, scale)

	assert.Equal(t, "Merit", out[0].Grade)
	assert.Equal(t, "Pass", out[1].Grade)
	assert.Equal(t, "A", in[0].Grade, "input is not modified")
}

func TestPinGradesMatchesDisplayedPercentage(t *testing.T) {
	in := []models.StudentResult{{Percentage: 89.996, Grade: "A"}, {Percentage: 79.996, Grade: "B"}}

	out := PinGrades(in, grading.DefaultScale)

	assert.Equal(t, 90.0, out[0].Percentage)
	assert.Equal(t, "90.00%", render.FormatPercentage(out[0].Percentage))
	assert.Equal(t, "A+", out[0].Grade)
	assert.Equal(t, "80.00%", render.FormatPercentage(out[1].Percentage))
	assert.Equal(t, "A", out[1].Grade)
}

func TestGenerateAllChunksFailed(t *testing.T) {
	st := store.NewMemoryStore()
	svc := newReportService(st, fixedGrader{fail: true}, 2)

	res, err := svc.Generate(context.Background(), "u1", "term1.xlsx", records(5), nil)
	require.NoError(t, err)

	assert.Equal(t, 0, res.Generated)
	assert.Equal(t, 5, res.Total)
	assert.Equal(t, 1.0, res.Progress)
	require.Len(t, res.FailedChunks, 3)
	assert.Equal(t, 4, res.FailedChunks[2].Start)
	assert.Equal(t, 1, res.FailedChunks[2].Size)
	assert.Contains(t, res.FailedChunks[0].Error, "quota exceeded")
	assert.Nil(t, res.HistoryID)

	items, err := st.ListHistory(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestGenerateSurvivesStoreFailure(t *testing.T) {
	svc := newReportService(failingStore{}, generation.Local{}, 10)

	res, err := svc.Generate(context.Background(), "u1", "term1.xlsx", records(2), nil)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Generated)
	assert.Len(t, res.Cards, 2)
	assert.Nil(t, res.HistoryID)
	assert.Len(t, res.Warnings, 2)
}

func TestGenerateCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	svc := newReportService(store.NewMemoryStore(), generation.Local{}, 1)

	res, err := svc.Generate(ctx, "u1", "term1.xlsx", records(3), nil)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)
	assert.Equal(t, 0, res.Generated)
}

func TestExportWritesParts(t *testing.T) {
	sink := &export.MemorySink{}
	svc := newReportService(store.NewMemoryStore(), generation.Local{}, 10)

	out, err := svc.Export(context.Background(), "u1", "Term 1.xlsx", records(5), sink)
	require.NoError(t, err)

	require.Len(t, out.Files, 3)
	require.Len(t, sink.Files, 3)
	assert.Equal(t, "Term_1_report_cards_part_1.pdf", sink.Files[0].Name)
	assert.Equal(t, "Term_1_report_cards_part_3.pdf", sink.Files[2].Name)
	assert.True(t, strings.HasPrefix(string(sink.Files[0].Data), "%PDF"))
	assert.NotNil(t, out.Batch.HistoryID)
}

func TestExportNothingGenerated(t *testing.T) {
	svc := newReportService(store.NewMemoryStore(), fixedGrader{fail: true}, 10)

	_, err := svc.Export(context.Background(), "u1", "t.xlsx", records(2), &export.MemorySink{})
	assert.ErrorIs(t, err, ErrNoResults)
}

func TestExportHistory(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	svc := newReportService(st, generation.Local{}, 10)

	res, err := svc.Generate(ctx, "u1", "term2.xlsx", records(1), nil)
	require.NoError(t, err)

	sink := &export.MemorySink{}
	out, err := svc.ExportHistory(ctx, "u1", *res.HistoryID, sink)
	require.NoError(t, err)
	require.Len(t, out.Files, 1)
	assert.Equal(t, "term2_report_cards.pdf", sink.Files[0].Name)
	assert.Equal(t, *res.HistoryID, *out.Batch.HistoryID)

	_, err = svc.ExportHistory(ctx, "u2", *res.HistoryID, sink)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = svc.ExportHistory(ctx, "u1", uuid.New(), sink)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSingleCardWithoutModel(t *testing.T) {
	svc := newReportService(store.NewMemoryStore(), generation.Local{}, 10)

	card, err := svc.SingleCard(context.Background(), "u1", records(1)[0])
	require.NoError(t, err)
	assert.Equal(t, "Student 1", card.StudentName)
	assert.Contains(t, card.ReportCardHTML, "Student 1")
	assert.Contains(t, card.ReportCardHTML, "Springfield High")
}

func TestRenderCard(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	name := "Riverdale High"
	_, err := st.SaveSettings(ctx, "u1", models.SettingsPatch{SchoolName: &name})
	require.NoError(t, err)
	svc := newReportService(st, generation.Local{}, 10)

	result, err := generation.Compute(records(1)[0], grading.DefaultScale)
	require.NoError(t, err)
	card, err := svc.RenderCard(ctx, "u1", result)
	require.NoError(t, err)
	assert.Equal(t, "Student 1", card.StudentName)
	assert.Contains(t, card.HTML, "Riverdale High")
}

func TestParseRejectsWrongType(t *testing.T) {
	svc := newReportService(store.NewMemoryStore(), generation.Local{}, 10)
	_, err := svc.Parse("marks.csv", "text/csv", strings.NewReader("a,b"))
	assert.Error(t, err)
}
