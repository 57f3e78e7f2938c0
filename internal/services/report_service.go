package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/google/uuid"
	"github.com/school-system/reportgen/internal/export"
	"github.com/school-system/reportgen/internal/generation"
	"github.com/school-system/reportgen/internal/genai"
	"github.com/school-system/reportgen/internal/grading"
	"github.com/school-system/reportgen/internal/ingest"
	"github.com/school-system/reportgen/internal/logging"
	"github.com/school-system/reportgen/internal/models"
	"github.com/school-system/reportgen/internal/render"
	"github.com/school-system/reportgen/internal/store"
	"go.uber.org/zap"
)

var ErrNoResults = errors.New("no report cards were generated")

// CardGenerator produces a complete single card from a model.
type CardGenerator interface {
	GenerateCard(ctx context.Context, student models.StudentRecord) (*genai.CardOutput, error)
}

// FailedChunk is a chunk of students the generator skipped.
type FailedChunk struct {
	Start int    `json:"start"`
	Size  int    `json:"size"`
	Error string `json:"error"`
}

// BatchResult is everything one generation run produced.
type BatchResult struct {
	HistoryID    *uuid.UUID                  `json:"history_id,omitempty"`
	FileName     string                      `json:"file_name"`
	Total        int                         `json:"total"`
	Generated    int                         `json:"generated"`
	Progress     float64                     `json:"progress"`
	FailedChunks []FailedChunk               `json:"failed_chunks"`
	Results      []models.StudentResult      `json:"results"`
	Cards        []models.RenderedReportCard `json:"cards"`
	Warnings     []string                    `json:"warnings,omitempty"`
}

// ExportResult describes the PDF files written for a batch.
type ExportResult struct {
	Batch *BatchResult  `json:"batch"`
	Files []export.File `json:"files"`
}

type ReportService struct {
	store      store.Store
	dispatcher *generation.Dispatcher
	renderer   *render.Renderer
	exporter   *export.Exporter
	cards      CardGenerator
	logger     *zap.Logger
}

func NewReportService(st store.Store, d *generation.Dispatcher, r *render.Renderer, e *export.Exporter, cards CardGenerator, logger *zap.Logger) *ReportService {
	return &ReportService{
		store:      st,
		dispatcher: d,
		renderer:   r,
		exporter:   e,
		cards:      cards,
		logger:     logging.OrNop(logger),
	}
}

// Parse reads an uploaded workbook.
func (s *ReportService) Parse(fileName, contentType string, r io.Reader) ([]models.StudentRecord, error) {
	if err := ingest.ValidateUpload(fileName, contentType); err != nil {
		return nil, err
	}
	return ingest.Parse(r)
}

// settings loads the user's template, falling back to the defaults when
// the store is unavailable.
func (s *ReportService) settings(ctx context.Context, userID string) (*models.Settings, []string) {
	settings, err := s.store.GetSettings(ctx, userID)
	if err != nil {
		s.logger.Warn("Using default settings", zap.String("user_id", userID), zap.Error(err))
		d := models.DefaultSettings(userID)
		return &d, []string{"Settings could not be loaded; defaults were used"}
	}
	return settings, nil
}

// Generate runs the batch, re-grades every result against the user's
// scale, renders the cards and records the batch in history.
func (s *ReportService) Generate(ctx context.Context, userID, fileName string, records []models.StudentRecord, onProgress func(float64)) (*BatchResult, error) {
	res, err := s.run(ctx, userID, fileName, records, onProgress)
	if err != nil {
		return res, err
	}

	if res.Generated > 0 {
		item := &models.HistoryItem{UserID: userID, FileName: fileName, FileCount: res.Generated}
		if err := item.SetRecords(records); err != nil {
			return res, fmt.Errorf("encode history records: %w", err)
		}
		if err := s.store.AddHistory(ctx, item); err != nil {
			s.logger.Error("Failed to save history", zap.String("user_id", userID), zap.Error(err))
			res.Warnings = append(res.Warnings, "Report cards were generated but could not be saved to history")
		} else {
			res.HistoryID = &item.ID
		}
	}

	return res, nil
}

func (s *ReportService) run(ctx context.Context, userID, fileName string, records []models.StudentRecord, onProgress func(float64)) (*BatchResult, error) {
	settings, warnings := s.settings(ctx, userID)
	scale := settings.GradingScale.OrDefault().Sorted()

	batch, err := s.dispatcher.Run(ctx, records, scale, onProgress)
	res := &BatchResult{
		FileName:     fileName,
		Total:        len(records),
		FailedChunks: make([]FailedChunk, 0),
		Warnings:     warnings,
	}
	if batch != nil {
		res.Progress = batch.Progress
		for _, c := range batch.Failed() {
			res.FailedChunks = append(res.FailedChunks, FailedChunk{Start: c.Start, Size: c.Size, Error: c.Err.Error()})
		}
		res.Results = PinGrades(batch.Results, scale)
		res.Generated = len(res.Results)
	}
	if err != nil {
		return res, err
	}

	cards, err := s.renderer.Cards(res.Results, settings)
	if err != nil {
		return res, &export.RenderError{File: fileName, Card: -1, Err: err}
	}
	res.Cards = cards

	s.logger.Info("Batch generated",
		zap.String("user_id", userID),
		zap.String("file", fileName),
		zap.Int("total", res.Total),
		zap.Int("generated", res.Generated),
		zap.Int("failed_chunks", len(res.FailedChunks)))
	return res, nil
}

// PinGrades rounds each percentage to the two places a card shows and
// replaces the grade with the one the scale assigns to that value, so the
// grade never depends on the model's judgement.
func PinGrades(results []models.StudentResult, scale grading.Scale) []models.StudentResult {
	out := make([]models.StudentResult, len(results))
	for i, r := range results {
		r.Percentage = math.Round(r.Percentage*100) / 100
		r.Grade = scale.Grade(r.Percentage)
		out[i] = r
	}
	return out
}

// Export generates the batch and writes its PDFs into sink.
func (s *ReportService) Export(ctx context.Context, userID, fileName string, records []models.StudentRecord, sink export.Sink) (*ExportResult, error) {
	res, err := s.Generate(ctx, userID, fileName, records, nil)
	if err != nil {
		return &ExportResult{Batch: res}, err
	}
	return s.exportBatch(ctx, res, sink)
}

// ExportHistory regenerates a stored batch and writes its PDFs into sink.
func (s *ReportService) ExportHistory(ctx context.Context, userID string, id uuid.UUID, sink export.Sink) (*ExportResult, error) {
	item, err := s.store.GetHistory(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	records, err := item.Records()
	if err != nil {
		return nil, &store.PersistenceError{Op: "decode history records", Err: err}
	}

	res, err := s.run(ctx, userID, item.FileName, records, nil)
	if err != nil {
		return &ExportResult{Batch: res}, err
	}
	res.HistoryID = &item.ID
	return s.exportBatch(ctx, res, sink)
}

func (s *ReportService) exportBatch(ctx context.Context, res *BatchResult, sink export.Sink) (*ExportResult, error) {
	if len(res.Cards) == 0 {
		return &ExportResult{Batch: res}, ErrNoResults
	}
	files, err := s.exporter.Export(ctx, export.BaseName(res.FileName), res.Cards, sink)
	return &ExportResult{Batch: res, Files: files}, err
}

// RenderCard renders one result with the user's template for download.
func (s *ReportService) RenderCard(ctx context.Context, userID string, result models.StudentResult) (*models.RenderedReportCard, error) {
	settings, _ := s.settings(ctx, userID)
	card, err := s.renderer.Card(result, settings)
	if err != nil {
		return nil, &export.RenderError{File: render.FileName(result.StudentData.DisplayName()), Card: -1, Err: err}
	}
	return &card, nil
}

// SingleCard produces one card for one student. Without a model it
// computes the result locally and renders it with the user's template.
func (s *ReportService) SingleCard(ctx context.Context, userID string, record models.StudentRecord) (*genai.CardOutput, error) {
	if s.cards != nil {
		return s.cards.GenerateCard(ctx, record)
	}

	settings, _ := s.settings(ctx, userID)
	result, err := generation.Compute(record, settings.GradingScale.OrDefault())
	if err != nil {
		return nil, &generation.GenerationError{Op: "compute card", Err: err}
	}
	html, err := s.renderer.Render(result, settings)
	if err != nil {
		return nil, &export.RenderError{File: render.FileName(record.DisplayName()), Card: -1, Err: err}
	}
	return &genai.CardOutput{ReportCardHTML: html, StudentName: record.DisplayName()}, nil
}
