package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/school-system/reportgen/internal/export"
	"github.com/school-system/reportgen/internal/logging"
	"github.com/school-system/reportgen/internal/mail"
	"github.com/school-system/reportgen/internal/models"
	"github.com/school-system/reportgen/internal/store"
	"go.uber.org/zap"
)

type HistoryService struct {
	store   store.Store
	reports *ReportService
	sender  mail.Sender
	logger  *zap.Logger
}

func NewHistoryService(st store.Store, reports *ReportService, sender mail.Sender, logger *zap.Logger) *HistoryService {
	return &HistoryService{store: st, reports: reports, sender: sender, logger: logging.OrNop(logger)}
}

func (s *HistoryService) List(ctx context.Context, userID string) ([]models.HistoryItem, error) {
	return s.store.ListHistory(ctx, userID)
}

func (s *HistoryService) Get(ctx context.Context, userID string, id uuid.UUID) (*models.HistoryItem, error) {
	return s.store.GetHistory(ctx, userID, id)
}

func (s *HistoryService) Delete(ctx context.Context, userID string, id uuid.UUID) error {
	return s.store.DeleteHistory(ctx, userID, id)
}

func (s *HistoryService) Clear(ctx context.Context, userID string) (int64, error) {
	return s.store.ClearHistory(ctx, userID)
}

// Mailto builds the prefilled mail link for a stored batch.
func (s *HistoryService) Mailto(ctx context.Context, userID string, id uuid.UUID, to string) (mail.Draft, error) {
	item, err := s.store.GetHistory(ctx, userID, id)
	if err != nil {
		return mail.Draft{}, err
	}
	return mail.HistoryDraft(to, *item)
}

// Email sends the batch notice for a stored batch. With attach set the
// batch is regenerated and its PDFs go out as attachments.
func (s *HistoryService) Email(ctx context.Context, userID string, id uuid.UUID, to string, attach bool) (*mail.Draft, error) {
	item, err := s.store.GetHistory(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	draft, err := mail.HistoryDraft(to, *item)
	if err != nil {
		return nil, err
	}

	var attachments []mail.Attachment
	if attach {
		sink := &export.MemorySink{}
		if _, err := s.reports.ExportHistory(ctx, userID, id, sink); err != nil {
			return nil, err
		}
		for _, f := range sink.Files {
			attachments = append(attachments, mail.Attachment{
				Filename:    f.Name,
				ContentType: "application/pdf",
				Data:        f.Data,
			})
		}
	}

	if err := s.sender.Send(ctx, draft, attachments...); err != nil {
		s.logger.Error("Failed to send batch email", zap.String("history_id", id.String()), zap.Error(err))
		return nil, err
	}
	s.logger.Info("Batch email sent",
		zap.String("history_id", id.String()),
		zap.Int("attachments", len(attachments)))
	return &draft, nil
}
