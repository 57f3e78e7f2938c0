package mail

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/school-system/reportgen/internal/models"
	"github.com/school-system/reportgen/internal/validation"
)

var ErrInvalidAddress = errors.New("invalid email address")

// Draft is a pre-filled message about a generated batch.
type Draft struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Attachment is a file sent along with a draft.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Sender delivers a draft.
type Sender interface {
	Send(ctx context.Context, d Draft, attachments ...Attachment) error
}

// BatchDraft describes a freshly generated batch of cards.
func BatchDraft(to, fileName string, count int) (Draft, error) {
	addr, err := ParseAddress(to)
	if err != nil {
		return Draft{}, err
	}
	return Draft{
		To:      addr,
		Subject: fmt.Sprintf("Report Cards Ready: %s", fileName),
		Body: fmt.Sprintf("Hello,\n\nThe batch of %d report cards for %q has been generated and is available for download in the application.\n\nThank you.",
			count, fileName),
	}, nil
}

// HistoryDraft describes a batch recorded in history.
func HistoryDraft(to string, item models.HistoryItem) (Draft, error) {
	return BatchDraft(to, item.FileName, item.FileCount)
}

// ParseAddress validates a single recipient and returns its bare address.
func ParseAddress(to string) (string, error) {
	to = strings.TrimSpace(to)
	if to == "" {
		return "", ErrInvalidAddress
	}
	if err := validation.Var(to, "required,email"); err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidAddress, to)
	}
	return to, nil
}

// MailtoURL is a link that opens the user's mail client with the draft
// filled in.
func (d Draft) MailtoURL() string {
	return fmt.Sprintf("mailto:%s?subject=%s&body=%s", url.PathEscape(d.To), escape(d.Subject), escape(d.Body))
}

// escape percent-encodes like encodeURIComponent: spaces become %20, not +.
func escape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
