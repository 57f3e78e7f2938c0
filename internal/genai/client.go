package genai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/school-system/reportgen/internal/config"
	"github.com/school-system/reportgen/internal/generation"
	"github.com/school-system/reportgen/internal/grading"
	"github.com/school-system/reportgen/internal/logging"
	"github.com/school-system/reportgen/internal/models"
	"go.uber.org/zap"
	gemini "google.golang.org/genai"
)

var (
	ErrNoCandidates = errors.New("model returned no candidates")
	ErrEmptyText    = errors.New("model returned empty text")
)

const temperature = float32(0.4)

// Client asks a Gemini model for results in JSON response mode.
type Client struct {
	model  string
	client *gemini.Client
	logger *zap.Logger
}

// NewClient builds a Gemini API client. A nil hc gets a pooled client with
// cfg.Timeout.
func NewClient(ctx context.Context, cfg config.AIConfig, hc *http.Client, logger *zap.Logger) (*Client, error) {
	if hc == nil {
		hc = &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}

	client, err := gemini.NewClient(ctx, &gemini.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    gemini.BackendGeminiAPI,
		HTTPClient: hc,
		HTTPOptions: gemini.HTTPOptions{
			BaseURL:    cfg.BaseURL,
			APIVersion: cfg.APIVersion,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Client{model: cfg.Model, client: client, logger: logging.OrNop(logger)}, nil
}

type batchOutput struct {
	Results []models.StudentResult `json:"results"`
}

// CardOutput is the single-student variant: a finished HTML fragment.
type CardOutput struct {
	ReportCardHTML string `json:"reportCardHtml"`
	StudentName    string `json:"studentName"`
}

// Generate implements generation.Generator.
func (c *Client) Generate(ctx context.Context, students []models.StudentRecord, scale grading.Scale) ([]models.StudentResult, error) {
	prompt, err := batchPrompt(students, scale)
	if err != nil {
		return nil, &generation.GenerationError{Op: "build prompt", Err: err}
	}

	text, err := c.call(ctx, prompt)
	if err != nil {
		return nil, err
	}

	var out batchOutput
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return nil, &generation.GenerationError{Op: "decode results", Err: err}
	}
	if len(out.Results) == 0 {
		return nil, &generation.GenerationError{Op: "decode results", Err: generation.ErrEmptyResponse}
	}
	return out.Results, nil
}

// GenerateCard asks the model for one complete report card fragment.
func (c *Client) GenerateCard(ctx context.Context, student models.StudentRecord) (*CardOutput, error) {
	data, err := json.Marshal(student)
	if err != nil {
		return nil, &generation.GenerationError{Op: "build prompt", Err: err}
	}

	text, err := c.call(ctx, fmt.Sprintf(cardPrompt, data))
	if err != nil {
		return nil, err
	}

	var out CardOutput
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return nil, &generation.GenerationError{Op: "decode card", Err: err}
	}
	if strings.TrimSpace(out.ReportCardHTML) == "" {
		return nil, &generation.GenerationError{Op: "decode card", Err: ErrEmptyText}
	}
	if out.StudentName == "" {
		out.StudentName = student.DisplayName()
	}
	return &out, nil
}

func (c *Client) call(ctx context.Context, prompt string) (string, error) {
	temp := temperature
	resp, err := c.client.Models.GenerateContent(ctx, c.model, gemini.Text(prompt), &gemini.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		Temperature:      &temp,
	})
	if err != nil {
		code := statusCode(err)
		if code != 0 {
			c.logger.Warn("Model call rejected",
				zap.String("model", c.model),
				zap.Int("status", code),
				zap.Error(err))
		}
		return "", &generation.GenerationError{Op: "call model", StatusCode: code, Err: err}
	}
	if len(resp.Candidates) == 0 {
		return "", &generation.GenerationError{Op: "decode response", Err: ErrNoCandidates}
	}

	cand := resp.Candidates[0]
	var sb strings.Builder
	if cand.Content != nil {
		for _, p := range cand.Content.Parts {
			if p != nil {
				sb.WriteString(p.Text)
			}
		}
	}
	text := stripFence(sb.String())
	if text == "" {
		c.logger.Warn("Model returned no text",
			zap.String("model", c.model),
			zap.String("finish_reason", string(cand.FinishReason)))
		return "", &generation.GenerationError{Op: "decode response", Err: ErrEmptyText}
	}
	return text, nil
}

// statusCode pulls the HTTP status out of an SDK API error, or 0.
func statusCode(err error) int {
	var apiErr gemini.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	var apiErrPtr *gemini.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiErrPtr.Code
	}
	return 0
}

// stripFence removes a ```json ... ``` wrapper some models add even in
// JSON mode.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
