package export

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"path/filepath"
	"regexp"
	"strings"

	"codeberg.org/go-pdf/fpdf"
	"github.com/school-system/reportgen/internal/logging"
	"github.com/school-system/reportgen/internal/metrics"
	"github.com/school-system/reportgen/internal/models"
	"go.uber.org/zap"
)

const DefaultPagesPerFile = 50

// RenderError aborts an export. Files saved before it stay saved.
type RenderError struct {
	File    string
	Card    int
	Student string
	Err     error
}

func (e *RenderError) Error() string {
	if e.Student != "" {
		return fmt.Sprintf("render %s (card %d, %s): %v", e.File, e.Card+1, e.Student, e.Err)
	}
	return fmt.Sprintf("render %s: %v", e.File, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// File describes one saved PDF and the cards it holds.
type File struct {
	Name  string `json:"name"`
	Start int    `json:"start"`
	End   int    `json:"end"`
	Pages int    `json:"pages"`
}

// Range is a half-open slice [Start, End) of the card sequence.
type Range struct {
	Start int
	End   int
}

// Plan splits m cards into ceil(m/k) files; file i (1-indexed) holds
// cards [(i-1)k, ik).
func Plan(m, k int) []Range {
	if m <= 0 {
		return nil
	}
	if k <= 0 {
		k = DefaultPagesPerFile
	}
	ranges := make([]Range, 0, (m+k-1)/k)
	for start := 0; start < m; start += k {
		end := start + k
		if end > m {
			end = m
		}
		ranges = append(ranges, Range{Start: start, End: end})
	}
	return ranges
}

// Exporter assembles rasterized cards into A4 PDF files.
type Exporter struct {
	rasterizer   Rasterizer
	pagesPerFile int
	logger       *zap.Logger
}

func NewExporter(r Rasterizer, pagesPerFile int, logger *zap.Logger) *Exporter {
	if pagesPerFile <= 0 {
		pagesPerFile = DefaultPagesPerFile
	}
	return &Exporter{rasterizer: r, pagesPerFile: pagesPerFile, logger: logging.OrNop(logger)}
}

// Export writes one PDF per planned range into sink, one page per card in
// input order. Cards are rasterized one at a time.
func (e *Exporter) Export(ctx context.Context, baseName string, cards []models.RenderedReportCard, sink Sink) ([]File, error) {
	ranges := Plan(len(cards), e.pagesPerFile)
	files := make([]File, 0, len(ranges))

	for i, rg := range ranges {
		name := FileName(baseName, i+1, len(ranges))
		if err := e.exportFile(ctx, name, rg, cards, sink); err != nil {
			metrics.ExportFailures.Inc()
			e.logger.Error("Export aborted",
				zap.String("file", name),
				zap.Int("saved_files", len(files)),
				zap.Error(err))
			return files, err
		}
		files = append(files, File{Name: name, Start: rg.Start, End: rg.End, Pages: rg.End - rg.Start})
		metrics.FilesExported.Inc()
	}

	return files, nil
}

func (e *Exporter) exportFile(ctx context.Context, name string, rg Range, cards []models.RenderedReportCard, sink Sink) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetTitle(strings.TrimSuffix(name, ".pdf"), true)
	pageW, pageH := pdf.GetPageSize()

	for idx := rg.Start; idx < rg.End; idx++ {
		card := cards[idx]
		fail := func(err error) error {
			return &RenderError{File: name, Card: idx, Student: card.StudentName, Err: err}
		}
		if err := ctx.Err(); err != nil {
			return fail(err)
		}

		img, err := e.rasterizer.Rasterize(ctx, card.HTML)
		if err != nil {
			return fail(err)
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return fail(err)
		}
		bounds := img.Bounds()

		// A new document has no pages, so every card adds exactly one.
		pdf.AddPage()
		opts := fpdf.ImageOptions{ImageType: "PNG"}
		imgName := fmt.Sprintf("card-%d", idx)
		pdf.RegisterImageOptionsReader(imgName, opts, &buf)
		at := Fit(bounds.Dx(), bounds.Dy(), pageW, pageH)
		pdf.ImageOptions(imgName, at.X, at.Y, at.W, at.H, false, opts, 0, "")
		if err := pdf.Error(); err != nil {
			return fail(err)
		}
		metrics.PagesExported.Inc()
	}

	w, err := sink.Create(name)
	if err != nil {
		return &RenderError{File: name, Card: -1, Err: err}
	}
	if err := pdf.Output(w); err != nil {
		w.Close()
		return &RenderError{File: name, Card: -1, Err: err}
	}
	if err := w.Close(); err != nil {
		return &RenderError{File: name, Card: -1, Err: err}
	}
	return nil
}

var unsafeBaseChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// BaseName derives an export base name from an uploaded file name,
// e.g. "Class 5 (final).xlsx" gives "Class_5_final".
func BaseName(upload string) string {
	base := filepath.Base(upload)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.Trim(unsafeBaseChars.ReplaceAllString(base, "_"), "_")
	if base == "" || base == "." {
		return "batch"
	}
	return base
}

// FileName is the name of part n of total.
func FileName(base string, n, total int) string {
	if total > 1 {
		return fmt.Sprintf("%s_report_cards_part_%d.pdf", base, n)
	}
	return base + "_report_cards.pdf"
}
