package export

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/school-system/reportgen/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRasterizer struct {
	calls  int
	failAt int
}

func (f *fakeRasterizer) Rasterize(ctx context.Context, html string) (image.Image, error) {
	f.calls++
	if f.failAt > 0 && f.calls == f.failAt {
		return nil, errors.New("browser crashed")
	}
	img := image.NewGray(image.Rect(0, 0, 20, 28))
	img.Set(1, 1, color.Black)
	return img, nil
}

type memSink struct {
	files map[string]*bytes.Buffer
	order []string
}

func newMemSink() *memSink { return &memSink{files: map[string]*bytes.Buffer{}} }

type memFile struct{ *bytes.Buffer }

func (memFile) Close() error { return nil }

func (m *memSink) Create(name string) (io.WriteCloser, error) {
	buf := &bytes.Buffer{}
	m.files[name] = buf
	m.order = append(m.order, name)
	return memFile{buf}, nil
}

var pageCount = regexp.MustCompile(`/Count (\d+)`)

func pages(t *testing.T, pdf []byte) int {
	t.Helper()
	m := pageCount.FindSubmatch(pdf)
	require.NotNil(t, m, "no page count in pdf")
	n, err := strconv.Atoi(string(m[1]))
	require.NoError(t, err)
	return n
}

func cards(n int) []models.RenderedReportCard {
	out := make([]models.RenderedReportCard, n)
	for i := range out {
		out[i] = models.RenderedReportCard{StudentName: fmt.Sprintf("Student %d", i), HTML: "<div>card</div>"}
	}
	return out
}

func TestPlan(t *testing.T) {
	tests := []struct {
		m, k int
		want []Range
	}{
		{0, 50, nil},
		{1, 50, []Range{{0, 1}}},
		{50, 50, []Range{{0, 50}}},
		{51, 50, []Range{{0, 50}, {50, 51}}},
		{120, 50, []Range{{0, 50}, {50, 100}, {100, 120}}},
		{7, 0, []Range{{0, 7}}},
	}
	for _, tt := range tests {
		got := Plan(tt.m, tt.k)
		assert.Equal(t, tt.want, got, "Plan(%d, %d)", tt.m, tt.k)
	}

	for m := 1; m <= 30; m++ {
		for k := 1; k <= 7; k++ {
			got := Plan(m, k)
			require.Len(t, got, (m+k-1)/k)
			for i, r := range got {
				assert.Equal(t, i*k, r.Start)
				assert.Equal(t, min(m, (i+1)*k), r.End)
			}
		}
	}
}

func TestExportSplitsIntoParts(t *testing.T) {
	raster := &fakeRasterizer{}
	sink := newMemSink()
	files, err := NewExporter(raster, 3, nil).Export(context.Background(), "class5", cards(7), sink)
	require.NoError(t, err)

	require.Len(t, files, 3)
	assert.Equal(t, []string{
		"class5_report_cards_part_1.pdf",
		"class5_report_cards_part_2.pdf",
		"class5_report_cards_part_3.pdf",
	}, sink.order)
	assert.Equal(t, File{Name: "class5_report_cards_part_3.pdf", Start: 6, End: 7, Pages: 1}, files[2])
	assert.Equal(t, 7, raster.calls)

	assert.Equal(t, 3, pages(t, sink.files["class5_report_cards_part_1.pdf"].Bytes()))
	assert.Equal(t, 1, pages(t, sink.files["class5_report_cards_part_3.pdf"].Bytes()))
	assert.True(t, bytes.HasPrefix(sink.files["class5_report_cards_part_1.pdf"].Bytes(), []byte("%PDF-")))
}

func TestExportSingleFileHasNoPartSuffix(t *testing.T) {
	sink := newMemSink()
	files, err := NewExporter(&fakeRasterizer{}, 0, nil).Export(context.Background(), "class5", cards(2), sink)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "class5_report_cards.pdf", files[0].Name)
}

func TestExportAbortsOnRenderFailure(t *testing.T) {
	raster := &fakeRasterizer{failAt: 5}
	sink := newMemSink()
	files, err := NewExporter(raster, 2, nil).Export(context.Background(), "b", cards(8), sink)

	var renderErr *RenderError
	require.True(t, errors.As(err, &renderErr))
	assert.Equal(t, "b_report_cards_part_3.pdf", renderErr.File)
	assert.Equal(t, 4, renderErr.Card)
	assert.Equal(t, "Student 4", renderErr.Student)

	// The first two files were saved and stay saved; nothing after the failure runs.
	assert.Len(t, files, 2)
	assert.Equal(t, []string{"b_report_cards_part_1.pdf", "b_report_cards_part_2.pdf"}, sink.order)
	assert.Equal(t, 5, raster.calls)
}

func TestExportStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewExporter(&fakeRasterizer{}, 2, nil).Export(ctx, "b", cards(3), newMemSink())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestZipSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewZipSink(&buf)
	_, err := NewExporter(&fakeRasterizer{}, 1, nil).Export(context.Background(), "z", cards(2), sink)
	require.NoError(t, err)
	require.NoError(t, sink.Close())

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	require.Len(t, zr.File, 2)
	assert.Equal(t, "z_report_cards_part_1.pdf", zr.File[0].Name)
	assert.Equal(t, "z_report_cards_part_2.pdf", zr.File[1].Name)
}

func TestDirSink(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	_, err := NewExporter(&fakeRasterizer{}, 5, nil).Export(context.Background(), "d", cards(1), DirSink{Dir: dir})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "d_report_cards.pdf"))
	require.NoError(t, err)
	assert.Equal(t, 1, pages(t, data))
}

func TestFit(t *testing.T) {
	// Rasterized A4 at scale 2 fills the page exactly.
	at := Fit(A4WidthPX*2, A4HeightPX*2, 210, 297)
	assert.InDelta(t, 210, at.W, 0.5)
	assert.InDelta(t, 297, at.H, 0.5)

	// A tall image is limited by height and centred.
	at = Fit(100, 400, 210, 297)
	assert.InDelta(t, 297, at.H, 1e-9)
	assert.InDelta(t, 74.25, at.W, 1e-9)
	assert.InDelta(t, (210-74.25)/2, at.X, 1e-9)
	assert.Equal(t, 0.0, at.Y)
}

func TestBaseName(t *testing.T) {
	tests := map[string]string{
		"Class 5 (final).xlsx": "Class_5_final",
		"marks.xlsx":           "marks",
		"/tmp/up/term-1.xlsx":  "term-1",
		".xlsx":                "batch",
		"":                     "batch",
	}
	for in, want := range tests {
		if got := BaseName(in); got != want {
			t.Errorf("BaseName(%q): expected %s, got %s", in, want, got)
		}
	}
}

func TestChromeArgs(t *testing.T) {
	args := (&ChromeRasterizer{}).args("/tmp/card.html", "/tmp/card.png", 2400)
	assert.Contains(t, args, "--window-size=794,2400")
	assert.Contains(t, args, "--force-device-scale-factor=2")
	assert.Contains(t, args, "--screenshot=/tmp/card.png")
	assert.Equal(t, "file:///tmp/card.html", args[len(args)-1])

	measure := (&ChromeRasterizer{}).measureArgs("/tmp/card.html")
	assert.Contains(t, measure, "--dump-dom")
	assert.Contains(t, measure, "--window-size=794,1123")
	assert.NotContains(t, strings.Join(measure, " "), "--screenshot")
}

func TestContentHeight(t *testing.T) {
	tests := []struct {
		dom  string
		want int
	}{
		{`<html data-card-height="2400"><body></body></html>`, 2400},
		{`<html data-card-height="600"><body></body></html>`, A4HeightPX},
		{`<html data-card-height="99999"><body></body></html>`, MaxHeightPX},
		{`<html><body></body></html>`, A4HeightPX},
	}
	for _, tt := range tests {
		if got := contentHeight([]byte(tt.dom)); got != tt.want {
			t.Errorf("contentHeight(%q): expected %d, got %d", tt.dom, tt.want, got)
		}
	}
}

// fakeChrome writes a shell script standing in for the browser: --dump-dom
// prints a DOM with the given height, --screenshot copies src.
func fakeChrome(t *testing.T, height int, src, sizeLog string) string {
	t.Helper()
	script := fmt.Sprintf(`#!/bin/sh
shot=""
for a in "$@"; do
  case "$a" in
    --window-size=*) echo "${a#--window-size=}" > %q ;;
    --dump-dom) echo '<html data-card-height="%d"><body></body></html>'; exit 0 ;;
    --screenshot=*) shot="${a#--screenshot=}" ;;
  esac
done
cp %q "$shot"
`, sizeLog, height, src)
	path := filepath.Join(t.TempDir(), "chrome")
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func TestChromeRasterizerCapturesFullHeight(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell")
	}
	dir := t.TempDir()
	src := filepath.Join(dir, "tall.png")
	tall := image.NewRGBA(image.Rect(0, 0, A4WidthPX, 2*A4HeightPX))
	f, err := os.Create(src)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, tall))
	require.NoError(t, f.Close())
	sizeLog := filepath.Join(dir, "size")

	r := &ChromeRasterizer{
		Executable:  fakeChrome(t, 2*A4HeightPX, src, sizeLog),
		ScaleFactor: 1,
		TempDir:     dir,
		Timeout:     10 * time.Second,
	}
	img, err := r.Rasterize(context.Background(), "<div>long card</div>")
	require.NoError(t, err)

	size, err := os.ReadFile(sizeLog)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("794,%d", 2*A4HeightPX), strings.TrimSpace(string(size)))

	b := img.Bounds()
	assert.Equal(t, 2*A4HeightPX, b.Dy())
	at := Fit(b.Dx(), b.Dy(), 210, 297)
	assert.InDelta(t, 297, at.H, 1e-9, "whole card fits on the page")
	assert.Less(t, at.W, 210.0)
}

func TestMemorySink(t *testing.T) {
	sink := &MemorySink{}
	files, err := NewExporter(&fakeRasterizer{}, 2, nil).Export(context.Background(), "m", cards(3), sink)
	require.NoError(t, err)
	require.Len(t, files, 2)
	require.Len(t, sink.Files, 2)
	assert.Equal(t, "m_report_cards_part_2.pdf", sink.Files[1].Name)
	assert.Equal(t, 1, pages(t, sink.Files[1].Data))
}
