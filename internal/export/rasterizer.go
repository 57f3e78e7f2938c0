package export

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/school-system/reportgen/internal/config"
	"github.com/school-system/reportgen/internal/render"
)

// A4 at 96 CSS pixels per inch.
const (
	A4WidthPX  = 794
	A4HeightPX = 1123

	// MaxHeightPX bounds the screenshot window for runaway content.
	MaxHeightPX = 8 * A4HeightPX
)

// measureScript records the laid out card height on the root element so
// a --dump-dom pass can read it back.
const measureScript = `<script>document.documentElement.setAttribute("data-card-height", Math.ceil(document.documentElement.scrollHeight));</script>`

var cardHeightAttr = regexp.MustCompile(`data-card-height="(\d+)"`)

// Rasterizer turns one card fragment into a bitmap.
type Rasterizer interface {
	Rasterize(ctx context.Context, html string) (image.Image, error)
}

// ChromeRasterizer screenshots a card with headless Chrome. Each call
// launches its own browser process, so only one card's bitmap is alive at
// a time.
type ChromeRasterizer struct {
	Executable  string
	ScaleFactor float64
	TempDir     string
	Timeout     time.Duration
}

func NewChromeRasterizer(cfg config.ExportConfig) *ChromeRasterizer {
	return &ChromeRasterizer{
		Executable:  cfg.ChromePath,
		ScaleFactor: cfg.ScaleFactor,
		TempDir:     cfg.TempDir,
		Timeout:     cfg.Timeout,
	}
}

// Rasterize captures the whole card. A first --dump-dom pass measures the
// laid out height; the screenshot window is then sized to it so tall cards
// are not clipped at one A4 viewport.
func (c *ChromeRasterizer) Rasterize(ctx context.Context, html string) (image.Image, error) {
	dir, err := os.MkdirTemp(c.TempDir, "card_*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	page := filepath.Join(dir, "card.html")
	if err := os.WriteFile(page, []byte(render.Document(html)+measureScript), 0o600); err != nil {
		return nil, fmt.Errorf("failed to write card page: %w", err)
	}
	shot := filepath.Join(dir, "card.png")

	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	dom, err := c.run(ctx, c.measureArgs(page))
	if err != nil {
		return nil, err
	}
	height := contentHeight(dom)

	if _, err := c.run(ctx, c.args(page, shot, height)); err != nil {
		return nil, err
	}

	f, err := os.Open(shot)
	if err != nil {
		return nil, fmt.Errorf("chrome produced no screenshot: %w", err)
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode screenshot: %w", err)
	}
	return img, nil
}

func (c *ChromeRasterizer) run(ctx context.Context, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, c.Executable, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("chrome execution failed: %w, stderr: %s", err, stderr.String())
	}
	return stdout.Bytes(), nil
}

// contentHeight reads the measured card height from a dumped DOM. It is
// never less than one A4 page nor more than MaxHeightPX.
func contentHeight(dom []byte) int {
	m := cardHeightAttr.FindSubmatch(dom)
	if m == nil {
		return A4HeightPX
	}
	h, err := strconv.Atoi(string(m[1]))
	if err != nil || h < A4HeightPX {
		return A4HeightPX
	}
	if h > MaxHeightPX {
		return MaxHeightPX
	}
	return h
}

func (c *ChromeRasterizer) baseArgs(height int) []string {
	return []string{
		"--headless=new",
		"--disable-gpu",
		"--no-sandbox",
		"--disable-dev-shm-usage",
		"--hide-scrollbars",
		"--default-background-color=ffffffff",
		fmt.Sprintf("--window-size=%d,%d", A4WidthPX, height),
	}
}

func (c *ChromeRasterizer) measureArgs(page string) []string {
	return append(c.baseArgs(A4HeightPX), "--dump-dom", "file://"+page)
}

func (c *ChromeRasterizer) args(page, shot string, height int) []string {
	scale := c.ScaleFactor
	if scale <= 0 {
		scale = 2
	}
	return append(c.baseArgs(height),
		fmt.Sprintf("--force-device-scale-factor=%g", scale),
		"--screenshot="+shot,
		"file://"+page,
	)
}

// Placement is where a bitmap lands on a page, in page units.
type Placement struct {
	X, Y, W, H float64
}

// Fit scales an image of imgW x imgH to fit a page while preserving its
// aspect ratio. The image is centred horizontally and top aligned.
func Fit(imgW, imgH int, pageW, pageH float64) Placement {
	if imgW <= 0 || imgH <= 0 {
		return Placement{W: pageW, H: pageH}
	}
	scale := pageW / float64(imgW)
	if s := pageH / float64(imgH); s < scale {
		scale = s
	}
	w := float64(imgW) * scale
	h := float64(imgH) * scale
	return Placement{X: (pageW - w) / 2, Y: 0, W: w, H: h}
}
