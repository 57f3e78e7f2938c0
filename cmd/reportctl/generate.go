package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/school-system/reportgen/internal/config"
	"github.com/school-system/reportgen/internal/export"
	"github.com/school-system/reportgen/internal/ingest"
	"github.com/school-system/reportgen/internal/logging"
	"github.com/school-system/reportgen/internal/models"
	"github.com/school-system/reportgen/internal/render"
	"github.com/school-system/reportgen/internal/server"
	"github.com/school-system/reportgen/internal/services"
	"github.com/school-system/reportgen/internal/store"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const localUser = "reportctl"

type generateOptions struct {
	outDir     string
	format     string
	school     string
	address    string
	session    string
	theme      string
	chunkSize  int
	pages      int
	verbose    bool
	rasterizer export.Rasterizer
}

func newGenerateCmd() *cobra.Command {
	opts := &generateOptions{}
	cmd := &cobra.Command{
		Use:   "generate <file.xlsx>",
		Short: "Generate report cards as HTML and/or PDF files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return runGenerate(ctx, cmd.OutOrStdout(), args[0], opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.outDir, "out", "o", "report_cards", "Output directory")
	f.StringVar(&opts.format, "format", "pdf", "Output format: html, pdf or both")
	f.StringVar(&opts.school, "school", "", "School name on the cards")
	f.StringVar(&opts.address, "address", "", "School address")
	f.StringVar(&opts.session, "session", "", "Academic session")
	f.StringVar(&opts.theme, "theme", "", "Theme color: "+strings.Join(models.ThemeColors, ", "))
	f.IntVar(&opts.chunkSize, "chunk-size", 0, "Students per generation call (default from AI_CHUNK_SIZE)")
	f.IntVar(&opts.pages, "pages-per-file", 0, "Cards per PDF file (default from EXPORT_PAGES_PER_FILE)")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "Log pipeline events")
	return cmd
}

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <file.xlsx>",
		Short: "Parse a marks sheet and list its students",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := readWorkbook(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d students\n", len(records))
			for _, r := range records {
				fmt.Fprintf(out, "%-6s %-30s %d subjects, total %g\n", r.RollNo, r.DisplayName(), len(r.Marks), r.TotalMarks())
			}
			return nil
		},
	}
}

func readWorkbook(path string) ([]models.StudentRecord, error) {
	if err := ingest.ValidateUpload(path, ""); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ingest.Parse(f)
}

func runGenerate(ctx context.Context, out io.Writer, path string, opts *generateOptions) error {
	wantHTML := opts.format == "html" || opts.format == "both"
	wantPDF := opts.format == "pdf" || opts.format == "both"
	if !wantHTML && !wantPDF {
		return fmt.Errorf("unknown format %q", opts.format)
	}

	cfg, err := config.LoadOffline()
	if err != nil {
		return err
	}
	if opts.chunkSize > 0 {
		cfg.AI.ChunkSize = opts.chunkSize
	}
	if opts.pages > 0 {
		cfg.Export.PagesPerFile = opts.pages
	}

	log := zap.NewNop()
	if opts.verbose {
		if log, err = logging.New("development"); err != nil {
			return err
		}
		defer log.Sync()
	}

	records, err := readWorkbook(path)
	if err != nil {
		return err
	}

	st := store.NewMemoryStore()
	if _, err := services.NewSettingsService(st, log).Update(ctx, localUser, opts.patch()); err != nil {
		return err
	}
	reports := server.NewReportService(cfg, st, opts.rasterizer, log)

	fmt.Fprintf(out, "Generating %d report cards from %s\n", len(records), filepath.Base(path))
	res, err := reports.Generate(ctx, localUser, filepath.Base(path), records, func(p float64) {
		fmt.Fprintf(out, "  %3.0f%%\n", p*100)
	})
	if err != nil {
		return err
	}
	for _, c := range res.FailedChunks {
		fmt.Fprintf(out, "Skipped students %d-%d: %s\n", c.Start+1, c.Start+c.Size, c.Error)
	}
	if res.Generated == 0 {
		return services.ErrNoResults
	}

	if wantHTML {
		sink := export.DirSink{Dir: opts.outDir}
		for _, card := range res.Cards {
			w, err := sink.Create(render.FileName(card.StudentName))
			if err != nil {
				return err
			}
			_, werr := io.WriteString(w, render.Document(card.HTML))
			if cerr := w.Close(); werr == nil {
				werr = cerr
			}
			if werr != nil {
				return werr
			}
		}
		fmt.Fprintf(out, "Wrote %d HTML files to %s\n", len(res.Cards), opts.outDir)
	}

	if wantPDF {
		exporter := export.NewExporter(pdfRasterizer(cfg, opts), cfg.Export.PagesPerFile, log)
		files, err := exporter.Export(ctx, export.BaseName(path), res.Cards, export.DirSink{Dir: opts.outDir})
		for _, f := range files {
			fmt.Fprintf(out, "Saved %s (%d pages)\n", filepath.Join(opts.outDir, f.Name), f.Pages)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func pdfRasterizer(cfg *config.Config, opts *generateOptions) export.Rasterizer {
	if opts.rasterizer != nil {
		return opts.rasterizer
	}
	return export.NewChromeRasterizer(cfg.Export)
}

func (o *generateOptions) patch() models.SettingsPatch {
	var p models.SettingsPatch
	set := func(dst **string, v string) {
		if v != "" {
			*dst = &v
		}
	}
	set(&p.SchoolName, o.school)
	set(&p.Address, o.address)
	set(&p.Session, o.session)
	set(&p.ThemeColor, o.theme)
	return p
}
