package main

import (
	"context"
	"flag"
	"log"
	"os"
	"path/filepath"
	"strings"

	"subsea-agent-be/internal/bootstrap"
	"subsea-agent-be/internal/config"
	"subsea-agent-be/internal/service"
	"subsea-agent-be/pkg/database"

	"github.com/fatih/color"
)

// Offline ingestion: chunk and embed every report PDF, then rebuild the
// visual index. Run this after dropping new files into the data dirs.
func main() {
	skipReports := flag.Bool("skip-reports", false, "skip report ingestion")
	skipImages := flag.Bool("skip-images", false, "skip image index build")
	flag.Parse()

	cfg := config.Load()

	gormDB, err := database.NewGormDBFromDSN(cfg.Database.Connection)
	if err != nil {
		log.Fatalf("Unable to connect to GORM DB: %v", err)
	}

	container := bootstrap.NewContainer(gormDB, cfg)
	ctx := context.Background()

	if !*skipReports {
		ingestReports(ctx, container.IngestService, cfg.Ingest.ReportsDir)
	}

	if !*skipImages {
		color.Cyan("Rebuilding image index from %s ...", cfg.Vision.ImagesDir)
		if err := container.ImageIndex.Rebuild(ctx); err != nil {
			color.Red("  image index build failed: %v", err)
			os.Exit(1)
		}
		color.Green("  indexed %d images", container.ImageIndex.Count())
	}

	color.Green("Done.")
}

func ingestReports(ctx context.Context, ingest service.IIngestService, reportsDir string) {
	var pdfs []string
	err := filepath.WalkDir(reportsDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".pdf") {
			pdfs = append(pdfs, path)
		}
		return nil
	})
	if err != nil {
		color.Red("Cannot read reports dir %s: %v", reportsDir, err)
		os.Exit(1)
	}

	color.Cyan("Ingesting %d reports from %s ...", len(pdfs), reportsDir)
	for _, path := range pdfs {
		report := service.ReportName(path)

		raw, err := os.ReadFile(path)
		if err != nil {
			color.Red("  %s: read failed: %v", report, err)
			continue
		}

		chunks, err := ingest.IngestReport(ctx, report, raw)
		if err != nil {
			color.Red("  %s: %v", report, err)
			continue
		}
		color.Green("  %s: %d chunks", report, chunks)
	}
}
