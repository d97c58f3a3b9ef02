package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"clientmap/internal/config"
	"clientmap/internal/pipeline"
	"clientmap/internal/storage"
)

func main() {
	cfg, err := config.Load()
	must(err)
	logger := newLogger(cfg)
	slog.SetDefault(logger)

	cmd := "process"
	args := []string{}
	if len(os.Args) >= 2 {
		cmd = os.Args[1]
		args = os.Args[2:]
	}

	switch cmd {
	case "process":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		input := fs.String("input", cfg.ClientsPath, "client registry (.csv or .xlsx)")
		gaz := fs.String("gazetteer", cfg.GazetteerPath, "gazetteer json")
		output := fs.String("output", cfg.OutputPath, "processed artifact path")
		geocoding := fs.Bool("geocoding", cfg.UseGeocoding, "resolve unknown cities remotely")
		_ = fs.Parse(args)
		if *output != cfg.OutputPath && os.Getenv("LOCK_PATH") == "" {
			cfg.LockPath = *output + ".lock"
		}
		cfg.ClientsPath, cfg.GazetteerPath, cfg.OutputPath, cfg.UseGeocoding = *input, *gaz, *output, *geocoding

		db, err := storage.Open(cfg.DBPath)
		if err != nil {
			logger.Warn("run history disabled", "path", cfg.DBPath, "error", err)
		}
		if db != nil {
			defer db.Close()
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		res, err := pipeline.NewProcessingService(db, cfg, logger).Run(ctx)
		must(err)
		fmt.Printf("process done rows=%d entities=%d withCoordinates=%d unresolved=%d output=%s\n",
			res.Stats.Rows, res.Stats.Entities, res.Stats.WithCoordinates, len(res.Stats.UnresolvedCities), res.OutputPath)
	case "cities":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		artifact := fs.String("artifact", cfg.OutputPath, "processed artifact path")
		_ = fs.Parse(args)
		entities, err := pipeline.ReadArtifact(*artifact)
		must(err)
		for _, city := range pipeline.UniqueCities(entities) {
			fmt.Println(city)
		}
	case "export:xlsx":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		artifact := fs.String("artifact", cfg.OutputPath, "processed artifact path")
		out := fs.String("out", "", "output xlsx path")
		_ = fs.Parse(args)
		if strings.TrimSpace(*out) == "" {
			must(fmt.Errorf("--out is required"))
		}
		entities, err := pipeline.ReadArtifact(*artifact)
		must(err)
		if len(entities) == 0 {
			must(fmt.Errorf("no entities in %s", *artifact))
		}
		must(pipeline.ExportEntitiesToXLSX(entities, *out))
		fmt.Printf("exported %d entities to %s\n", len(entities), *out)
	case "runs:last":
		db, err := storage.Open(cfg.DBPath)
		must(err)
		defer db.Close()
		run, err := db.LatestRun()
		must(err)
		if run == nil {
			fmt.Println("no runs recorded")
			return
		}
		fmt.Printf("run %s at %s rows=%d entities=%d withCoordinates=%d durationMs=%.0f\n",
			run.TraceID, run.CreatedAt, run.Stats.Rows, run.Stats.Entities, run.Stats.WithCoordinates, run.DurationMs)
		for _, city := range run.Stats.UnresolvedCities {
			fmt.Printf("  unresolved: %s\n", city)
		}
	default:
		usage()
		os.Exit(1)
	}
}

func newLogger(cfg config.Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func usage() {
	fmt.Println("usage: clientmap [command]")
	fmt.Println("commands:")
	fmt.Println("  process [--input=...] [--gazetteer=...] [--output=...] [--geocoding]   (default)")
	fmt.Println("  cities [--artifact=...]")
	fmt.Println("  export:xlsx [--artifact=...] --out=./out/clients.xlsx")
	fmt.Println("  runs:last")
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
