package pipeline

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"clientmap/internal"
	"clientmap/internal/config"
	"clientmap/internal/gazetteer"
	"clientmap/internal/geocode"
	"clientmap/internal/runlock"
	"clientmap/internal/storage"
	"clientmap/internal/util"
)

type ProcessingService struct {
	db     *storage.DB
	cfg    config.Config
	logger *slog.Logger

	// remote is only set when geocoding is enabled.
	remote Locator
}

func NewProcessingService(db *storage.DB, cfg config.Config, logger *slog.Logger) *ProcessingService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &ProcessingService{db: db, cfg: cfg, logger: logger}
	if cfg.UseGeocoding {
		logger.Info("remote geocoding enabled", "baseURL", cfg.GeocoderBaseURL)
		s.remote = geocode.NewClient(cfg, logger)
	}
	return s
}

type RunResult struct {
	TraceID    string
	OutputPath string
	Stats      internal.RunStats
	Malformed  int
	Duration   time.Duration
}

// Run performs one full batch: read the registry, aggregate, enrich and
// replace the artifact. Nothing is written unless every fatal step succeeds.
func (s *ProcessingService) Run(ctx context.Context) (RunResult, error) {
	start := time.Now()
	trace := traceID()
	logger := s.logger.With("trace", trace)

	lock, err := runlock.Acquire(s.cfg.LockPath)
	if err != nil {
		return RunResult{}, err
	}
	defer func() { _ = lock.Release() }()

	records, malformed, err := ReadRecords(s.cfg.ClientsPath)
	if err != nil {
		return RunResult{}, err
	}
	logger.Info("registry loaded", "path", s.cfg.ClientsPath, "rows", len(records), "malformed", malformed)

	index := gazetteer.Load(s.cfg.GazetteerPath, logger)
	agg := NewAggregator(
		s.locators(index),
		util.NewCityRefiner(s.cfg.CityPrefixes),
		NewEquipmentExtractor(s.cfg.EquipmentSentinels),
		logger,
	)
	entities, stats := Aggregate(ctx, records, agg)
	stats.Failed += malformed
	if err := ctx.Err(); err != nil {
		logger.Warn("run interrupted, artifact kept", "error", err)
		return RunResult{}, fmt.Errorf("run interrupted: %w", err)
	}

	if err := WriteArtifact(entities, s.cfg.OutputPath); err != nil {
		return RunResult{}, err
	}

	result := RunResult{
		TraceID:    trace,
		OutputPath: s.cfg.OutputPath,
		Stats:      stats,
		Malformed:  malformed,
		Duration:   time.Since(start),
	}
	logger.Info("artifact written",
		"path", s.cfg.OutputPath,
		"rows", stats.Rows,
		"entities", stats.Entities,
		"withCoordinates", stats.WithCoordinates,
		"unresolvedCities", len(stats.UnresolvedCities),
		"skipped", stats.Skipped,
		"failed", stats.Failed,
	)
	s.recordRun(logger, result)
	return result, nil
}

func (s *ProcessingService) locators(index *gazetteer.Index) LocatorChain {
	chain := LocatorChain{index}
	if s.remote != nil {
		chain = append(chain, s.remote)
	}
	return chain
}

// recordRun keeps the audit trail. Failures here never affect the artifact.
func (s *ProcessingService) recordRun(logger *slog.Logger, result RunResult) {
	if s.db == nil {
		return
	}
	ms := float64(result.Duration.Milliseconds())
	if _, err := s.db.InsertRun(result.TraceID, s.cfg.ClientsPath, result.OutputPath, ms, result.Stats); err != nil {
		logger.Warn("run history not recorded", "error", err)
		return
	}
	_ = s.db.SetMetadata("pipeline.last_success", time.Now().UTC().Format(time.RFC3339))
}

func traceID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return fmt.Sprintf("run-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b[:])
}
