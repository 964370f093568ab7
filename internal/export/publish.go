package export

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"log/slog"

	"fortuna/internal/config"
	"fortuna/internal/fileutil"
	"fortuna/internal/logging"
	"fortuna/internal/queue"
	"fortuna/internal/services"
	"fortuna/internal/stage"
)

// PublishStage moves staged bundles into the output directory and completes
// the work.
type PublishStage struct {
	cfg    *config.Config
	store  *queue.Store
	logger *slog.Logger
}

// NewPublishStage constructs the export stage handler.
func NewPublishStage(cfg *config.Config, store *queue.Store, logger *slog.Logger) *PublishStage {
	s := &PublishStage{cfg: cfg, store: store}
	s.SetLogger(logger)
	return s
}

// SetLogger installs the logger used for export output.
func (s *PublishStage) SetLogger(logger *slog.Logger) {
	s.logger = logging.NewComponentLogger(logger, "export")
}

func (s *PublishStage) Prepare(ctx context.Context, item *queue.Item) error {
	item.InitProgress("Exporting", "Publishing fortune bundles")
	logging.WithContext(ctx, s.logger).Debug(
		"prepared export",
		logging.String(logging.FieldWorkTitle, item.DisplayTitle()),
	)
	return nil
}

func (s *PublishStage) Execute(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, s.logger)

	if strings.TrimSpace(item.OriginalFile) == "" || strings.TrimSpace(item.CumulativeFile) == "" {
		return services.Wrap(
			services.ErrValidation,
			"export",
			"validate inputs",
			"Staged bundles missing; rerun analysis for this work",
			nil,
		)
	}

	outputDir := s.cfg.Paths.OutputDir
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return services.Wrap(
			services.ErrTransient,
			"export",
			"create output directory",
			"Could not create the output directory; check permissions",
			err,
		)
	}

	originalPath, err := s.publish(item.OriginalFile, outputDir)
	if err != nil {
		return err
	}
	item.OriginalFile = originalPath
	item.SetProgress("Exporting", "Published original bundle", 50)
	if s.store != nil {
		if err := s.store.UpdateProgress(ctx, item); err != nil {
			logger.Warn("failed to persist export progress", logging.Error(err))
		}
	}

	cumulativePath, err := s.publish(item.CumulativeFile, outputDir)
	if err != nil {
		return err
	}
	item.CumulativeFile = cumulativePath

	stagingDir := filepath.Join(s.cfg.StagingDir(), item.WorkKey)
	if err := os.RemoveAll(stagingDir); err != nil {
		logger.Warn("failed to clean staging directory", logging.String("path", stagingDir), logging.Error(err))
	}

	item.Status = queue.StatusCompleted
	item.SetProgressComplete("Completed", "Bundles published")
	logger.Info(
		"bundles published",
		logging.String(logging.FieldWorkTitle, item.DisplayTitle()),
		logging.String("original", originalPath),
		logging.String("cumulative", cumulativePath),
	)
	return nil
}

func (s *PublishStage) publish(src, outputDir string) (string, error) {
	dst := filepath.Join(outputDir, filepath.Base(src))
	if err := fileutil.MoveFile(src, dst); err != nil {
		return "", services.Wrap(
			services.ErrTransient,
			"export",
			"publish bundle",
			"Could not move a staged bundle into the output directory; check permissions and free space",
			err,
		)
	}
	return dst, nil
}

// HealthCheck verifies export prerequisites such as the output directory.
func (s *PublishStage) HealthCheck(ctx context.Context) stage.Health {
	const name = "export"
	if s.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	if strings.TrimSpace(s.cfg.Paths.OutputDir) == "" {
		return stage.Unhealthy(name, "output directory not configured")
	}
	return stage.Healthy(name)
}
