package telemetry

import (
	"context"

	"github.com/cwllll/auth-service/internal/logging"
)

// Reporter receives captured internal errors. Handlers call this single seam
// instead of embedding a vendor SDK; swap the implementation to ship errors
// to an external collector.
type Reporter interface {
	ReportError(ctx context.Context, err error, fields map[string]any)
}

// LogReporter writes captured errors to the structured log
type LogReporter struct {
	logger *logging.Logger
}

func NewLogReporter(logger *logging.Logger) *LogReporter {
	return &LogReporter{logger: logger}
}

func (r *LogReporter) ReportError(ctx context.Context, err error, fields map[string]any) {
	logger := r.logger
	if len(fields) > 0 {
		logger = logger.WithFields(fields)
	}
	logger.Error("captured error", "error", err.Error())
}
