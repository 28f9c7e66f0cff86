package logging

import (
	"fmt"

	"go.uber.org/zap"
)

// NewLogger builds the root logger for the service. Local environments get
// the human-readable development encoder; everything else logs production
// JSON suitable for log aggregation.
func NewLogger(env string) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if env == "local" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, nil
}
