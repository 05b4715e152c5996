package analyzer

import (
	"context"

	"github.com/anime-shed/vision-analysis-go/pkg/models"
)

// Analyzer sends an image URL to the vision service and returns what it found
type Analyzer interface {
	// Analyze runs the configured feature set against a publicly reachable
	// image. Transport and service errors are returned unchanged.
	Analyze(ctx context.Context, imageURL string) (*models.AnalysisResult, error)
}
