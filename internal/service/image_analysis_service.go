package service

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/anime-shed/vision-analysis-go/internal/analyzer"
	apperrors "github.com/anime-shed/vision-analysis-go/internal/errors"
	"github.com/anime-shed/vision-analysis-go/internal/logger"
	"github.com/anime-shed/vision-analysis-go/internal/observer"
	"github.com/anime-shed/vision-analysis-go/pkg/models"
	"github.com/anime-shed/vision-analysis-go/pkg/validation"
)

// ImageAnalysisService validates image references and forwards them to the
// vision analyzer
type ImageAnalysisService interface {
	// AnalyzeImage blocks until the vision service answers.
	AnalyzeImage(ctx context.Context, imageURL string) (*models.AnalysisResult, error)
	// AnalyzeImageAsync runs AnalyzeImage on its own goroutine. The channel
	// receives exactly one outcome and is then closed.
	AnalyzeImageAsync(ctx context.Context, imageURL string) <-chan AnalysisOutcome
	// VerifyText compares the text read from the image with expectedText.
	VerifyText(ctx context.Context, imageURL, expectedText string) (*models.TextMatchResult, error)

	ValidateImageURL(imageURL string) error
}

// AnalysisOutcome is what AnalyzeImageAsync delivers
type AnalysisOutcome struct {
	Result *models.AnalysisResult
	Err    error
}

type imageAnalysisService struct {
	analyzer  analyzer.Analyzer
	validator *validation.URLValidator
	publisher observer.Publisher
}

// NewImageAnalysisService creates a new image analysis service. publisher
// may be nil.
func NewImageAnalysisService(visionAnalyzer analyzer.Analyzer, publisher observer.Publisher) ImageAnalysisService {
	if publisher == nil {
		publisher = observer.NopPublisher{}
	}
	return &imageAnalysisService{
		analyzer:  visionAnalyzer,
		validator: validation.NewURLValidator(),
		publisher: publisher,
	}
}

func (s *imageAnalysisService) ValidateImageURL(imageURL string) error {
	return s.validator.Validate(imageURL)
}

func (s *imageAnalysisService) AnalyzeImage(ctx context.Context, imageURL string) (*models.AnalysisResult, error) {
	if err := s.ValidateImageURL(imageURL); err != nil {
		return nil, err
	}
	imageURL = strings.TrimSpace(imageURL)

	logger.WithField("image_url", imageURL).Info("Starting image analysis")
	s.publisher.Publish(ctx, observer.Event{Type: observer.AnalysisStarted, ImageURL: imageURL})
	start := time.Now()

	result, err := s.analyzer.Analyze(ctx, imageURL)
	duration := time.Since(start)
	if err != nil {
		logger.WithError(err).WithFields(logrus.Fields{
			"image_url":          imageURL,
			"processing_time_ms": duration.Milliseconds(),
		}).Error("Image analysis failed")
		s.publisher.Publish(ctx, observer.Event{
			Type:     observer.AnalysisFailed,
			ImageURL: imageURL,
			Duration: duration,
			Err:      err,
		})
		return nil, apperrors.NewUpstreamError("image analysis failed", err)
	}

	logger.WithFields(logrus.Fields{
		"image_url":          imageURL,
		"sections":           result.Sections(),
		"processing_time_ms": duration.Milliseconds(),
	}).Info("Image analysis completed")
	s.publisher.Publish(ctx, observer.Event{
		Type:     observer.AnalysisCompleted,
		ImageURL: imageURL,
		Duration: duration,
	})

	return result, nil
}

func (s *imageAnalysisService) AnalyzeImageAsync(ctx context.Context, imageURL string) <-chan AnalysisOutcome {
	out := make(chan AnalysisOutcome, 1)
	go func() {
		defer close(out)
		result, err := s.AnalyzeImage(ctx, imageURL)
		out <- AnalysisOutcome{Result: result, Err: err}
	}()
	return out
}

func (s *imageAnalysisService) VerifyText(ctx context.Context, imageURL, expectedText string) (*models.TextMatchResult, error) {
	if strings.TrimSpace(expectedText) == "" {
		return nil, apperrors.NewValidationError("expected text is required", nil)
	}

	result, err := s.AnalyzeImage(ctx, imageURL)
	if err != nil {
		return nil, err
	}

	extracted := result.Text()
	wordRate, charRate := compareText(expectedText, extracted)

	logger.WithFields(logrus.Fields{
		"image_url":            strings.TrimSpace(imageURL),
		"word_error_rate":      wordRate,
		"character_error_rate": charRate,
	}).Debug("Compared extracted text")

	return &models.TextMatchResult{
		ImageURL:           strings.TrimSpace(imageURL),
		ExtractedText:      extracted,
		ExpectedText:       expectedText,
		WordErrorRate:      wordRate,
		CharacterErrorRate: charRate,
		MatchScore:         matchScore(charRate),
	}, nil
}
