package service

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	apperrors "github.com/anime-shed/vision-analysis-go/internal/errors"
	"github.com/anime-shed/vision-analysis-go/internal/logger"
	"github.com/anime-shed/vision-analysis-go/internal/observer"
	"github.com/anime-shed/vision-analysis-go/pkg/models"
)

func init() {
	logger.SetOutput(io.Discard)
}

type fakeAnalyzer struct {
	calls  int32
	result *models.AnalysisResult
	err    error
	delay  time.Duration
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, imageURL string) (*models.AnalysisResult, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeAnalyzer) callCount() int {
	return int(atomic.LoadInt32(&f.calls))
}

type recordingObserver struct {
	mu     sync.Mutex
	events []observer.EventType
}

func (r *recordingObserver) OnEvent(ctx context.Context, event observer.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event.Type)
}

func (r *recordingObserver) Name() string { return "recorder" }

func (r *recordingObserver) types() []observer.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]observer.EventType(nil), r.events...)
}

func captionResult(text string) *models.AnalysisResult {
	return &models.AnalysisResult{
		ModelVersion: "2023-10-01",
		Caption:      &models.CaptionResult{Text: text, Confidence: 0.91},
	}
}

func readResult(lines ...string) *models.AnalysisResult {
	block := models.TextBlock{}
	for _, l := range lines {
		block.Lines = append(block.Lines, models.TextLine{Text: l})
	}
	return &models.AnalysisResult{Read: &models.ReadResult{Blocks: []models.TextBlock{block}}}
}

func TestAnalyzeImage_RejectsMissingReferenceWithoutCalling(t *testing.T) {
	fake := &fakeAnalyzer{result: captionResult("a dog")}
	svc := NewImageAnalysisService(fake, nil)

	for _, imageURL := range []string{"", "   ", "relative/path.png", "ftp://example.com/a.png"} {
		_, err := svc.AnalyzeImage(context.Background(), imageURL)
		if !apperrors.IsType(err, apperrors.ErrorTypeValidation) {
			t.Errorf("AnalyzeImage(%q): expected validation error, got %v", imageURL, err)
		}
		if apperrors.GetStatusCode(err) != 400 {
			t.Errorf("AnalyzeImage(%q): expected 400, got %d", imageURL, apperrors.GetStatusCode(err))
		}
	}

	if fake.callCount() != 0 {
		t.Errorf("Expected no analyzer calls, got %d", fake.callCount())
	}
}

func TestAnalyzeImage_Success(t *testing.T) {
	want := captionResult("a dog on a beach")
	fake := &fakeAnalyzer{result: want}
	rec := &recordingObserver{}
	pub := observer.NewEventPublisher()
	pub.Subscribe(rec)
	svc := NewImageAnalysisService(fake, pub)

	got, err := svc.AnalyzeImage(context.Background(), " https://example.com/dog.jpg ")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if got != want {
		t.Error("Expected the analyzer result to be returned unchanged")
	}

	allowed := map[string]bool{
		models.SectionCaption: true, models.SectionDenseCaptions: true, models.SectionObjects: true,
		models.SectionRead: true, models.SectionTags: true, models.SectionPeople: true,
		models.SectionSmartCrops: true, models.SectionMetadata: true,
	}
	for _, section := range got.Sections() {
		if !allowed[section] {
			t.Errorf("Unexpected section %q", section)
		}
	}

	events := rec.types()
	if len(events) != 2 || events[0] != observer.AnalysisStarted || events[1] != observer.AnalysisCompleted {
		t.Errorf("Expected started, completed events; got %v", events)
	}
}

func TestAnalyzeImage_UpstreamFailure(t *testing.T) {
	cause := errors.New("401 PermissionDenied")
	fake := &fakeAnalyzer{err: cause}
	rec := &recordingObserver{}
	pub := observer.NewEventPublisher()
	pub.Subscribe(rec)
	svc := NewImageAnalysisService(fake, pub)

	_, err := svc.AnalyzeImage(context.Background(), "https://example.com/dog.jpg")
	if err == nil {
		t.Fatal("Expected an error")
	}
	if !errors.Is(err, cause) {
		t.Errorf("Expected the analyzer error in the chain, got %v", err)
	}
	if !apperrors.IsType(err, apperrors.ErrorTypeUpstream) {
		t.Errorf("Expected upstream error, got %v", err)
	}
	if apperrors.GetStatusCode(err) != 500 {
		t.Errorf("Expected 500, got %d", apperrors.GetStatusCode(err))
	}
	if fake.callCount() != 1 {
		t.Errorf("Expected exactly one analyzer call, got %d", fake.callCount())
	}

	events := rec.types()
	if len(events) != 2 || events[1] != observer.AnalysisFailed {
		t.Errorf("Expected started, failed events; got %v", events)
	}
}

func TestAnalyzeImageAsync(t *testing.T) {
	want := captionResult("a cat")
	fake := &fakeAnalyzer{result: want, delay: 20 * time.Millisecond}
	svc := NewImageAnalysisService(fake, nil)

	ch := svc.AnalyzeImageAsync(context.Background(), "https://example.com/cat.png")

	select {
	case outcome := <-ch:
		if outcome.Err != nil {
			t.Fatalf("Expected no error, got %v", outcome.Err)
		}
		if outcome.Result != want {
			t.Error("Expected analyzer result")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for async analysis")
	}

	if _, open := <-ch; open {
		t.Error("Expected channel to be closed after the outcome")
	}
}

func TestAnalyzeImageAsync_ValidationError(t *testing.T) {
	fake := &fakeAnalyzer{}
	svc := NewImageAnalysisService(fake, nil)

	outcome := <-svc.AnalyzeImageAsync(context.Background(), "")
	if !apperrors.IsType(outcome.Err, apperrors.ErrorTypeValidation) {
		t.Errorf("Expected validation error, got %v", outcome.Err)
	}
	if fake.callCount() != 0 {
		t.Error("Analyzer must not be called for an empty reference")
	}
}

func TestAnalyzeImage_ConcurrentCalls(t *testing.T) {
	fake := &fakeAnalyzer{result: captionResult("x"), delay: 5 * time.Millisecond}
	svc := NewImageAnalysisService(fake, nil)

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.AnalyzeImage(context.Background(), "https://example.com/x.png"); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("Unexpected error: %v", err)
	}
	if fake.callCount() != n {
		t.Errorf("Expected %d calls, got %d", n, fake.callCount())
	}
}

func TestVerifyText(t *testing.T) {
	tests := []struct {
		name      string
		lines     []string
		expected  string
		wantWER   float64
		wantCER   float64
		wantScore float64
	}{
		{
			name:      "Exact match ignoring case and spacing",
			lines:     []string{"Hello", "WORLD"},
			expected:  "hello   world",
			wantWER:   0,
			wantCER:   0,
			wantScore: 1,
		},
		{
			name:      "One character off",
			lines:     []string{"abce"},
			expected:  "abcd",
			wantWER:   1,
			wantCER:   0.25,
			wantScore: 0.75,
		},
		{
			name:      "Nothing read",
			lines:     nil,
			expected:  "total due",
			wantWER:   1,
			wantCER:   1,
			wantScore: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewImageAnalysisService(&fakeAnalyzer{result: readResult(tt.lines...)}, nil)

			got, err := svc.VerifyText(context.Background(), "https://example.com/receipt.png", tt.expected)
			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			if got.ExpectedText != tt.expected {
				t.Errorf("Expected text %q, got %q", tt.expected, got.ExpectedText)
			}
			if !approxEqual(got.WordErrorRate, tt.wantWER) {
				t.Errorf("WER = %v, want %v", got.WordErrorRate, tt.wantWER)
			}
			if !approxEqual(got.CharacterErrorRate, tt.wantCER) {
				t.Errorf("CER = %v, want %v", got.CharacterErrorRate, tt.wantCER)
			}
			if !approxEqual(got.MatchScore, tt.wantScore) {
				t.Errorf("MatchScore = %v, want %v", got.MatchScore, tt.wantScore)
			}
		})
	}
}

func TestVerifyText_ScoreNeverNegative(t *testing.T) {
	svc := NewImageAnalysisService(&fakeAnalyzer{result: readResult("completely different text")}, nil)

	got, err := svc.VerifyText(context.Background(), "https://example.com/a.png", "ab")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if got.CharacterErrorRate <= 1 {
		t.Errorf("Expected CER above 1, got %v", got.CharacterErrorRate)
	}
	if got.MatchScore != 0 {
		t.Errorf("Expected score clamped to 0, got %v", got.MatchScore)
	}
}

func TestVerifyText_Validation(t *testing.T) {
	fake := &fakeAnalyzer{result: readResult("x")}
	svc := NewImageAnalysisService(fake, nil)

	if _, err := svc.VerifyText(context.Background(), "https://example.com/a.png", " "); !apperrors.IsType(err, apperrors.ErrorTypeValidation) {
		t.Errorf("Expected validation error for empty expected text, got %v", err)
	}
	if _, err := svc.VerifyText(context.Background(), "", "x"); !apperrors.IsType(err, apperrors.ErrorTypeValidation) {
		t.Errorf("Expected validation error for empty URL, got %v", err)
	}
	if fake.callCount() != 0 {
		t.Errorf("Expected no analyzer calls, got %d", fake.callCount())
	}
}

func approxEqual(a, b float64) bool {
	d := a - b
	return d < 1e-9 && d > -1e-9
}
