package models

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// UploadAnalysisResponse is returned by the upload endpoint: where the
// staged copy lives and what the vision service found in it.
type UploadAnalysisResponse struct {
	ImageURL string          `json:"imageUrl"`
	Analysis *AnalysisResult `json:"analysis"`
}

// TextMatchResult compares the OCR output of an image with the text the
// caller expected to find in it.
type TextMatchResult struct {
	ImageURL           string  `json:"imageUrl"`
	ExtractedText      string  `json:"extractedText"`
	ExpectedText       string  `json:"expectedText"`
	WordErrorRate      float64 `json:"wordErrorRate"`
	CharacterErrorRate float64 `json:"characterErrorRate"`
	MatchScore         float64 `json:"matchScore"`
}

// HealthResponse is served on /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Time    string `json:"time"`
}
