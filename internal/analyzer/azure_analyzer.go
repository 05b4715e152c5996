package analyzer

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"

	apperrors "github.com/anime-shed/vision-analysis-go/internal/errors"
	"github.com/anime-shed/vision-analysis-go/pkg/models"
)

const (
	moduleName    = "vision-analysis-go/analyzer"
	moduleVersion = "v1.0.0"

	apiVersion  = "2024-02-01"
	analyzePath = "computervision/imageanalysis:analyze"
	keyHeader   = "Ocp-Apim-Subscription-Key"
)

// azureAnalyzer calls the Azure AI Vision Image Analysis 4.0 REST API.
// The pipeline is built once and shared by every request.
type azureAnalyzer struct {
	endpoint string
	pipeline runtime.Pipeline
	options  AnalysisOptions
}

type analyzeRequest struct {
	URL string `json:"url"`
}

// analyzeResponse is the wire shape of a successful analyze call
type analyzeResponse struct {
	ModelVersion        string                      `json:"modelVersion"`
	CaptionResult       *models.CaptionResult       `json:"captionResult"`
	DenseCaptionsResult *models.DenseCaptionsResult `json:"denseCaptionsResult"`
	ObjectsResult       *models.ObjectsResult       `json:"objectsResult"`
	ReadResult          *models.ReadResult          `json:"readResult"`
	TagsResult          *models.TagsResult          `json:"tagsResult"`
	PeopleResult        *models.PeopleResult        `json:"peopleResult"`
	SmartCropsResult    *models.SmartCropsResult    `json:"smartCropsResult"`
	Metadata            *models.ImageMetadata       `json:"metadata"`
}

// apiKeyPolicy attaches the subscription key to every request
type apiKeyPolicy struct {
	key string
}

func (p *apiKeyPolicy) Do(req *policy.Request) (*http.Response, error) {
	req.Raw().Header.Set(keyHeader, p.key)
	return req.Next()
}

// NewAzureAnalyzer creates an analyzer for the given endpoint and key using
// DefaultOptions. A nil httpClient selects the azcore default transport.
// Retries are disabled: every failure reaches the caller as is.
func NewAzureAnalyzer(endpoint, key string, httpClient *http.Client) (Analyzer, error) {
	return NewAzureAnalyzerWithOptions(endpoint, key, httpClient, DefaultOptions())
}

// NewAzureAnalyzerWithOptions is NewAzureAnalyzer with explicit options
func NewAzureAnalyzerWithOptions(endpoint, key string, httpClient *http.Client, options AnalysisOptions) (Analyzer, error) {
	endpoint = strings.TrimSpace(endpoint)
	parsed, err := url.Parse(endpoint)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, apperrors.NewConfigurationError(fmt.Sprintf("invalid vision endpoint %q", endpoint), err)
	}
	if strings.TrimSpace(key) == "" {
		return nil, apperrors.NewConfigurationError("vision key is required", nil)
	}
	if len(options.Features) == 0 {
		return nil, apperrors.NewConfigurationError("at least one visual feature is required", nil)
	}

	clientOptions := &policy.ClientOptions{
		Retry:           policy.RetryOptions{MaxRetries: -1},
		PerCallPolicies: []policy.Policy{&apiKeyPolicy{key: key}},
	}
	if httpClient != nil {
		clientOptions.Transport = httpClient
	}

	return &azureAnalyzer{
		endpoint: strings.TrimRight(endpoint, "/"),
		pipeline: runtime.NewPipeline(moduleName, moduleVersion, runtime.PipelineOptions{}, clientOptions),
		options:  options,
	}, nil
}

// Analyze implements Analyzer
func (a *azureAnalyzer) Analyze(ctx context.Context, imageURL string) (*models.AnalysisResult, error) {
	req, err := runtime.NewRequest(ctx, http.MethodPost, runtime.JoinPaths(a.endpoint, analyzePath))
	if err != nil {
		return nil, err
	}

	query := req.Raw().URL.Query()
	query.Set("api-version", apiVersion)
	query.Set("features", a.options.featureList())
	if a.options.Language != "" {
		query.Set("language", a.options.Language)
	}
	if a.options.Has(FeatureCaption) || a.options.Has(FeatureDenseCaptions) {
		query.Set("gender-neutral-caption", strconv.FormatBool(a.options.GenderNeutralCaption))
	}
	if a.options.Has(FeatureSmartCrops) && len(a.options.SmartCropsAspectRatios) > 0 {
		query.Set("smartcrops-aspect-ratios", a.options.aspectRatioList())
	}
	req.Raw().URL.RawQuery = query.Encode()
	req.Raw().Header.Set("Accept", "application/json")

	if err := runtime.MarshalAsJSON(req, analyzeRequest{URL: imageURL}); err != nil {
		return nil, err
	}

	resp, err := a.pipeline.Do(req)
	if err != nil {
		return nil, err
	}
	if !runtime.HasStatusCode(resp, http.StatusOK) {
		return nil, runtime.NewResponseError(resp)
	}

	var body analyzeResponse
	if err := runtime.UnmarshalAsJSON(resp, &body); err != nil {
		return nil, err
	}
	return body.toResult(), nil
}

func (r *analyzeResponse) toResult() *models.AnalysisResult {
	return &models.AnalysisResult{
		ModelVersion:  r.ModelVersion,
		Caption:       r.CaptionResult,
		DenseCaptions: r.DenseCaptionsResult,
		Objects:       r.ObjectsResult,
		Read:          r.ReadResult,
		Tags:          r.TagsResult,
		People:        r.PeopleResult,
		SmartCrops:    r.SmartCropsResult,
		Metadata:      r.Metadata,
	}
}
