package analyzer

import (
	"strconv"
	"strings"
)

// VisualFeature is one analysis capability of the vision service
type VisualFeature string

const (
	FeatureCaption       VisualFeature = "caption"
	FeatureDenseCaptions VisualFeature = "denseCaptions"
	FeatureObjects       VisualFeature = "objects"
	FeatureRead          VisualFeature = "read"
	FeatureTags          VisualFeature = "tags"
	FeaturePeople        VisualFeature = "people"
	FeatureSmartCrops    VisualFeature = "smartCrops"
)

// AnalysisOptions holds the per-call settings sent with every request.
// They are fixed when the analyzer is built.
type AnalysisOptions struct {
	Features               []VisualFeature
	Language               string
	GenderNeutralCaption   bool
	SmartCropsAspectRatios []float64
}

// DefaultOptions returns the feature set and options the gateway always uses
func DefaultOptions() AnalysisOptions {
	return AnalysisOptions{
		Features: []VisualFeature{
			FeatureCaption,
			FeatureDenseCaptions,
			FeatureObjects,
			FeatureRead,
			FeatureTags,
			FeaturePeople,
			FeatureSmartCrops,
		},
		Language:               "en",
		GenderNeutralCaption:   true,
		SmartCropsAspectRatios: []float64{0.9, 1.33},
	}
}

// Has reports whether a feature is requested
func (opts AnalysisOptions) Has(feature VisualFeature) bool {
	for _, f := range opts.Features {
		if f == feature {
			return true
		}
	}
	return false
}

func (opts AnalysisOptions) featureList() string {
	names := make([]string, len(opts.Features))
	for i, f := range opts.Features {
		names[i] = string(f)
	}
	return strings.Join(names, ",")
}

func (opts AnalysisOptions) aspectRatioList() string {
	ratios := make([]string, len(opts.SmartCropsAspectRatios))
	for i, r := range opts.SmartCropsAspectRatios {
		ratios[i] = strconv.FormatFloat(r, 'f', -1, 64)
	}
	return strings.Join(ratios, ",")
}
