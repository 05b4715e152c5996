package models

import (
	"fmt"
	"strings"
)

// Section names of an AnalysisResult, in report order.
const (
	SectionCaption       = "Caption"
	SectionDenseCaptions = "DenseCaptions"
	SectionObjects       = "Objects"
	SectionRead          = "Read"
	SectionTags          = "Tags"
	SectionPeople        = "People"
	SectionSmartCrops    = "SmartCrops"
	SectionMetadata      = "Metadata"
)

// AnalysisResult is the structured record returned by the vision service.
// Every section is optional: nil means the feature was not requested or the
// service found nothing for it. Values are never modified after decoding.
type AnalysisResult struct {
	ModelVersion  string               `json:"modelVersion,omitempty"`
	Caption       *CaptionResult       `json:"caption,omitempty"`
	DenseCaptions *DenseCaptionsResult `json:"denseCaptions,omitempty"`
	Objects       *ObjectsResult       `json:"objects,omitempty"`
	Read          *ReadResult          `json:"read,omitempty"`
	Tags          *TagsResult          `json:"tags,omitempty"`
	People        *PeopleResult        `json:"people,omitempty"`
	SmartCrops    *SmartCropsResult    `json:"smartCrops,omitempty"`
	Metadata      *ImageMetadata       `json:"metadata,omitempty"`
}

// Sections lists the sections present in the result.
func (r *AnalysisResult) Sections() []string {
	if r == nil {
		return nil
	}
	var sections []string
	if r.Caption != nil {
		sections = append(sections, SectionCaption)
	}
	if r.DenseCaptions != nil {
		sections = append(sections, SectionDenseCaptions)
	}
	if r.Objects != nil {
		sections = append(sections, SectionObjects)
	}
	if r.Read != nil {
		sections = append(sections, SectionRead)
	}
	if r.Tags != nil {
		sections = append(sections, SectionTags)
	}
	if r.People != nil {
		sections = append(sections, SectionPeople)
	}
	if r.SmartCrops != nil {
		sections = append(sections, SectionSmartCrops)
	}
	if r.Metadata != nil {
		sections = append(sections, SectionMetadata)
	}
	return sections
}

// Text joins every OCR line of the Read section with newlines.
func (r *AnalysisResult) Text() string {
	if r == nil || r.Read == nil {
		return ""
	}
	var lines []string
	for _, block := range r.Read.Blocks {
		for _, line := range block.Lines {
			lines = append(lines, line.Text)
		}
	}
	return strings.Join(lines, "\n")
}

type CaptionResult struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

type DenseCaptionsResult struct {
	Values []DenseCaption `json:"values"`
}

type DenseCaption struct {
	Text        string      `json:"text"`
	Confidence  float64     `json:"confidence"`
	BoundingBox BoundingBox `json:"boundingBox"`
}

type ObjectsResult struct {
	Values []DetectedObject `json:"values"`
}

// DetectedObject is an object found in the image together with the tags
// describing it, most confident first.
type DetectedObject struct {
	BoundingBox BoundingBox   `json:"boundingBox"`
	Tags        []DetectedTag `json:"tags"`
}

type ReadResult struct {
	Blocks []TextBlock `json:"blocks"`
}

type TextBlock struct {
	Lines []TextLine `json:"lines"`
}

type TextLine struct {
	Text            string       `json:"text"`
	BoundingPolygon []ImagePoint `json:"boundingPolygon"`
	Words           []TextWord   `json:"words"`
}

type TextWord struct {
	Text            string       `json:"text"`
	BoundingPolygon []ImagePoint `json:"boundingPolygon"`
	Confidence      float64      `json:"confidence"`
}

type TagsResult struct {
	Values []DetectedTag `json:"values"`
}

type DetectedTag struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

type PeopleResult struct {
	Values []DetectedPerson `json:"values"`
}

type DetectedPerson struct {
	BoundingBox BoundingBox `json:"boundingBox"`
	Confidence  float64     `json:"confidence"`
}

type SmartCropsResult struct {
	Values []CropRegion `json:"values"`
}

// CropRegion is a suggested crop for one of the requested aspect ratios.
type CropRegion struct {
	AspectRatio float64     `json:"aspectRatio"`
	BoundingBox BoundingBox `json:"boundingBox"`
}

// ImageMetadata describes the analyzed image as seen by the service.
type ImageMetadata struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// BoundingBox is an axis-aligned rectangle in pixel coordinates.
type BoundingBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"w"`
	Height int `json:"h"`
}

func (b BoundingBox) String() string {
	return fmt.Sprintf("{X=%d,Y=%d,Width=%d,Height=%d}", b.X, b.Y, b.Width, b.Height)
}

// ImagePoint is one vertex of a bounding polygon.
type ImagePoint struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (p ImagePoint) String() string {
	return fmt.Sprintf("{X=%d,Y=%d}", p.X, p.Y)
}
