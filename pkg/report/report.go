// Package report renders an AnalysisResult as a plain-text console report.
package report

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/anime-shed/vision-analysis-go/pkg/models"
)

// Print writes the report for result to w. Section headers are always
// written in a fixed order; a section's body lines only when it is present.
func Print(w io.Writer, result *models.AnalysisResult) error {
	if result == nil {
		result = &models.AnalysisResult{}
	}
	bw := bufio.NewWriter(w)
	p := printer{w: bw}

	p.line("Image analysis results:")

	p.line(" Caption:")
	if c := result.Caption; c != nil {
		p.line("   '%s', Confidence %.4f", c.Text, c.Confidence)
	}

	p.line(" Dense Captions:")
	if dc := result.DenseCaptions; dc != nil {
		for _, c := range dc.Values {
			p.line("   '%s', Confidence %.4f, Bounding box %s", c.Text, c.Confidence, c.BoundingBox)
		}
	}

	p.line(" Objects:")
	if objs := result.Objects; objs != nil {
		for _, o := range objs.Values {
			p.line("   '%s', Bounding box %s", firstTagName(o), o.BoundingBox)
		}
	}

	p.line(" Read:")
	if read := result.Read; read != nil {
		for _, block := range read.Blocks {
			for _, line := range block.Lines {
				p.line("   Line: '%s', Bounding Polygon: [%s]", line.Text, polygon(line.BoundingPolygon))
				for _, word := range line.Words {
					p.line("     Word: '%s', Confidence %.4f, Bounding Polygon: [%s]",
						word.Text, word.Confidence, polygon(word.BoundingPolygon))
				}
			}
		}
	}

	p.line(" Tags:")
	if tags := result.Tags; tags != nil {
		for _, t := range tags.Values {
			p.line("   '%s', Confidence %.4f", t.Name, t.Confidence)
		}
	}

	p.line(" People:")
	if people := result.People; people != nil {
		for _, person := range people.Values {
			p.line("   Person: Bounding box %s, Confidence %.4f", person.BoundingBox, person.Confidence)
		}
	}

	p.line(" SmartCrops:")
	if crops := result.SmartCrops; crops != nil {
		for _, crop := range crops.Values {
			p.line("   Aspect ratio: %s, Bounding box: %s",
				strconv.FormatFloat(crop.AspectRatio, 'f', -1, 64), crop.BoundingBox)
		}
	}

	p.line(" Metadata:")
	if md := result.Metadata; md != nil {
		p.line("   Model: %s", result.ModelVersion)
		p.line("   Image width: %d", md.Width)
		p.line("   Image height: %d", md.Height)
	}

	if p.err != nil {
		return p.err
	}
	return bw.Flush()
}

// printer keeps the first write error so Print can report it once
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) line(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format+"\n", args...)
}

func firstTagName(o models.DetectedObject) string {
	if len(o.Tags) == 0 {
		return ""
	}
	return o.Tags[0].Name
}

func polygon(points []models.ImagePoint) string {
	parts := make([]string, len(points))
	for i, pt := range points {
		parts[i] = pt.String()
	}
	return strings.Join(parts, " ")
}
