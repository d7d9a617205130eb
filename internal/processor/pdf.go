package processor

import (
	"context"
	"errors"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

const MetadataPageCount = "pageCount"

// ErrMalformedPDF is returned when a declared pdf cannot be parsed.
var ErrMalformedPDF = errors.New("malformed pdf")

// PDFInspector validates the structure of a pdf and reports its page count.
type PDFInspector struct {
	conf *model.Configuration
}

func NewPDFInspector() *PDFInspector {
	api.DisableConfigDir()
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &PDFInspector{conf: conf}
}

func (p *PDFInspector) Process(ctx context.Context, in Input) (*Artifact, error) {
	if in.Source == nil {
		return nil, fmt.Errorf("%w: no content", ErrMalformedPDF)
	}
	pages, err := api.PageCount(in.Source, p.conf)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPDF, err)
	}
	return &Artifact{Metadata: map[string]any{MetadataPageCount: pages}}, nil
}
