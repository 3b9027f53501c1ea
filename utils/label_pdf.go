package utils

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"parcelhub/attributes"
	"parcelhub/models"
)

//go:embed templates/label.html
var templateFS embed.FS

var labelTemplate = template.Must(template.ParseFS(templateFS, "templates/label.html"))

// LabelData is what gets printed on a shipping label.
type LabelData struct {
	Package       *models.Package
	ShipmentType  attributes.ShipmentType
	PullID        string
	Destiny       string
	DestinySource attributes.Source
	Agency        string
	AgencySource  attributes.Source
	CarrierGuide  string
	GuideSource   attributes.Source
	PrintedAt     string
}

// NewLabelData flattens the effective attributes of pkg for the template.
func NewLabelData(pkg *models.Package, shipment attributes.ShipmentType, eff attributes.Effective, at time.Time) LabelData {
	d := LabelData{
		Package:       pkg,
		ShipmentType:  shipment,
		DestinySource: eff.Destiny.Source,
		AgencySource:  eff.Agency.Source,
		GuideSource:   eff.GuideNumber.Source,
		PrintedAt:     at.Format("02-Jan-2006 15:04"),
	}
	if pkg.HasPull() {
		d.PullID = *pkg.PullID
	}
	if v := eff.Destiny.Value; v != nil {
		d.Destiny = *v
	}
	if v := eff.Agency.Value; v != nil {
		d.Agency = v.Name
		if d.Agency == "" {
			d.Agency = v.ID
		}
	}
	if v := eff.GuideNumber.Value; v != nil {
		d.CarrierGuide = *v
	}
	return d
}

// RenderLabelHTML executes the label template.
func RenderLabelHTML(data LabelData) ([]byte, error) {
	var buf bytes.Buffer
	if err := labelTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render label: %w", err)
	}
	return buf.Bytes(), nil
}

// ChromeLabelRenderer prints labels to PDF with headless Chrome.
type ChromeLabelRenderer struct {
	Timeout time.Duration
}

// GenerateLabelPDF renders the label and prints it on an A6 page.
func (c ChromeLabelRenderer) GenerateLabelPDF(ctx context.Context, data LabelData) ([]byte, error) {
	html, err := RenderLabelHTML(data)
	if err != nil {
		return nil, err
	}

	tmpHTML := filepath.Join(os.TempDir(), fmt.Sprintf("label_%s_%d.html", data.Package.ID, time.Now().UnixNano()))
	if err := os.WriteFile(tmpHTML, html, 0644); err != nil {
		return nil, err
	}
	defer os.Remove(tmpHTML)

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	ctx, cancelChrome := chromedp.NewContext(ctx)
	defer cancelChrome()

	var pdfBuf []byte
	err = chromedp.Run(ctx,
		chromedp.Navigate("file://"+tmpHTML),
		chromedp.WaitReady("body"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			pdfBuf, _, err = page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(4.13).  // A6 width
				WithPaperHeight(5.83). // A6 height
				Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("print label: %w", err)
	}
	return pdfBuf, nil
}
