package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/services/cognitiveservices/v3.0/computervision"
	"github.com/Azure/go-autorest/autorest"
	"github.com/disintegration/imaging"

	"cardvault/pkg/models"
)

// AzureDetector reads printed text off a scan with Azure Computer Vision.
// It does not locate cards; its output is plain text lines that the
// free-text strategy mines for "Name (CODE)" pairs.
type AzureDetector struct {
	client  *computervision.BaseClient
	timeout time.Duration
}

// NewAzureDetector creates a detector for the Computer Vision endpoint
func NewAzureDetector(endpoint, apiKey string, timeout time.Duration) *AzureDetector {
	client := computervision.New(endpoint)
	client.Authorizer = autorest.NewCognitiveServicesAuthorizer(apiKey)
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &AzureDetector{client: &client, timeout: timeout}
}

// Detect enhances the image, runs printed-text OCR and returns one line of
// text per recognized line. mode is ignored; OCR sees the whole image.
func (d *AzureDetector) Detect(ctx context.Context, imagePath string, _ models.ScanMode) (string, error) {
	src, err := imaging.Open(imagePath, imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("open image: %w", err)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, EnhanceForOCR(src), imaging.JPEG, imaging.JPEGQuality(90)); err != nil {
		return "", fmt.Errorf("encode enhanced image: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	result, err := d.client.RecognizePrintedTextInStream(
		ctx,
		true,
		io.NopCloser(&buf),
		computervision.OcrLanguagesEn,
	)
	if err != nil {
		return "", classifyAzureError(ctx, err)
	}
	return strings.Join(extractLines(result), "\n"), nil
}

// EnhanceForOCR boosts contrast and sharpness so printed card text reads cleanly
func EnhanceForOCR(src image.Image) image.Image {
	img := imaging.Grayscale(src)
	img = imaging.AdjustContrast(img, 30)
	img = imaging.Sharpen(img, 1.5)
	img = imaging.AdjustBrightness(img, 10)
	img = imaging.AdjustGamma(img, 1.2)

	b := img.Bounds()
	if b.Dx() > 3200 || b.Dy() > 3200 {
		img = imaging.Fit(img, 3200, 3200, imaging.Lanczos)
	}
	return img
}

// extractLines flattens OCR regions into text lines, top to bottom as returned
func extractLines(result computervision.OcrResult) []string {
	var lines []string
	if result.Regions == nil {
		return lines
	}
	for _, region := range *result.Regions {
		if region.Lines == nil {
			continue
		}
		for _, line := range *region.Lines {
			if line.Words == nil {
				continue
			}
			var text strings.Builder
			for _, word := range *line.Words {
				if word.Text == nil {
					continue
				}
				if text.Len() > 0 {
					text.WriteString(" ")
				}
				text.WriteString(*word.Text)
			}
			if text.Len() > 0 {
				lines = append(lines, text.String())
			}
		}
	}
	return lines
}

func classifyAzureError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var detailed autorest.DetailedError
	if errors.As(err, &detailed) {
		if code, ok := detailed.StatusCode.(int); ok && code > 0 {
			return &StatusError{Code: code, Body: detailed.Message}
		}
	}
	return classifyTransportError(err)
}
