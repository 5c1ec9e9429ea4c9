// Package ocr talks to the services that read cards out of scan images.
//
// A Detector returns the service's raw answer as text. Interpreting that text
// is the job of the detection package, which tolerates JSON, prose, and
// garbage alike.
package ocr

import (
	"context"
	"errors"
	"fmt"

	"cardvault/pkg/models"
)

// Detector sends one image to a recognition service
type Detector interface {
	Detect(ctx context.Context, imagePath string, mode models.ScanMode) (string, error)
}

var (
	// ErrUnavailable means the service could not be reached
	ErrUnavailable = errors.New("detection service unavailable")
	// ErrTimeout means the service did not answer within the client timeout
	ErrTimeout = errors.New("detection service timed out")
)

// StatusError is a non-success answer from the service
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("detection service returned %d: %s", e.Code, e.Body)
}
