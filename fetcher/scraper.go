package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"caixa-imoveis/models"
)

// Fetcher interface defines the contract for feed implementations
type Fetcher interface {
	// Fetch downloads and parses the feed of one region
	Fetch(ctx context.Context, region models.Region) (*models.RawTable, error)
}

var (
	// ErrUnknownRegion is returned for codes outside the closed region set
	ErrUnknownRegion = errors.New("unknown region")
	// ErrNotTabularData is returned when the upstream served an HTML page instead of the feed
	ErrNotTabularData = errors.New("feed is not tabular data")
	// ErrParseFailure is returned when the delimited body is structurally broken
	ErrParseFailure = errors.New("failed to parse feed")
)

// HTTPFailure reports a non-success response. StatusCode is 0 when no response arrived.
type HTTPFailure struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *HTTPFailure) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("request to %s failed: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("request to %s failed with status %d", e.URL, e.StatusCode)
}

func (e *HTTPFailure) Unwrap() error {
	return e.Err
}

// IsRateLimited reports whether err is an upstream 403, which mirrors return under rate limiting
func IsRateLimited(err error) bool {
	var hf *HTTPFailure
	return errors.As(err, &hf) && hf.StatusCode == http.StatusForbidden
}
