package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// ClientInputError is a caller mistake such as a missing question.
type ClientInputError struct {
	Message string
}

func (e *ClientInputError) Error() string { return e.Message }

// InvalidImageError reports an image payload that could not be decoded.
type InvalidImageError struct {
	Reason string
}

func (e *InvalidImageError) Error() string { return "invalid image: " + e.Reason }

// Upstream stages.
const (
	StageCaptioning = "captioning"
	StageGeneration = "generation"
)

// UpstreamError is a failure of an external model call.
type UpstreamError struct {
	Stage   string
	Status  int
	Message string
	Err     error
}

func (e *UpstreamError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s upstream error %d: %s", e.Stage, e.Status, e.Message)
	}
	return fmt.Sprintf("%s upstream error: %s", e.Stage, e.Message)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// CorpusLoadError means the persisted index is inconsistent.
type CorpusLoadError struct {
	Reason string
	Err    error
}

func (e *CorpusLoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("corpus load: %s: %v", e.Reason, e.Err)
	}
	return "corpus load: " + e.Reason
}

func (e *CorpusLoadError) Unwrap() error { return e.Err }

// DimensionMismatchError means a vector does not match the index dimensionality.
type DimensionMismatchError struct {
	Expected int
	Got      int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}

// IsClientError reports whether err should be surfaced as a 4xx.
func IsClientError(err error) bool {
	var ce *ClientInputError
	var ie *InvalidImageError
	return errors.As(err, &ce) || errors.As(err, &ie)
}

// HTTPStatus maps an error to the response status code.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case IsClientError(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
