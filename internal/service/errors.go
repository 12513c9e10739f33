package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/MimeLyc/video-captioner/internal/caption"
	"github.com/MimeLyc/video-captioner/internal/render"
	"github.com/MimeLyc/video-captioner/pkg/log"
)

type ErrorType int

const (
	// ErrInvalidSegmentInput marks a rejected word batch. It is absorbed by
	// the segmenter and never surfaced to callers.
	ErrInvalidSegmentInput ErrorType = iota
	ErrNoValidSegments
	ErrRender
	ErrSourceFetch
	ErrUpload
	ErrValidation
	ErrConfig
	ErrCanceled
	ErrUnknown
)

type CaptionError struct {
	Type    ErrorType
	Message string
	Context map[string]any
	Cause   error
}

func NewError(errorType ErrorType, message string) *CaptionError {
	return &CaptionError{
		Type:    errorType,
		Message: message,
		Context: make(map[string]any),
	}
}

func NewErrorWithCause(errorType ErrorType, message string, cause error) *CaptionError {
	return &CaptionError{
		Type:    errorType,
		Message: message,
		Context: make(map[string]any),
		Cause:   cause,
	}
}

func (e *CaptionError) Error() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("[%s] %s", e.Type.String(), e.Message))

	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		ctxParts := make([]string, 0, len(keys))
		for _, k := range keys {
			ctxParts = append(ctxParts, fmt.Sprintf("%s=%v", k, e.Context[k]))
		}
		parts = append(parts, fmt.Sprintf("context: %s", strings.Join(ctxParts, ", ")))
	}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause: %v", e.Cause))
	}

	return strings.Join(parts, " | ")
}

func (e *CaptionError) Unwrap() error {
	return e.Cause
}

func (e *CaptionError) WithContext(key string, value any) *CaptionError {
	e.Context[key] = value
	return e
}

func (t ErrorType) String() string {
	switch t {
	case ErrInvalidSegmentInput:
		return "InvalidSegmentInput"
	case ErrNoValidSegments:
		return "NoValidSegments"
	case ErrRender:
		return "RenderFailure"
	case ErrSourceFetch:
		return "SourceFetchFailure"
	case ErrUpload:
		return "UploadFailure"
	case ErrValidation:
		return "Validation"
	case ErrConfig:
		return "Config"
	case ErrCanceled:
		return "Canceled"
	default:
		return "Unknown"
	}
}

type ErrorHandler interface {
	Handle(err error) bool
	GetAdvice(err *CaptionError) string
}

type DefaultErrorHandler struct{}

func NewDefaultErrorHandler() ErrorHandler {
	return &DefaultErrorHandler{}
}

func (h *DefaultErrorHandler) Handle(err error) bool {
	var capErr *CaptionError
	if !errors.As(err, &capErr) {
		log.Error("Unknown Error: %v", err)
		return false
	}

	log.Error("Error Detail: %v | advice: %s", err, h.GetAdvice(capErr))
	return true
}

// GetAdvice returns error handling advice
func (h *DefaultErrorHandler) GetAdvice(err *CaptionError) string {
	switch err.Type {
	case ErrNoValidSegments:
		return "Check that the transcript has word timings inside the video duration with end after start"
	case ErrRender:
		return "Check that ffmpeg is installed, the font file exists, and the source video is not corrupted"
	case ErrSourceFetch:
		return "Check that video_url is reachable from the server and points to a playable video"
	case ErrUpload:
		return "Check the storage provider settings and that the storage location is writable"
	case ErrValidation:
		return "Check the request body against the documented schema"
	case ErrConfig:
		return "Check that environment variables are set correctly"
	case ErrCanceled:
		return "The job was cancelled, usually because the server is shutting down; resubmit it"
	default:
		return "Review the detailed error information and the server logs"
	}
}

func IsErrorType(err error, errorType ErrorType) bool {
	var capErr *CaptionError
	if errors.As(err, &capErr) {
		return capErr.Type == errorType
	}
	return false
}

func WrapError(err error, errorType ErrorType, message string) *CaptionError {
	return NewErrorWithCause(errorType, message, err)
}

// Classify maps errors from the pipeline stages onto the taxonomy. Errors
// that already carry a type are returned unchanged.
func Classify(err error, fallback ErrorType, message string) error {
	if err == nil {
		return nil
	}
	var capErr *CaptionError
	if errors.As(err, &capErr) {
		return err
	}

	var renderErr *render.RenderFailure
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return WrapError(err, ErrCanceled, message)
	case errors.Is(err, caption.ErrNoValidSegments):
		return WrapError(err, ErrNoValidSegments, message)
	case errors.As(err, &renderErr):
		return WrapError(err, ErrRender, message).WithContext("segment", renderErr.SegmentIndex)
	default:
		return WrapError(err, fallback, message)
	}
}

func SafeExecute(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = NewError(ErrUnknown, fmt.Sprintf("runtime error: %v", r))
		}
	}()

	return fn()
}
