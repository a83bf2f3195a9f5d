package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation          = errors.New("validation error")
	ErrNotFound            = errors.New("not found")
	ErrUnsupportedLanguage = errors.New("unsupported language")
	ErrConflict            = errors.New("conflict")
	ErrConfiguration       = errors.New("configuration error")
	ErrBackend             = errors.New("ai backend error")
	ErrTransport           = errors.New("ai transport error")
	ErrTimeout             = errors.New("timeout")
	ErrExternalTool        = errors.New("external tool error")
	ErrPipeline            = errors.New("pipeline error")
)

// Kind groups failures by who can act on them.
type Kind string

const (
	KindInput     Kind = "input"
	KindBackend   Kind = "backend"
	KindTransport Kind = "transport"
	KindPipeline  Kind = "pipeline"
	KindInternal  Kind = "internal"
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrPipeline
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// KindOf classifies err. Input errors win over backend and transport markers
// so a rejected request is never reported as an outage.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation), errors.Is(err, ErrNotFound),
		errors.Is(err, ErrUnsupportedLanguage), errors.Is(err, ErrConflict):
		return KindInput
	case errors.Is(err, ErrBackend):
		return KindBackend
	case errors.Is(err, ErrTransport):
		return KindTransport
	case errors.Is(err, ErrPipeline), errors.Is(err, ErrExternalTool), errors.Is(err, ErrTimeout):
		return KindPipeline
	default:
		return KindInternal
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
