package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidSource = errors.New("invalid source")
	ErrAcquisition   = errors.New("acquisition error")
	ErrTranscription = errors.New("transcription error")
	ErrMerge         = errors.New("merge error")
	ErrPostprocess   = errors.New("post-processing error")
	ErrExport        = errors.New("export error")

	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

var kindMarkers = []struct {
	marker error
	kind   string
}{
	{ErrInvalidSource, "invalid_source"},
	{ErrAcquisition, "acquisition"},
	{ErrTranscription, "transcription"},
	{ErrMerge, "merge"},
	{ErrPostprocess, "postprocess"},
	{ErrExport, "export"},
	{ErrValidation, "validation"},
	{ErrConfiguration, "configuration"},
	{ErrNotFound, "not_found"},
	{ErrTimeout, "timeout"},
	{ErrExternalTool, "external_tool"},
	{ErrTransient, "transient"},
}

// FailureKind returns a short classification label for err, suitable for the
// error_kind log field and the job's persisted error kind.
func FailureKind(err error) string {
	if err == nil {
		return ""
	}
	for _, km := range kindMarkers {
		if errors.Is(err, km.marker) {
			return km.kind
		}
	}
	return "unknown"
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
