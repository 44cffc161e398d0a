package stage

import (
	"encoding/json"
	"fmt"
	"strings"

	"bobbin/internal/queue"
	"bobbin/internal/services"
	"bobbin/internal/source"
)

// DecodeSource parses the serialized source stored on a queue item.
// On failure it returns a services.ErrValidation suitable for stage Execute methods.
func DecodeSource(item *queue.Item) (source.Source, error) {
	if item == nil {
		return source.Source{}, services.Wrap(services.ErrValidation, "stage", "decode source", "Queue item is nil", nil)
	}
	if strings.TrimSpace(item.SourceJSON) == "" {
		return source.Source{}, services.Wrap(
			services.ErrValidation, "stage", "decode source",
			fmt.Sprintf("Job %d (%s) has no stored source; resubmit it", item.ID, item.Label()), nil)
	}
	var src source.Source
	if err := json.Unmarshal([]byte(item.SourceJSON), &src); err != nil {
		return source.Source{}, services.Wrap(
			services.ErrValidation, "stage", "decode source",
			fmt.Sprintf("Stored source for %q is invalid; resubmit it", item.Label()), err)
	}
	return src, nil
}
