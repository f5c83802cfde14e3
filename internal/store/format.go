package store

import (
	"encoding/json"

	"github.com/priceye/pricing-engine/internal/pricingerr"
)

type sidecarEnvelope struct {
	Format string `json:"format"`
}

// sidecarFormat extracts the declared format from a sidecar payload,
// defaulting to "json" when the field is absent (legacy sidecars), and
// refusing to guess on anything it doesn't recognize.
func sidecarFormat(sidecar []byte) (string, error) {
	var env sidecarEnvelope
	if err := json.Unmarshal(sidecar, &env); err != nil {
		return "", pricingerr.ModelLifecycle("sidecar is not valid JSON", err)
	}
	switch env.Format {
	case "", "json":
		return "json", nil
	case "gob":
		return "gob", nil
	default:
		return "", pricingerr.ModelLifecycle("unknown sidecar format", nil).WithContext("format", env.Format)
	}
}
