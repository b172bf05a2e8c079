package store

import (
	"encoding/json"
	"fmt"

	"github.com/architech-studio/architech/pkg/model"
)

// Envelope kinds carried by UpdateFromWebSocket
const (
	EnvelopeMetrics          = "metrics"
	EnvelopeLogs             = "logs"
	EnvelopeComponentStatus  = "componentStatus"
	EnvelopeConnectionStatus = "connectionStatus"
)

// Envelope is a tagged real-time update.
// Payload holds model.Metrics, []model.LogEntry or StatusPatch depending on Type.
type Envelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// StatusPatch sets the status of a component or connection by id
type StatusPatch struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// MetricsEnvelope wraps a metrics replacement
func MetricsEnvelope(m model.Metrics) Envelope {
	return Envelope{Type: EnvelopeMetrics, Payload: m}
}

// LogsEnvelope wraps a batch of log entries, most recent first
func LogsEnvelope(entries []model.LogEntry) Envelope {
	return Envelope{Type: EnvelopeLogs, Payload: entries}
}

// DecodeEnvelope parses a wire envelope into its typed payload.
// Unknown types decode successfully with a nil payload so the reducer can ignore them.
func DecodeEnvelope(data []byte) (Envelope, error) {
	var raw struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Envelope{}, fmt.Errorf("failed to decode envelope: %w", err)
	}

	env := Envelope{Type: raw.Type}
	var err error
	switch raw.Type {
	case EnvelopeMetrics:
		var m model.Metrics
		err = json.Unmarshal(raw.Payload, &m)
		env.Payload = m
	case EnvelopeLogs:
		var entries []model.LogEntry
		err = json.Unmarshal(raw.Payload, &entries)
		env.Payload = entries
	case EnvelopeComponentStatus, EnvelopeConnectionStatus:
		var patch StatusPatch
		err = json.Unmarshal(raw.Payload, &patch)
		env.Payload = patch
	}
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to decode %s payload: %w", raw.Type, err)
	}
	return env, nil
}
