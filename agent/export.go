// Config import/export as a portable JSON envelope.
//
// Information Hiding:
// - Envelope format and version tag
// - Imported ids and timestamps are never trusted

package agent

import (
	"encoding/json"
	"fmt"
)

const (
	exportVersion = 1
	exportType    = "cortex-agent-config"
)

// exportEnvelope wraps a config with a format tag so foreign JSON
// cannot be imported by accident.
type exportEnvelope struct {
	Version    int     `json:"version"`
	Type       string  `json:"type"`
	ExportedAt int64   `json:"exportedAt"`
	Config     *Config `json:"config"`
}

func encodeExport(cfg *Config) (string, error) {
	data, err := json.MarshalIndent(exportEnvelope{
		Version:    exportVersion,
		Type:       exportType,
		ExportedAt: nowMillis(),
		Config:     cfg,
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode agent config: %w", err)
	}
	return string(data), nil
}

func decodeExport(raw string) (*Config, error) {
	var envelope exportEnvelope
	if err := json.Unmarshal([]byte(raw), &envelope); err != nil {
		return nil, fmt.Errorf("malformed agent export: %w", err)
	}
	if envelope.Type != exportType {
		return nil, fmt.Errorf("malformed agent export: unexpected type tag %q", envelope.Type)
	}
	if envelope.Config == nil {
		return nil, fmt.Errorf("malformed agent export: missing config")
	}
	return envelope.Config, nil
}
