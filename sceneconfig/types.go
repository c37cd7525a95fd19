// Package sceneconfig implements the RenderConfig wire format and the
// named-entry resolver that turns it into a compiled scene graph. Parsing
// the raw JSON bytes into these Go types is as far as deserialization goes
// here; the byte-level grammar itself is encoding/json's job.
package sceneconfig

import (
	"encoding/json"
	"fmt"
)

// RenderParameters controls the tracer's sampling and tiling behavior.
type RenderParameters struct {
	ImageWidth           int     `json:"image_width"`
	ImageHeight          int     `json:"image_height"`
	TileWidth            int     `json:"tile_width"`
	TileHeight           int     `json:"tile_height"`
	GammaCorrection      float64 `json:"gamma_correction"`
	SamplesPerCheckpoint int     `json:"samples_per_checkpoint"`
	TotalCheckpoints     int     `json:"total_checkpoints"`
	SavedCheckpointLimit *int    `json:"saved_checkpoint_limit,omitempty"`
	MaxBounces           int     `json:"max_bounces"`
	UseScalingTruncation bool    `json:"use_scaling_truncation"`
}

// Validate checks the structural invariants a compiled Scene can't enforce
// on its own.
func (p RenderParameters) Validate() error {
	switch {
	case p.ImageWidth <= 0 || p.ImageHeight <= 0:
		return fmt.Errorf("sceneconfig: image dimensions must be positive, got %dx%d", p.ImageWidth, p.ImageHeight)
	case p.TileWidth <= 0 || p.TileHeight <= 0:
		return fmt.Errorf("sceneconfig: tile dimensions must be positive, got %dx%d", p.TileWidth, p.TileHeight)
	case p.GammaCorrection <= 0:
		return fmt.Errorf("sceneconfig: gamma_correction must be positive, got %v", p.GammaCorrection)
	case p.SamplesPerCheckpoint <= 0:
		return fmt.Errorf("sceneconfig: samples_per_checkpoint must be positive, got %d", p.SamplesPerCheckpoint)
	case p.TotalCheckpoints < 0:
		return fmt.Errorf("sceneconfig: total_checkpoints must be non-negative, got %d", p.TotalCheckpoints)
	case p.MaxBounces < 0:
		return fmt.Errorf("sceneconfig: max_bounces must be non-negative, got %d", p.MaxBounces)
	}
	return nil
}

// NamedEntry is one row of an ordered named-entry table: Value is either a
// bare JSON string (a reference to a previously declared entry of the same
// kind) or an inline object carrying a "type" discriminant.
type NamedEntry struct {
	Name  string          `json:"name"`
	Value json.RawMessage `json:"value"`
}

// RenderConfig is the top-level wire document.
type RenderConfig struct {
	Name       string           `json:"name"`
	Parameters RenderParameters `json:"parameters"`
	Textures   []NamedEntry     `json:"textures"`
	Materials  []NamedEntry     `json:"materials"`
	Geometrics []NamedEntry     `json:"geometrics"`
	Cameras    []NamedEntry     `json:"cameras"`
	Scenes     []NamedEntry     `json:"scenes"`
	Scene      string           `json:"scene"`
}

// Vec3 is the wire representation of a geom.Vector: a 3-element JSON array.
type Vec3 [3]float64

// refOrInline inspects raw to decide whether it is a bare string reference
// or an inline object; returns (name, true, nil) for a reference and
// ("", false, nil) for an inline definition.
func refOrInline(raw json.RawMessage) (name string, isRef bool, err error) {
	trimmed := trimLeadingSpace(raw)
	if len(trimmed) == 0 {
		return "", false, fmt.Errorf("sceneconfig: empty value")
	}
	if trimmed[0] != '"' {
		return "", false, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false, fmt.Errorf("sceneconfig: decoding string reference: %w", err)
	}
	return s, true, nil
}

func trimLeadingSpace(raw json.RawMessage) json.RawMessage {
	i := 0
	for i < len(raw) {
		switch raw[i] {
		case ' ', '\t', '\n', '\r':
			i++
			continue
		}
		break
	}
	return raw[i:]
}

// discriminant reads the "type" field of an inline object.
func discriminant(raw json.RawMessage) (string, error) {
	var tagged struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &tagged); err != nil {
		return "", fmt.Errorf("sceneconfig: decoding type discriminant: %w", err)
	}
	if tagged.Type == "" {
		return "", fmt.Errorf("sceneconfig: inline object missing \"type\"")
	}
	return tagged.Type, nil
}
