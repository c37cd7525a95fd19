package sceneconfig

import (
	"encoding/json"
	"strings"
	"testing"
)

func validParameters() RenderParameters {
	return RenderParameters{
		ImageWidth:           4,
		ImageHeight:          4,
		TileWidth:            2,
		TileHeight:           2,
		GammaCorrection:      2,
		SamplesPerCheckpoint: 1,
		TotalCheckpoints:     1,
		MaxBounces:           4,
	}
}

func baseConfig() RenderConfig {
	return RenderConfig{
		Name:       "test",
		Parameters: validParameters(),
		Textures: []NamedEntry{
			{Name: "grey", Value: json.RawMessage(`{"type":"solid_color","color":[0.5,0.5,0.5]}`)},
		},
		Materials: []NamedEntry{
			{Name: "diffuse", Value: json.RawMessage(`{"type":"lambertian","texture":"grey"}`)},
		},
		Geometrics: []NamedEntry{
			{Name: "ball", Value: json.RawMessage(`{"type":"sphere","center":[0,0,-1],"radius":0.5,"material":"diffuse"}`)},
		},
		Cameras: []NamedEntry{
			{Name: "main", Value: json.RawMessage(`{"eye":[0,0,0],"target":[0,0,-1],"up":[0,1,0],"vertical_fov_degrees":90,"defocus_angle_degrees":0,"focus_distance":1}`)},
		},
		Scenes: []NamedEntry{
			{Name: "default", Value: json.RawMessage(`{"root":"ball","camera":"main","background":[0.5,0.7,1.0]}`)},
		},
		Scene: "default",
	}
}

func TestCompileResolvesBackwardReferences(t *testing.T) {
	scene, err := Compile(baseConfig(), Assets{}, 1)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if scene.Root == nil || scene.Camera == nil {
		t.Fatalf("compiled scene missing root or camera: %+v", scene)
	}
}

func TestCompileResolvesInlineNesting(t *testing.T) {
	cfg := baseConfig()
	cfg.Geometrics = []NamedEntry{
		{Name: "fancy", Value: json.RawMessage(`{
			"type": "translate",
			"offset": [0, 1, 0],
			"child": {
				"type": "rotate_y",
				"angle_degrees": 45,
				"around": [0, 0, -1],
				"child": {
					"type": "sphere",
					"center": [0, 0, -1],
					"radius": 0.5,
					"material": {
						"type": "specular",
						"roughness": 0.1,
						"texture": {
							"type": "checker",
							"scale": 0.5,
							"even": "grey",
							"odd": {"type": "solid_color", "color": [0.1, 0.1, 0.1]}
						}
					}
				}
			}
		}`)},
	}
	cfg.Scenes = []NamedEntry{
		{Name: "default", Value: json.RawMessage(`{"root":"fancy","camera":"main","background":[0,0,0]}`)},
	}

	if _, err := Compile(cfg, Assets{}, 1); err != nil {
		t.Fatalf("Compile: %v", err)
	}
}

func TestCompileRejectsForwardReference(t *testing.T) {
	cfg := baseConfig()
	cfg.Geometrics = []NamedEntry{
		{Name: "both", Value: json.RawMessage(`{"type":"list","items":["ball"]}`)},
		{Name: "ball", Value: json.RawMessage(`{"type":"sphere","center":[0,0,-1],"radius":0.5,"material":"diffuse"}`)},
	}

	_, err := Compile(cfg, Assets{}, 1)
	if err == nil {
		t.Fatalf("expected error on forward reference")
	}
	if !strings.Contains(err.Error(), `"ball"`) {
		t.Fatalf("error does not name the offending reference: %v", err)
	}
}

func TestCompileRejectsUnknownReference(t *testing.T) {
	cfg := baseConfig()
	cfg.Materials = []NamedEntry{
		{Name: "diffuse", Value: json.RawMessage(`{"type":"lambertian","texture":"no-such-texture"}`)},
	}

	_, err := Compile(cfg, Assets{}, 1)
	if err == nil {
		t.Fatalf("expected error on unknown texture reference")
	}
	if !strings.Contains(err.Error(), `"no-such-texture"`) {
		t.Fatalf("error does not name the offending reference: %v", err)
	}
}

func TestCompileRejectsUnknownType(t *testing.T) {
	cfg := baseConfig()
	cfg.Geometrics = []NamedEntry{
		{Name: "ball", Value: json.RawMessage(`{"type":"hyperboloid","material":"diffuse"}`)},
	}

	if _, err := Compile(cfg, Assets{}, 1); err == nil {
		t.Fatalf("expected error on unknown geometric type")
	}
}

func TestCompileRejectsUnknownSceneSelection(t *testing.T) {
	cfg := baseConfig()
	cfg.Scene = "nope"

	_, err := Compile(cfg, Assets{}, 1)
	if err == nil || !strings.Contains(err.Error(), `"nope"`) {
		t.Fatalf("got %v, want unknown scene error naming %q", err, "nope")
	}
}

func TestCompileRejectsInvalidParameters(t *testing.T) {
	cfg := baseConfig()
	cfg.Parameters.ImageWidth = 0

	if _, err := Compile(cfg, Assets{}, 1); err == nil {
		t.Fatalf("expected error on zero image width")
	}
}

func TestCompileSceneByReference(t *testing.T) {
	cfg := baseConfig()
	cfg.Scenes = append(cfg.Scenes, NamedEntry{Name: "alias", Value: json.RawMessage(`"default"`)})
	cfg.Scene = "alias"

	if _, err := Compile(cfg, Assets{}, 1); err != nil {
		t.Fatalf("Compile: %v", err)
	}
}

func TestRefOrInlineDistinguishesStrings(t *testing.T) {
	name, isRef, err := refOrInline(json.RawMessage(`  "thing"`))
	if err != nil || !isRef || name != "thing" {
		t.Fatalf("got (%q, %v, %v), want (thing, true, nil)", name, isRef, err)
	}
	_, isRef, err = refOrInline(json.RawMessage(`{"type":"solid_color"}`))
	if err != nil || isRef {
		t.Fatalf("inline object misread as reference")
	}
	if _, _, err := refOrInline(json.RawMessage(``)); err == nil {
		t.Fatalf("expected error on empty value")
	}
}
