package sceneconfig

import (
	"encoding/json"
	"fmt"
	"image"
	"io"
	"math/rand"

	"github.com/paulwrubel/luxide/geom"
	"github.com/paulwrubel/luxide/scenegraph"
	"github.com/paulwrubel/luxide/shading"
)

// Assets supplies the externally decoded resources a RenderConfig may name
// by reference: image textures and mesh files. The resolver only wires
// already-decoded values in; decoding them is the caller's job.
type Assets struct {
	Images map[string]image.Image
	Meshes map[string]io.Reader
}

// resolver holds the five named-entry maps as they are built, in
// declaration order, erroring on forward or unknown references.
type resolver struct {
	assets Assets
	rng    *rand.Rand

	textures   map[string]shading.Texture
	materials  map[string]shading.Material
	geometrics map[string]scenegraph.Hittable
	cameras    map[string]*scenegraph.Camera
	scenes     map[string]*scenegraph.Scene
}

// Compile materializes a named+inlined RenderConfig into the shared
// immutable scene named by cfg.Scene. seed makes Noise textures
// reproducible across recompiles of the same config (e.g. after a process
// restart resuming a paused render).
func Compile(cfg RenderConfig, assets Assets, seed int64) (*scenegraph.Scene, error) {
	if err := cfg.Parameters.Validate(); err != nil {
		return nil, err
	}

	r := &resolver{
		assets:     assets,
		rng:        rand.New(rand.NewSource(seed)),
		textures:   make(map[string]shading.Texture),
		materials:  make(map[string]shading.Material),
		geometrics: make(map[string]scenegraph.Hittable),
		cameras:    make(map[string]*scenegraph.Camera),
		scenes:     make(map[string]*scenegraph.Scene),
	}

	for _, e := range cfg.Textures {
		t, err := r.resolveTexture(e.Value)
		if err != nil {
			return nil, fmt.Errorf("sceneconfig: texture %q: %w", e.Name, err)
		}
		r.textures[e.Name] = t
	}
	for _, e := range cfg.Materials {
		m, err := r.resolveMaterial(e.Value)
		if err != nil {
			return nil, fmt.Errorf("sceneconfig: material %q: %w", e.Name, err)
		}
		r.materials[e.Name] = m
	}
	for _, e := range cfg.Geometrics {
		g, err := r.resolveGeometric(e.Value)
		if err != nil {
			return nil, fmt.Errorf("sceneconfig: geometric %q: %w", e.Name, err)
		}
		r.geometrics[e.Name] = g
	}
	for _, e := range cfg.Cameras {
		c, err := r.resolveCamera(e.Value)
		if err != nil {
			return nil, fmt.Errorf("sceneconfig: camera %q: %w", e.Name, err)
		}
		r.cameras[e.Name] = c
	}
	for _, e := range cfg.Scenes {
		s, err := r.resolveScene(e.Value)
		if err != nil {
			return nil, fmt.Errorf("sceneconfig: scene %q: %w", e.Name, err)
		}
		r.scenes[e.Name] = s
	}

	scene, ok := r.scenes[cfg.Scene]
	if !ok {
		return nil, fmt.Errorf("sceneconfig: unknown scene %q", cfg.Scene)
	}
	scene.Camera.Initialize(cfg.Parameters.ImageWidth, cfg.Parameters.ImageHeight)
	return scene, nil
}

func toVector(v Vec3) geom.Vector  { return geom.Vector{X: v[0], Y: v[1], Z: v[2]} }
func toColor(v Vec3) shading.Color { return shading.Color{R: v[0], G: v[1], B: v[2]} }

// --- textures ---

type textureDoc struct {
	Type  string          `json:"type"`
	Color Vec3            `json:"color"`
	Scale float64         `json:"scale"`
	Even  json.RawMessage `json:"even"`
	Odd   json.RawMessage `json:"odd"`
	Asset string          `json:"asset"`
	Depth int             `json:"depth"`
}

func (r *resolver) resolveTexture(raw json.RawMessage) (shading.Texture, error) {
	if name, isRef, err := refOrInline(raw); err != nil {
		return nil, err
	} else if isRef {
		t, ok := r.textures[name]
		if !ok {
			return nil, fmt.Errorf("unknown texture reference %q (forward or undeclared)", name)
		}
		return t, nil
	}

	typ, err := discriminant(raw)
	if err != nil {
		return nil, err
	}
	var doc textureDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decoding texture: %w", err)
	}

	switch typ {
	case "solid_color":
		return shading.SolidColor{Color: toColor(doc.Color)}, nil
	case "checker":
		even, err := r.resolveTexture(doc.Even)
		if err != nil {
			return nil, fmt.Errorf("checker.even: %w", err)
		}
		odd, err := r.resolveTexture(doc.Odd)
		if err != nil {
			return nil, fmt.Errorf("checker.odd: %w", err)
		}
		return shading.Checker{Scale: doc.Scale, Even: even, Odd: odd}, nil
	case "image":
		img, ok := r.assets.Images[doc.Asset]
		if !ok {
			return nil, fmt.Errorf("unknown image asset %q", doc.Asset)
		}
		return shading.Image{Img: img}, nil
	case "noise":
		depth := doc.Depth
		if depth == 0 {
			depth = 7
		}
		perlin := shading.NewPerlin(r.rng)
		scale := doc.Scale
		if scale == 0 {
			scale = 1
		}
		return shading.Noise{
			Albedo:     toColor(doc.Color),
			InputScale: scale,
			Field: func(p geom.Point) float64 {
				return perlin.Turbulence(p, depth)
			},
			OutputMap: shading.TurbulenceOutputMap(10),
		}, nil
	default:
		return nil, fmt.Errorf("unknown texture type %q", typ)
	}
}

// --- materials ---

type materialDoc struct {
	Type            string          `json:"type"`
	Texture         json.RawMessage `json:"texture"`
	Roughness       float64         `json:"roughness"`
	RefractionIndex float64         `json:"refraction_index"`
}

func (r *resolver) resolveMaterial(raw json.RawMessage) (shading.Material, error) {
	if name, isRef, err := refOrInline(raw); err != nil {
		return nil, err
	} else if isRef {
		m, ok := r.materials[name]
		if !ok {
			return nil, fmt.Errorf("unknown material reference %q (forward or undeclared)", name)
		}
		return m, nil
	}

	typ, err := discriminant(raw)
	if err != nil {
		return nil, err
	}
	var doc materialDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decoding material: %w", err)
	}

	needTexture := func() (shading.Texture, error) { return r.resolveTexture(doc.Texture) }

	switch typ {
	case "lambertian":
		tex, err := needTexture()
		if err != nil {
			return nil, fmt.Errorf("lambertian.texture: %w", err)
		}
		return shading.Lambertian{Texture: tex}, nil
	case "specular":
		tex, err := needTexture()
		if err != nil {
			return nil, fmt.Errorf("specular.texture: %w", err)
		}
		return shading.Specular{Texture: tex, Roughness: doc.Roughness}, nil
	case "dielectric":
		return shading.Dielectric{RefractionIndex: doc.RefractionIndex}, nil
	case "isotropic":
		tex, err := needTexture()
		if err != nil {
			return nil, fmt.Errorf("isotropic.texture: %w", err)
		}
		return shading.Isotropic{Texture: tex}, nil
	case "light":
		tex, err := needTexture()
		if err != nil {
			return nil, fmt.Errorf("light.texture: %w", err)
		}
		return shading.Light{Texture: tex}, nil
	default:
		return nil, fmt.Errorf("unknown material type %q", typ)
	}
}

// --- geometrics ---

// geometricDocRaw is the union of every geometric kind's JSON fields; only
// the fields relevant to doc.Type are populated after decode.
type geometricDocRaw struct {
	Type string `json:"type"`

	Center    Vec3    `json:"center"`
	CenterEnd Vec3    `json:"center_end"`
	Radius    float64 `json:"radius"`

	Q Vec3 `json:"q"`
	U Vec3 `json:"u"`
	V Vec3 `json:"v"`

	A Vec3 `json:"a"`
	B Vec3 `json:"b"`
	C Vec3 `json:"c"`

	NormalA  *Vec3             `json:"normal_a"`
	NormalB  *Vec3             `json:"normal_b"`
	NormalC  *Vec3             `json:"normal_c"`
	Material json.RawMessage   `json:"material"`
	IsCulled bool              `json:"is_culled"`
	Items    []json.RawMessage `json:"items"`
	Asset    string            `json:"asset"`
	UseBVH   bool              `json:"use_bvh"`
	Child    json.RawMessage   `json:"child"`
	Offset   Vec3              `json:"offset"`
	AngleDeg float64           `json:"angle_degrees"`
	Around   Vec3              `json:"around"`
	Boundary json.RawMessage   `json:"boundary"`
	Density  float64           `json:"density"`
	Texture  json.RawMessage   `json:"texture"`
}

func (r *resolver) resolveGeometric(raw json.RawMessage) (scenegraph.Hittable, error) {
	if name, isRef, err := refOrInline(raw); err != nil {
		return nil, err
	} else if isRef {
		g, ok := r.geometrics[name]
		if !ok {
			return nil, fmt.Errorf("unknown geometric reference %q (forward or undeclared)", name)
		}
		return g, nil
	}

	typ, err := discriminant(raw)
	if err != nil {
		return nil, err
	}
	var doc geometricDocRaw
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decoding geometric: %w", err)
	}

	needMaterial := func() (shading.Material, error) { return r.resolveMaterial(doc.Material) }

	switch typ {
	case "sphere":
		mat, err := needMaterial()
		if err != nil {
			return nil, fmt.Errorf("sphere.material: %w", err)
		}
		return sphereFrom(doc, mat), nil
	case "parallelogram":
		mat, err := needMaterial()
		if err != nil {
			return nil, fmt.Errorf("parallelogram.material: %w", err)
		}
		return scenegraph.NewParallelogram(toVector(doc.Q), toVector(doc.U), toVector(doc.V), mat, doc.IsCulled), nil
	case "triangle":
		mat, err := needMaterial()
		if err != nil {
			return nil, fmt.Errorf("triangle.material: %w", err)
		}
		tri := &scenegraph.Triangle{A: toVector(doc.A), B: toVector(doc.B), C: toVector(doc.C), Material: mat, IsCulled: doc.IsCulled}
		if doc.NormalA != nil && doc.NormalB != nil && doc.NormalC != nil {
			tri.HasVertexNormals = true
			tri.NormalA, tri.NormalB, tri.NormalC = toVector(*doc.NormalA), toVector(*doc.NormalB), toVector(*doc.NormalC)
		}
		return tri, nil
	case "list":
		children, err := r.resolveGeometricList(doc.Items)
		if err != nil {
			return nil, fmt.Errorf("list.items: %w", err)
		}
		return scenegraph.NewList(children...), nil
	case "bvh":
		children, err := r.resolveGeometricList(doc.Items)
		if err != nil {
			return nil, fmt.Errorf("bvh.items: %w", err)
		}
		return scenegraph.NewBVH(children), nil
	case "aabox":
		mat, err := needMaterial()
		if err != nil {
			return nil, fmt.Errorf("aabox.material: %w", err)
		}
		return scenegraph.NewAxisAlignedBox(toVector(doc.A), toVector(doc.B), mat), nil
	case "obj_model":
		mat, err := needMaterial()
		if err != nil {
			return nil, fmt.Errorf("obj_model.material: %w", err)
		}
		mesh, ok := r.assets.Meshes[doc.Asset]
		if !ok {
			return nil, fmt.Errorf("unknown mesh asset %q", doc.Asset)
		}
		return scenegraph.LoadObjModel(mesh, mat, doc.IsCulled, doc.UseBVH)
	case "translate":
		child, err := r.resolveGeometric(doc.Child)
		if err != nil {
			return nil, fmt.Errorf("translate.child: %w", err)
		}
		return scenegraph.NewTranslate(child, toVector(doc.Offset)), nil
	case "rotate_x":
		child, err := r.resolveGeometric(doc.Child)
		if err != nil {
			return nil, fmt.Errorf("rotate_x.child: %w", err)
		}
		return scenegraph.NewRotateX(child, degreesToRadians(doc.AngleDeg), toVector(doc.Around)), nil
	case "rotate_y":
		child, err := r.resolveGeometric(doc.Child)
		if err != nil {
			return nil, fmt.Errorf("rotate_y.child: %w", err)
		}
		return scenegraph.NewRotateY(child, degreesToRadians(doc.AngleDeg), toVector(doc.Around)), nil
	case "rotate_z":
		child, err := r.resolveGeometric(doc.Child)
		if err != nil {
			return nil, fmt.Errorf("rotate_z.child: %w", err)
		}
		return scenegraph.NewRotateZ(child, degreesToRadians(doc.AngleDeg), toVector(doc.Around)), nil
	case "reverse_normals":
		child, err := r.resolveGeometric(doc.Child)
		if err != nil {
			return nil, fmt.Errorf("reverse_normals.child: %w", err)
		}
		return scenegraph.ReverseNormals{Child: child}, nil
	case "constant_density":
		boundary, err := r.resolveGeometric(doc.Boundary)
		if err != nil {
			return nil, fmt.Errorf("constant_density.boundary: %w", err)
		}
		tex, err := r.resolveTexture(doc.Texture)
		if err != nil {
			return nil, fmt.Errorf("constant_density.texture: %w", err)
		}
		return scenegraph.NewConstantDensity(boundary, doc.Density, tex), nil
	default:
		return nil, fmt.Errorf("unknown geometric type %q", typ)
	}
}

func (r *resolver) resolveGeometricList(items []json.RawMessage) ([]scenegraph.Hittable, error) {
	out := make([]scenegraph.Hittable, 0, len(items))
	for i, item := range items {
		g, err := r.resolveGeometric(item)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		out = append(out, g)
	}
	return out, nil
}

func degreesToRadians(deg float64) float64 { return deg * 3.141592653589793 / 180 }

// sphereFrom builds a static or moving Sphere from the shared geometric
// document, a single "sphere" discriminant covering both cases,
// distinguished by whether center_end was given.
func sphereFrom(doc geometricDocRaw, mat shading.Material) scenegraph.Sphere {
	s := scenegraph.Sphere{Center: toVector(doc.Center), Radius: doc.Radius, Material: mat}
	if doc.CenterEnd != (Vec3{}) {
		s.Moving = true
		s.CenterEnd = toVector(doc.CenterEnd)
	}
	return s
}

// --- cameras ---

type cameraDoc struct {
	Eye                 Vec3    `json:"eye"`
	Target              Vec3    `json:"target"`
	Up                  Vec3    `json:"up"`
	VerticalFOVDegrees  float64 `json:"vertical_fov_degrees"`
	DefocusAngleDegrees float64 `json:"defocus_angle_degrees"`
	FocusDistance       float64 `json:"focus_distance"`
}

func (r *resolver) resolveCamera(raw json.RawMessage) (*scenegraph.Camera, error) {
	if name, isRef, err := refOrInline(raw); err != nil {
		return nil, err
	} else if isRef {
		c, ok := r.cameras[name]
		if !ok {
			return nil, fmt.Errorf("unknown camera reference %q (forward or undeclared)", name)
		}
		return c, nil
	}

	var doc cameraDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decoding camera: %w", err)
	}
	return &scenegraph.Camera{
		Eye:                 toVector(doc.Eye),
		Target:              toVector(doc.Target),
		Up:                  toVector(doc.Up),
		VerticalFOVDegrees:  doc.VerticalFOVDegrees,
		DefocusAngleDegrees: doc.DefocusAngleDegrees,
		FocusDistance:       doc.FocusDistance,
	}, nil
}

// --- scenes ---

type sceneDoc struct {
	Root       json.RawMessage `json:"root"`
	Camera     json.RawMessage `json:"camera"`
	Background Vec3            `json:"background"`
}

func (r *resolver) resolveScene(raw json.RawMessage) (*scenegraph.Scene, error) {
	if name, isRef, err := refOrInline(raw); err != nil {
		return nil, err
	} else if isRef {
		s, ok := r.scenes[name]
		if !ok {
			return nil, fmt.Errorf("unknown scene reference %q (forward or undeclared)", name)
		}
		return s, nil
	}

	var doc sceneDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decoding scene: %w", err)
	}
	root, err := r.resolveGeometric(doc.Root)
	if err != nil {
		return nil, fmt.Errorf("scene.root: %w", err)
	}
	cam, err := r.resolveCamera(doc.Camera)
	if err != nil {
		return nil, fmt.Errorf("scene.camera: %w", err)
	}
	return &scenegraph.Scene{Root: root, Camera: cam, Background: toColor(doc.Background)}, nil
}
