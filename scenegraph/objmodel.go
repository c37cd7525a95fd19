package scenegraph

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/paulwrubel/luxide/geom"
	"github.com/paulwrubel/luxide/shading"
)

// ObjModel is a compound of triangles loaded from an external Wavefront OBJ
// mesh, optionally organized into a BVH.
type ObjModel struct {
	Hittable // the built triangle list or BVH; Intersect/BoundingBox delegate here
}

// LoadObjModel parses a minimal OBJ subset (v, vn, f) from r, builds one
// Triangle per face (fan-triangulating faces with more than 3 vertices),
// and wraps them in a BVH when useBVH is true.
func LoadObjModel(r io.Reader, mat shading.Material, isCulled, useBVH bool) (*ObjModel, error) {
	var vertices []geom.Point
	var normals []geom.Vector
	var triangles []Hittable

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		switch fields[0] {
		case "v":
			p, err := parseVec3(fields[1:])
			if err != nil {
				return nil, fmt.Errorf("obj: line %d: vertex: %w", lineNo, err)
			}
			vertices = append(vertices, p)
		case "vn":
			n, err := parseVec3(fields[1:])
			if err != nil {
				return nil, fmt.Errorf("obj: line %d: normal: %w", lineNo, err)
			}
			normals = append(normals, n.Unit())
		case "f":
			face, err := parseFace(fields[1:], lineNo)
			if err != nil {
				return nil, err
			}
			for i := 1; i+1 < len(face); i++ {
				tri, err := buildFaceTriangle(vertices, normals, face[0], face[i], face[i+1], mat, isCulled)
				if err != nil {
					return nil, fmt.Errorf("obj: line %d: %w", lineNo, err)
				}
				triangles = append(triangles, tri)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("obj: scan: %w", err)
	}
	if len(triangles) == 0 {
		return nil, fmt.Errorf("obj: model has no faces")
	}

	var root Hittable
	if useBVH {
		root = NewBVH(triangles)
	} else {
		root = NewList(triangles...)
	}
	return &ObjModel{Hittable: root}, nil
}

type objFaceVertex struct {
	vertexIdx int
	normalIdx int // -1 if absent
}

func parseFace(fields []string, lineNo int) ([]objFaceVertex, error) {
	if len(fields) < 3 {
		return nil, fmt.Errorf("obj: line %d: face needs at least 3 vertices", lineNo)
	}
	face := make([]objFaceVertex, len(fields))
	for i, f := range fields {
		parts := strings.Split(f, "/")
		vi, err := strconv.Atoi(parts[0])
		if err != nil {
			return nil, fmt.Errorf("obj: line %d: bad vertex index %q: %w", lineNo, parts[0], err)
		}
		fv := objFaceVertex{vertexIdx: vi - 1, normalIdx: -1}
		if len(parts) == 3 && parts[2] != "" {
			ni, err := strconv.Atoi(parts[2])
			if err != nil {
				return nil, fmt.Errorf("obj: line %d: bad normal index %q: %w", lineNo, parts[2], err)
			}
			fv.normalIdx = ni - 1
		}
		face[i] = fv
	}
	return face, nil
}

func buildFaceTriangle(vertices []geom.Point, normals []geom.Vector, a, b, c objFaceVertex, mat shading.Material, isCulled bool) (*Triangle, error) {
	for _, idx := range []int{a.vertexIdx, b.vertexIdx, c.vertexIdx} {
		if idx < 0 || idx >= len(vertices) {
			return nil, fmt.Errorf("vertex index %d out of range", idx)
		}
	}
	tri := &Triangle{
		A: vertices[a.vertexIdx], B: vertices[b.vertexIdx], C: vertices[c.vertexIdx],
		Material: mat, IsCulled: isCulled,
	}
	if a.normalIdx >= 0 && b.normalIdx >= 0 && c.normalIdx >= 0 &&
		a.normalIdx < len(normals) && b.normalIdx < len(normals) && c.normalIdx < len(normals) {
		tri.HasVertexNormals = true
		tri.NormalA, tri.NormalB, tri.NormalC = normals[a.normalIdx], normals[b.normalIdx], normals[c.normalIdx]
	}
	return tri, nil
}

func parseVec3(fields []string) (geom.Vector, error) {
	if len(fields) < 3 {
		return geom.Vector{}, fmt.Errorf("expected 3 components, got %d", len(fields))
	}
	var v geom.Vector
	var err error
	if v.X, err = strconv.ParseFloat(fields[0], 64); err != nil {
		return geom.Vector{}, err
	}
	if v.Y, err = strconv.ParseFloat(fields[1], 64); err != nil {
		return geom.Vector{}, err
	}
	if v.Z, err = strconv.ParseFloat(fields[2], 64); err != nil {
		return geom.Vector{}, err
	}
	return v, nil
}
