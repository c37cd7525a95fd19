// Package httpapi implements the control plane's HTTP endpoints, mapping
// each one onto a manager.Manager call and translating its errors into
// status codes. Routing uses net/http's ServeMux method + wildcard
// patterns (Go 1.22+); the handlers stay deliberately thin, with every
// decision living in manager.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"strconv"

	"github.com/paulwrubel/luxide/auth"
	"github.com/paulwrubel/luxide/logx"
	"github.com/paulwrubel/luxide/manager"
	"github.com/paulwrubel/luxide/renderstore"
	"github.com/paulwrubel/luxide/sceneconfig"
)

var log = logx.Subsystem("httpapi")

// Server wires a Manager and an auth.Resolver into an http.Handler.
type Server struct {
	mgr      *manager.Manager
	resolver auth.Resolver
	mux      *http.ServeMux
}

// NewServer builds the routed handler for the full endpoint table.
func NewServer(mgr *manager.Manager, resolver auth.Resolver) *Server {
	s := &Server{mgr: mgr, resolver: resolver, mux: http.NewServeMux()}
	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /renders", s.createRender)
	s.mux.HandleFunc("GET /renders", s.listRenders)
	s.mux.HandleFunc("GET /renders/{id}", s.getRender)
	s.mux.HandleFunc("DELETE /renders/{id}", s.deleteRender)
	s.mux.HandleFunc("POST /renders/{id}/pause", s.pauseRender)
	s.mux.HandleFunc("POST /renders/{id}/resume", s.resumeRender)
	s.mux.HandleFunc("PATCH /renders/{id}", s.updateRender)
	s.mux.HandleFunc("GET /renders/{id}/checkpoint/{iteration}", s.getCheckpoint)
	s.mux.HandleFunc("GET /renders/{id}/checkpoint/earliest", s.getEarliestCheckpoint)
	s.mux.HandleFunc("GET /renders/{id}/checkpoint/latest", s.getLatestCheckpoint)
	s.mux.HandleFunc("GET /renders/{id}/stats", s.getStats)
	s.mux.HandleFunc("GET /storage/usage", s.getStorageUsage)
}

// userID resolves the calling subject or writes 401 and returns false.
func (s *Server) userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, err := s.resolver.Resolve(r)
	if err != nil {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return "", false
	}
	return id, true
}

// pathID parses the {id} wildcard as a render ID or writes 400.
func (s *Server) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid render id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// writeError maps a manager/renderstore error to its status code.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, renderstore.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, manager.ErrUnauthorized):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, renderstore.ErrConflict):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, renderstore.ErrValidation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		log.Printf("internal error: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func (s *Server) createRender(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}
	var cfg sceneconfig.RenderConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		http.Error(w, fmt.Sprintf("decoding render config: %v", err), http.StatusBadRequest)
		return
	}
	render, err := s.mgr.Create(userID, cfg)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, renderView(render, format(r)))
}

func (s *Server) listRenders(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}
	renders, err := s.mgr.List(userID)
	if err != nil {
		writeError(w, err)
		return
	}
	views := make([]any, len(renders))
	f := format(r)
	for i, render := range renders {
		views[i] = renderView(render, f)
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) getRender(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	render, err := s.mgr.Get(userID, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, renderView(render, format(r)))
}

func (s *Server) deleteRender(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	if err := s.mgr.Delete(userID, id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) pauseRender(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	if err := s.mgr.Pause(userID, id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) resumeRender(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	if err := s.mgr.Resume(userID, id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) updateRender(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	var body struct {
		NewTotalCheckpoints int `json:"new_total_checkpoints"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, fmt.Sprintf("decoding request body: %v", err), http.StatusBadRequest)
		return
	}
	if err := s.mgr.UpdateTotalCheckpoints(userID, id, body.NewTotalCheckpoints); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getCheckpoint(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	iteration, err := strconv.Atoi(r.PathValue("iteration"))
	if err != nil {
		http.Error(w, "invalid checkpoint iteration", http.StatusBadRequest)
		return
	}
	cp, err := s.mgr.Checkpoint(userID, id, iteration)
	if err != nil {
		writeError(w, err)
		return
	}
	s.writeCheckpointPNG(w, userID, id, cp)
}

func (s *Server) getEarliestCheckpoint(w http.ResponseWriter, r *http.Request) {
	s.boundaryCheckpoint(w, r, true)
}

func (s *Server) getLatestCheckpoint(w http.ResponseWriter, r *http.Request) {
	s.boundaryCheckpoint(w, r, false)
}

func (s *Server) boundaryCheckpoint(w http.ResponseWriter, r *http.Request, earliest bool) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	var (
		cp  renderstore.RenderCheckpoint
		err error
	)
	if earliest {
		cp, err = s.mgr.EarliestCheckpoint(userID, id)
	} else {
		cp, err = s.mgr.LatestCheckpoint(userID, id)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	s.writeCheckpointPNG(w, userID, id, cp)
}

// writeCheckpointPNG encodes a checkpoint's pixel buffer to PNG using the
// owning render's gamma/truncation parameters. Encoding failure never
// touches the persisted float buffer.
func (s *Server) writeCheckpointPNG(w http.ResponseWriter, userID string, id int64, cp renderstore.RenderCheckpoint) {
	render, err := s.mgr.Get(userID, id)
	if err != nil {
		writeError(w, err)
		return
	}
	img := image.NewNRGBA(image.Rect(0, 0, cp.Pixels.Width, cp.Pixels.Height))
	truncate := render.Config.Parameters.UseScalingTruncation
	gamma := render.Config.Parameters.GammaCorrection
	for y := 0; y < cp.Pixels.Height; y++ {
		for x := 0; x < cp.Pixels.Width; x++ {
			img.SetNRGBA(x, y, cp.Pixels.At(x, y).ToNRGBA(gamma, truncate))
		}
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	if err := png.Encode(w, img); err != nil {
		log.Printf("encoding checkpoint PNG for render %d: %v", id, err)
	}
}

func (s *Server) getStats(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	stats, err := s.mgr.Stats(userID, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statsView(stats))
}

func (s *Server) getStorageUsage(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.userID(w, r); !ok {
		return
	}
	bytes, err := s.mgr.StorageUsage()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"bytes_used": bytes})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("encoding JSON response: %v", err)
	}
}

// format reads the ?format= query param ("full|light|minimal"), defaulting
// to "full".
func format(r *http.Request) string {
	f := r.URL.Query().Get("format")
	switch f {
	case "light", "minimal":
		return f
	default:
		return "full"
	}
}
