// Package restapi implements the REST Control Surface (C7): the
// provisioner-facing HTTP endpoints for launching, inspecting, and
// tearing down kernels.
//
// Grounded on the donor's plain net/http idiom (no router library appears
// anywhere in the retrieved pack), using Go 1.22+ ServeMux method+wildcard
// patterns per SPEC_FULL.md §4.7.
package restapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/pkg/errors"

	"github.com/gopykernel/gopykernel/internal/fleet"
	"github.com/gopykernel/gopykernel/internal/obslog"
	"github.com/gopykernel/gopykernel/internal/util"
)

// Config carries the defaults new kernel launches inherit unless overridden
// by the POST body.
type Config struct {
	Transport string
	IP        string
	MinPort   int
	MaxPort   int
}

// Server mounts the REST control surface onto a *http.ServeMux.
type Server struct {
	sup    *fleet.Supervisor
	config Config
}

func NewServer(sup *fleet.Supervisor, config Config) *Server {
	return &Server{sup: sup, config: config}
}

// Mount registers every endpoint from §4.7 onto mux.
func (s *Server) Mount(mux *http.ServeMux) {
	mux.HandleFunc("HEAD /kernel/{id}", s.headKernel)
	mux.HandleFunc("GET /kernel", s.listKernels)
	mux.HandleFunc("GET /kernel/{id}", s.getKernel)
	mux.HandleFunc("POST /kernel", s.postKernel)
	mux.HandleFunc("DELETE /kernel/{id}", s.deleteKernel)
	mux.HandleFunc("DELETE /kernel", s.deleteAllKernels)
}

func (s *Server) headKernel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := s.sup.Lookup(id); !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) listKernels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sup.Iterate())
}

func (s *Server) getKernel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	k, ok := s.sup.Lookup(id)
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, k.ConnFile)
}

type postKernelRequest struct {
	KernelID        string `json:"ignition_kernel_id"`
	KernelIDAlt     string `json:"kernel_id"`
	Transport       string `json:"transport"`
	IP              string `json:"ip"`
	SignatureScheme string `json:"signature_scheme"`
	Key             string `json:"key"`
}

func (s *Server) postKernel(w http.ResponseWriter, r *http.Request) {
	var req postKernelRequest
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
			http.Error(w, fmt.Sprintf("%+v", errors.Wrap(err, "decoding request body")), http.StatusBadRequest)
			return
		}
	}
	id := req.KernelID
	if id == "" {
		id = req.KernelIDAlt
	}
	if id == "" {
		http.Error(w, "missing ignition_kernel_id", http.StatusBadRequest)
		return
	}

	if k, ok := s.sup.Lookup(id); ok {
		// Launching an already-live id is a no-op per §4.7.
		writeJSON(w, http.StatusOK, k.ConnFile)
		return
	}

	transport := firstNonEmpty(req.Transport, s.config.Transport)
	ip := firstNonEmpty(req.IP, s.config.IP)
	k, err := s.sup.Launch(fleet.InitSpec{
		KernelID:        id,
		Transport:       transport,
		IP:              ip,
		SignatureScheme: req.SignatureScheme,
		Key:             req.Key,
		MinPort:         s.config.MinPort,
		MaxPort:         s.config.MaxPort,
	})
	if err != nil {
		obslog.Errorf("launching kernel %s: %v", id, err)
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	writeJSON(w, http.StatusOK, k.ConnFile)
}

type deleteRequest struct {
	Signal int `json:"signal"`
}

// deleteKernel implements DELETE /kernel/{id}: signal 0 or SIGTERM (15)
// restarts the execution session only; any other signal, or no body,
// scrams the kernel outright, per §4.7.
func (s *Server) deleteKernel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	k, ok := s.sup.Lookup(id)
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	var req deleteRequest
	hasBody := r.Body != nil && json.NewDecoder(r.Body).Decode(&req) == nil

	const sigterm = 15
	if hasBody && (req.Signal == 0 || req.Signal == sigterm) {
		k.RequestRestart()
		writeJSON(w, http.StatusOK, map[string][]string{"scrammed": {}})
		return
	}

	if err := s.sup.Scram(id); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"scrammed": {id}})
}

func (s *Server) deleteAllKernels(w http.ResponseWriter, r *http.Request) {
	ids := s.sup.Iterate()
	if err := s.sup.ScramAll(); err != nil {
		obslog.Errorf("scram_all: %v", err)
	}
	writeJSON(w, http.StatusOK, map[string][]string{"scrammed": ids})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	util.ReportError(json.NewEncoder(w).Encode(v))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
