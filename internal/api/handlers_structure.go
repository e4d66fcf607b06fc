package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/dgallion1/docstruct/internal/chunker"
	"github.com/dgallion1/docstruct/internal/doctree"
	"github.com/dgallion1/docstruct/internal/validate"
)

// structureRequest carries a previously analyzed structure back to the server.
type structureRequest struct {
	Structure *doctree.DocumentStructure `json:"structure"`
	Options   *validate.Options          `json:"options,omitempty"`
	Detailed  bool                       `json:"detailed,omitempty"`
	Chunking  *chunker.Config            `json:"chunking,omitempty"`
}

func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		jsonError(w, fmt.Sprintf("invalid JSON body: %s", err), http.StatusBadRequest)
		return false
	}
	return true
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req structureRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if req.Structure == nil {
		jsonError(w, "structure is required", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, s.analyzer.ValidateStructure(req.Structure, req.Options))
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	var req structureRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if req.Structure == nil {
		jsonError(w, "structure is required", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, s.analyzer.GenerateConfidenceReport(req.Structure, req.Detailed))
}

func (s *Server) handleTree(w http.ResponseWriter, r *http.Request) {
	var req structureRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if req.Structure == nil {
		jsonError(w, "structure is required", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, s.analyzer.GenerateStructureTree(req.Structure))
}

func (s *Server) handleChunks(w http.ResponseWriter, r *http.Request) {
	var req structureRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if req.Structure == nil {
		jsonError(w, "structure is required", http.StatusBadRequest)
		return
	}
	cfg := s.cfg.Chunker()
	if req.Chunking != nil {
		cfg = *req.Chunking
	}
	chunks := chunker.ChunkDocument(req.Structure, cfg)
	if chunks == nil {
		chunks = []chunker.Chunk{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"chunks": chunks,
		"total":  len(chunks),
	})
}
