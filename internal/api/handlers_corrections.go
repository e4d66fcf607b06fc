package api

import (
	"errors"
	"net/http"

	"github.com/dgallion1/docstruct/internal/correction"
	"github.com/dgallion1/docstruct/internal/doctree"
	"github.com/go-chi/chi/v5"
)

type correctionsRequest struct {
	Structure   *doctree.DocumentStructure `json:"structure"`
	Corrections []correction.Correction    `json:"corrections"`
}

type reviewRequest struct {
	NodeID string            `json:"node_id"`
	Status correction.Status `json:"status"`
}

func (s *Server) handleCorrections(w http.ResponseWriter, r *http.Request) {
	var req correctionsRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if req.Structure == nil {
		jsonError(w, "structure is required", http.StatusBadRequest)
		return
	}
	if len(req.Corrections) == 0 {
		jsonError(w, "at least one correction is required", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, s.analyzer.ApplyCorrections(req.Structure, req.Corrections))
}

func (s *Server) handleSaveCorrections(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "docID")
	saved, err := s.analyzer.Engine().Save(r.Context(), docID)
	if errors.Is(err, correction.ErrNoCorrections) {
		jsonError(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		s.log.Error("save corrections failed", "doc_id", docID, "error", err)
		jsonError(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (s *Server) handleReview(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "docID")
	var req reviewRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if req.NodeID == "" {
		jsonError(w, "node_id is required", http.StatusBadRequest)
		return
	}
	if err := s.analyzer.Engine().Review(docID, req.NodeID, req.Status); err != nil {
		code := http.StatusBadRequest
		if errors.Is(err, correction.ErrUnknownNode) {
			code = http.StatusNotFound
		}
		jsonError(w, err.Error(), code)
		return
	}
	writeJSON(w, http.StatusOK, s.analyzer.Engine().History(docID))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "docID")
	writeJSON(w, http.StatusOK, s.analyzer.Engine().History(docID))
}

func (s *Server) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	ids, err := s.analyzer.Engine().Store().List(r.Context())
	if err != nil {
		s.log.Error("list profiles failed", "error", err)
		jsonError(w, err.Error(), http.StatusBadGateway)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"profiles": ids})
}
