package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/pipeline"
	"github.com/hyperjump/kotae/internal/storage"
	"go.uber.org/zap"
)

// decodeAsk reads an AskRequest and writes the 400 response itself on failure.
func (s *Server) decodeAsk(w http.ResponseWriter, r *http.Request) (*models.AskRequest, bool) {
	var req models.AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return nil, false
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	return &req, true
}

func (s *Server) answer(w http.ResponseWriter, r *http.Request) (*pipeline.Answer, bool) {
	req, ok := s.decodeAsk(w, r)
	if !ok {
		return nil, false
	}
	s.logger.Debug("ask request", zap.String("question", req.Question))
	ans, err := s.answerer.Answer(r.Context(), req.Question)
	if errors.Is(err, pipeline.ErrEmptyQuestion) {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	if err != nil {
		s.logger.Error("answer failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return nil, false
	}
	return ans, true
}

// handleAskCompat serves the original {"question"} -> {"answer"} contract.
func (s *Server) handleAskCompat(w http.ResponseWriter, r *http.Request) {
	ans, ok := s.answer(w, r)
	if !ok {
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"answer": ans.Text})
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	ans, ok := s.answer(w, r)
	if !ok {
		return
	}
	s.respondJSON(w, http.StatusOK, ans.Response())
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeAsk(w, r)
	if !ok {
		return
	}
	p, err := s.answerer.Plan(r.Context(), req.Question)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, &models.PlanResponse{Question: req.Question, Plan: pipeline.PlanUnits(p)})
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	counts, err := s.storage.CountChunksByDocument(ctx)
	if err != nil {
		s.logger.Error("list documents: count chunks failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	stored, err := s.storage.ListDocuments(ctx)
	if err != nil {
		s.logger.Error("list documents failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	chars := make(map[string]int, len(stored))
	for _, doc := range stored {
		chars[doc.ID] = utf8.RuneCountInString(doc.Content)
	}
	names := s.answerer.Vocabulary().Names()
	docs := make([]models.DocumentSummary, 0, len(names))
	for _, name := range names {
		n, indexed := chars[name]
		docs = append(docs, models.DocumentSummary{ID: name, Indexed: indexed, Chunks: counts[name], Chars: n})
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"documents": docs})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.answerer.Vocabulary().Contains(id) {
		s.respondError(w, http.StatusNotFound, "document not found")
		return
	}
	doc, err := s.storage.GetDocument(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, "document not indexed")
		return
	}
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if r.URL.Query().Get("chunks") != "true" {
		s.respondJSON(w, http.StatusOK, doc)
		return
	}
	chunks, err := s.storage.GetChunksByDocumentID(r.Context(), id)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, &models.DocumentDetail{Document: doc, Chunks: chunks})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	docCount, err := s.storage.CountDocuments(ctx)
	if err != nil {
		s.logger.Error("status: count documents failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	chunkCount, err := s.storage.CountChunks(ctx)
	if err != nil {
		s.logger.Error("status: count chunks failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	cfg := s.config
	resp := &models.StatusResponse{
		Documents:       docCount,
		Chunks:          chunkCount,
		VectorIndexSize: s.stats.VectorIndexSize(),
		Corpus:          s.answerer.Vocabulary().Names(),
		Config: &models.StatusConfig{
			VectorIndexType:     s.stats.VectorIndexType(),
			EmbeddingProvider:   cfg.Embedding.Provider,
			EmbeddingDimensions: cfg.Embedding.Dimensions,
			LLMProvider:         cfg.LLM.Provider,
			LLMModel:            cfg.LLM.Model,
			TopK:                cfg.Pipeline.TopK,
			PlanPolicy:          cfg.Pipeline.PlanPolicy,
			MaxSummaryChars:     cfg.Corpus.MaxSummaryChars,
			ChunkSize:           cfg.Corpus.ChunkSize,
			ChunkOverlap:        cfg.Corpus.ChunkOverlap,
			DatabasePath:        cfg.Storage.DatabasePath,
			BleveIndexPath:      cfg.Storage.BleveIndexPath,
		},
	}
	if diskBytes, err := storage.DiskUsageBytes(cfg.Storage.DatabasePath, cfg.Storage.BleveIndexPath); err == nil {
		resp.DiskUsageBytes = &diskBytes
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
