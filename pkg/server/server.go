// Package server exposes a SegmentSource over the read-only peer HTTP
// API: file listing, manifests, whole-file data, and individual segment
// and parity shards, so one Blockframe instance can serve another's
// RemoteSource.
package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/riandyrn/otelchi"
	"github.com/rs/zerolog"

	"github.com/blockframe/blockframe/pkg/errs"
	"github.com/blockframe/blockframe/pkg/manifest"
	"github.com/blockframe/blockframe/pkg/source"
)

const (
	routeFiles        = "/api/files"
	routeManifest     = "/api/files/{name}/manifest"
	routeData         = "/api/files/{name}"
	routeSegment      = "/api/files/{name}/segment/{i}"
	routeBlockSegment = "/api/files/{name}/block/{b}/segment/{i}"
	routeParity       = "/api/files/{name}/parity"
	contentTypeJSON   = "application/json"
	contentTypeOctet  = "application/octet-stream"
	serviceName       = "blockframe"
)

// fileSummary is one entry of the GET /api/files response.
type fileSummary struct {
	Name string        `json:"name"`
	Size int64         `json:"size"`
	Tier manifest.Tier `json:"tier"`
}

// Server adapts a SegmentSource to the peer HTTP API.
type Server struct {
	src    source.SegmentSource
	router *chi.Mux
}

// New returns a Server backed by src.
func New(src source.SegmentSource) *Server {
	s := &Server{src: src}
	s.router = newRouter(s)

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.router.ServeHTTP(w, r) }

func newRouter(s *Server) *chi.Mux {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(otelchi.Middleware(serviceName, otelchi.WithChiRoutes(router)))
	router.Use(requestLogger)
	router.Use(middleware.Recoverer)

	router.Get(routeFiles, s.listFiles)
	router.Get(routeManifest, s.getManifest)
	router.Get(routeData, s.getData)
	router.Get(routeSegment, s.getSegment)
	router.Get(routeBlockSegment, s.getBlockSegment)
	router.Get(routeParity, s.getParity)

	return router
}

func requestLogger(next http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		startedAt := time.Now()
		reqID := middleware.GetReqID(r.Context())

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			zerolog.Ctx(r.Context()).Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("elapsed", time.Since(startedAt)).
				Str("from", r.RemoteAddr).
				Str("reqID", reqID).
				Int("bytes", ww.BytesWritten()).
				Msg("request served")
		}()

		next.ServeHTTP(ww, r)
	}

	return http.HandlerFunc(fn)
}

func (s *Server) listFiles(w http.ResponseWriter, r *http.Request) {
	names, err := s.src.ListFiles(r.Context())
	if err != nil {
		writeError(w, r, err)

		return
	}

	summaries := make([]fileSummary, 0, len(names))

	for _, name := range names {
		m, err := s.src.GetManifest(r.Context(), name)
		if err != nil {
			writeError(w, r, err)

			return
		}

		summaries = append(summaries, fileSummary{Name: name, Size: m.Size, Tier: m.Tier})
	}

	writeJSON(w, r, http.StatusOK, summaries)
}

func (s *Server) getManifest(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	m, err := s.src.GetManifest(r.Context(), name)
	if err != nil {
		writeError(w, r, err)

		return
	}

	writeJSON(w, r, http.StatusOK, m)
}

func (s *Server) getData(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	m, err := s.src.GetManifest(r.Context(), name)
	if err != nil {
		writeError(w, r, err)

		return
	}

	if m.Tier != manifest.TierTiny {
		http.Error(w, "whole-file GET is only defined for tier 1 files", http.StatusNotAcceptable)

		return
	}

	data, err := s.src.ReadData(r.Context(), name)
	if err != nil {
		writeError(w, r, err)

		return
	}

	writeOctet(w, data)
}

func (s *Server) getSegment(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	i, err := strconv.Atoi(chi.URLParam(r, "i"))
	if err != nil {
		http.Error(w, "invalid segment index", http.StatusBadRequest)

		return
	}

	data, err := s.src.ReadSegment(r.Context(), name, i)
	if err != nil {
		writeError(w, r, err)

		return
	}

	writeOctet(w, data)
}

func (s *Server) getBlockSegment(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	b, err := strconv.Atoi(chi.URLParam(r, "b"))
	if err != nil {
		http.Error(w, "invalid block id", http.StatusBadRequest)

		return
	}

	i, err := strconv.Atoi(chi.URLParam(r, "i"))
	if err != nil {
		http.Error(w, "invalid segment index", http.StatusBadRequest)

		return
	}

	data, err := s.src.ReadBlockSegment(r.Context(), name, b, i)
	if err != nil {
		writeError(w, r, err)

		return
	}

	writeOctet(w, data)
}

func (s *Server) getParity(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	parityID, err := strconv.Atoi(r.URL.Query().Get("parity_id"))
	if err != nil {
		http.Error(w, "invalid or missing parity_id", http.StatusBadRequest)

		return
	}

	segmentID := 0
	if v := r.URL.Query().Get("segment_id"); v != "" {
		segmentID, err = strconv.Atoi(v)
		if err != nil {
			http.Error(w, "invalid segment_id", http.StatusBadRequest)

			return
		}
	}

	var blockID *int

	if v := r.URL.Query().Get("block_id"); v != "" {
		b, err := strconv.Atoi(v)
		if err != nil {
			http.Error(w, "invalid block_id", http.StatusBadRequest)

			return
		}

		blockID = &b
	}

	data, err := s.src.ReadParity(r.Context(), name, segmentID, parityID, blockID)
	if err != nil {
		writeError(w, r, err)

		return
	}

	writeOctet(w, data)
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("error writing json response")
	}
}

func writeOctet(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", contentTypeOctet)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	if errs.Is(err, errs.NotFound) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)

		return
	}

	zerolog.Ctx(r.Context()).Error().Err(err).Msg("request failed")

	if errs.Is(err, errs.ConfigError) {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)

		return
	}

	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}
