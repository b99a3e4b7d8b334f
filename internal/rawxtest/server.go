// Package rawxtest starts an in-process fake rawx HTTP server for
// backend/rawx's round-trip tests. It speaks the chunked-upload and
// trailer contract described in spec.md §4.5/§6, storing chunks in
// memory rather than on disk, grounded on the teacher's use of
// go-chi/chi for routing (pkg/api/router.go).
package rawxtest

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/go-chi/chi/v5"
)

// StoredChunk is one PUT accepted by the server, retained for test
// assertions.
type StoredChunk struct {
	Body     []byte
	Headers  http.Header
	Trailers http.Header
}

// Server is a fake rawx: PUT stores a chunk (headers + chunked body +
// trailers), GET replays it, DELETE removes it, HEAD reports existence.
type Server struct {
	httpServer *httptest.Server

	mu     sync.Mutex
	chunks map[string]StoredChunk

	// FailChunks, when non-nil, maps a chunk ID to the HTTP status the
	// server should answer instead of handling the request normally.
	// Tests use it to simulate a misbehaving drive.
	FailChunks map[string]int
}

// New starts the fake server on an ephemeral local port.
func New() *Server {
	s := &Server{chunks: make(map[string]StoredChunk)}

	r := chi.NewRouter()
	r.Put("/{chunkID}", s.handlePut)
	r.Get("/{chunkID}", s.handleGet)
	r.Head("/{chunkID}", s.handleHead)
	r.Delete("/{chunkID}", s.handleDelete)

	s.httpServer = httptest.NewServer(r)
	return s
}

// URL is the base "http://host:port" the server listens on.
func (s *Server) URL() string {
	return s.httpServer.URL
}

// Close shuts the server down.
func (s *Server) Close() {
	s.httpServer.Close()
}

// Chunk returns the chunk stored under id, if any.
func (s *Server) Chunk(id string) (StoredChunk, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chunks[id]
	return c, ok
}

func (s *Server) handlePut(w http.ResponseWriter, r *http.Request) {
	chunkID := chi.URLParam(r, "chunkID")

	if status, fail := s.failStatus(chunkID); fail {
		http.Error(w, http.StatusText(status), status)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "read error", http.StatusInternalServerError)
		return
	}

	trailers := make(http.Header)
	for k, vv := range r.Trailer {
		for _, v := range vv {
			trailers.Add(k, v)
		}
	}

	s.mu.Lock()
	s.chunks[chunkID] = StoredChunk{
		Body:     body,
		Headers:  r.Header.Clone(),
		Trailers: trailers,
	}
	s.mu.Unlock()

	w.WriteHeader(http.StatusCreated)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	chunkID := chi.URLParam(r, "chunkID")

	if status, fail := s.failStatus(chunkID); fail {
		http.Error(w, http.StatusText(status), status)
		return
	}

	s.mu.Lock()
	c, ok := s.chunks[chunkID]
	s.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}

	for k, vv := range c.Headers {
		for _, v := range vv {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(c.Body)
}

func (s *Server) handleHead(w http.ResponseWriter, r *http.Request) {
	chunkID := chi.URLParam(r, "chunkID")

	if status, fail := s.failStatus(chunkID); fail {
		http.Error(w, http.StatusText(status), status)
		return
	}

	s.mu.Lock()
	_, ok := s.chunks[chunkID]
	s.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	chunkID := chi.URLParam(r, "chunkID")

	if status, fail := s.failStatus(chunkID); fail {
		http.Error(w, http.StatusText(status), status)
		return
	}

	s.mu.Lock()
	_, ok := s.chunks[chunkID]
	delete(s.chunks, chunkID)
	s.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) failStatus(chunkID string) (int, bool) {
	if s.FailChunks == nil {
		return 0, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	status, ok := s.FailChunks[chunkID]
	return status, ok
}
