// Package s3test starts an in-process fake S3-compatible HTTP server
// for backend/s3's round-trip tests, grounded on internal/rawxtest's
// httptest-plus-go-chi pattern and adapted to the subset of the S3
// REST API backend/s3 exercises: PutObject, multipart upload,
// ranged GetObject, HeadObject, DeleteObject, and ListObjectsV2.
package s3test

import (
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
)

// Server is a fake single-bucket S3 endpoint.
type Server struct {
	httpServer *httptest.Server

	mu       sync.Mutex
	objects  map[string][]byte
	uploads  map[string]*multipartSession
	nextPart int
}

type multipartSession struct {
	key   string
	parts map[int32][]byte
}

// New starts the fake server on an ephemeral local port.
func New() *Server {
	s := &Server{
		objects: make(map[string][]byte),
		uploads: make(map[string]*multipartSession),
	}

	r := chi.NewRouter()
	r.Get("/{bucket}", s.handleBucketGet)
	r.Put("/{bucket}/*", s.handlePut)
	r.Post("/{bucket}/*", s.handlePost)
	r.Get("/{bucket}/*", s.handleGet)
	r.Head("/{bucket}/*", s.handleHead)
	r.Delete("/{bucket}/*", s.handleDelete)

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

// Object returns the bytes stored under key, if any.
func (s *Server) Object(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.objects[key]
	return v, ok
}

func (s *Server) handlePut(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")
	q := r.URL.Query()

	if uploadID := q.Get("uploadId"); uploadID != "" {
		s.handleUploadPart(w, r, uploadID, q.Get("partNumber"))
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "read error", http.StatusInternalServerError)
		return
	}
	s.mu.Lock()
	s.objects[key] = body
	s.mu.Unlock()

	w.Header().Set("ETag", etagFor(body))
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleUploadPart(w http.ResponseWriter, r *http.Request, uploadID, partNumberStr string) {
	partNumber, err := strconv.Atoi(partNumberStr)
	if err != nil {
		http.Error(w, "bad part number", http.StatusBadRequest)
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "read error", http.StatusInternalServerError)
		return
	}

	s.mu.Lock()
	session, ok := s.uploads[uploadID]
	if ok {
		session.parts[int32(partNumber)] = body
	}
	s.mu.Unlock()

	if !ok {
		writeS3Error(w, http.StatusNotFound, "NoSuchUpload", uploadID)
		return
	}
	w.Header().Set("ETag", etagFor(body))
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")
	q := r.URL.Query()

	if _, ok := q["uploads"]; ok {
		s.handleCreateMultipart(w, key)
		return
	}
	if uploadID := q.Get("uploadId"); uploadID != "" {
		s.handleCompleteMultipart(w, r, key, uploadID)
		return
	}
	http.Error(w, "unsupported", http.StatusBadRequest)
}

func (s *Server) handleCreateMultipart(w http.ResponseWriter, key string) {
	s.mu.Lock()
	s.nextPart++
	uploadID := fmt.Sprintf("upload-%d", s.nextPart)
	s.uploads[uploadID] = &multipartSession{key: key, parts: make(map[int32][]byte)}
	s.mu.Unlock()

	type result struct {
		XMLName  xml.Name `xml:"InitiateMultipartUploadResult"`
		Key      string   `xml:"Key"`
		UploadId string   `xml:"UploadId"`
	}
	writeXML(w, http.StatusOK, result{Key: key, UploadId: uploadID})
}

type completePart struct {
	PartNumber int32  `xml:"PartNumber"`
	ETag       string `xml:"ETag"`
}

type completeMultipartUploadRequest struct {
	XMLName xml.Name       `xml:"CompleteMultipartUpload"`
	Parts   []completePart `xml:"Part"`
}

func (s *Server) handleCompleteMultipart(w http.ResponseWriter, r *http.Request, key, uploadID string) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "read error", http.StatusInternalServerError)
		return
	}
	var req completeMultipartUploadRequest
	if err := xml.Unmarshal(body, &req); err != nil {
		http.Error(w, "bad request body", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	session, ok := s.uploads[uploadID]
	if !ok {
		s.mu.Unlock()
		writeS3Error(w, http.StatusNotFound, "NoSuchUpload", uploadID)
		return
	}
	numbers := make([]int32, 0, len(req.Parts))
	for _, p := range req.Parts {
		numbers = append(numbers, p.PartNumber)
	}
	sort.Slice(numbers, func(i, j int) bool { return numbers[i] < numbers[j] })

	var assembled []byte
	for _, n := range numbers {
		assembled = append(assembled, session.parts[n]...)
	}
	s.objects[key] = assembled
	delete(s.uploads, uploadID)
	s.mu.Unlock()

	type result struct {
		XMLName xml.Name `xml:"CompleteMultipartUploadResult"`
		Key     string   `xml:"Key"`
		ETag    string   `xml:"ETag"`
	}
	writeXML(w, http.StatusOK, result{Key: key, ETag: etagFor(assembled)})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")

	s.mu.Lock()
	body, ok := s.objects[key]
	s.mu.Unlock()
	if !ok {
		writeS3Error(w, http.StatusNotFound, "NoSuchKey", key)
		return
	}

	if rangeHeader := r.Header.Get("Range"); rangeHeader != "" {
		start, end, ok := parseByteRange(rangeHeader, len(body))
		if !ok {
			http.Error(w, "bad range", http.StatusRequestedRangeNotSatisfiable)
			return
		}
		body = body[start:end]
		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end-1, len(body)))
		w.WriteHeader(http.StatusPartialContent)
		_, _ = w.Write(body)
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (s *Server) handleHead(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")
	s.mu.Lock()
	body, ok := s.objects[key]
	s.mu.Unlock()
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")
	q := r.URL.Query()

	if uploadID := q.Get("uploadId"); uploadID != "" {
		s.mu.Lock()
		delete(s.uploads, uploadID)
		s.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
		return
	}

	s.mu.Lock()
	delete(s.objects, key)
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleBucketGet(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("list-type") != "2" {
		http.Error(w, "unsupported", http.StatusBadRequest)
		return
	}
	prefix := q.Get("prefix")

	s.mu.Lock()
	var keys []string
	for k := range s.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	s.mu.Unlock()
	sort.Strings(keys)

	type contents struct {
		Key string `xml:"Key"`
	}
	type result struct {
		XMLName     xml.Name   `xml:"ListBucketResult"`
		IsTruncated bool       `xml:"IsTruncated"`
		Contents    []contents `xml:"Contents"`
	}
	res := result{}
	for _, k := range keys {
		res.Contents = append(res.Contents, contents{Key: k})
	}
	writeXML(w, http.StatusOK, res)
}

func writeXML(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	_ = xml.NewEncoder(w).Encode(v)
}

func writeS3Error(w http.ResponseWriter, status int, code, key string) {
	type errBody struct {
		XMLName xml.Name `xml:"Error"`
		Code    string   `xml:"Code"`
		Message string   `xml:"Message"`
		Key     string   `xml:"Key"`
	}
	writeXML(w, status, errBody{Code: code, Message: code, Key: key})
}

func etagFor(body []byte) string {
	return fmt.Sprintf("\"%x\"", len(body))
}

// parseByteRange parses a "bytes=start-end" header, whose end is
// inclusive, into a half-open [start, end) slice window against a body
// of the given length.
func parseByteRange(header string, length int) (start, end int, ok bool) {
	header = strings.TrimPrefix(header, "bytes=")
	parts := strings.SplitN(header, "-", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	s, err := strconv.Atoi(parts[0])
	if err != nil || s < 0 || s > length {
		return 0, 0, false
	}
	e := length - 1
	if parts[1] != "" {
		e, err = strconv.Atoi(parts[1])
		if err != nil {
			return 0, 0, false
		}
	}
	if e >= length {
		e = length - 1
	}
	if e < s {
		return 0, 0, false
	}
	return s, e + 1, true
}
