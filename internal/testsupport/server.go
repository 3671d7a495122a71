package testsupport

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
)

const (
	DefaultToken  = "test-token"
	DefaultOrg    = "MSF"
	DefaultSource = "MSFOCP"
)

// FakeConcept seeds the fake API. A nil ExternalID omits the field.
type FakeConcept struct {
	ID          string
	DisplayName string
	ExternalID  *string
	Names       []string
}

// Request records one call received by the fake API.
type Request struct {
	Method        string
	Path          string
	RawQuery      string
	Authorization string
	Body          []byte
}

// OCLServer is an in-process stand-in for the terminology API. Listing
// pages hold PageSize concepts and link to each other with absolute next
// URLs; concept URLs are relative, as the real API returns them.
type OCLServer struct {
	*httptest.Server

	PageSize int
	// UpdateStatus, when non-zero, is returned for every PUT instead of 200.
	UpdateStatus int

	t        testing.TB
	mu       sync.Mutex
	concepts []FakeConcept
	requests []Request
}

// NewOCLServer starts a fake API serving concepts under the default org and source.
func NewOCLServer(t testing.TB, concepts []FakeConcept) *OCLServer {
	t.Helper()
	s := &OCLServer{t: t, PageSize: 10, concepts: append([]FakeConcept(nil), concepts...)}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

// ListingPath returns the source listing path served by the fake.
func ListingPath() string {
	return fmt.Sprintf("/orgs/%s/sources/%s/concepts/", DefaultOrg, DefaultSource)
}

// ConceptPath returns the relative URL of a concept.
func ConceptPath(id string) string {
	return ListingPath() + id + "/"
}

// Requests returns a copy of every request received so far.
func (s *OCLServer) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// Writes returns the PUT and PATCH requests received so far.
func (s *OCLServer) Writes() []Request {
	var writes []Request
	for _, req := range s.Requests() {
		if req.Method == http.MethodPut || req.Method == http.MethodPatch {
			writes = append(writes, req)
		}
	}
	return writes
}

// ExternalID returns the current external id of a seeded concept.
func (s *OCLServer) ExternalID(id string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.concepts {
		if c.ID == id {
			if c.ExternalID == nil {
				return "", false
			}
			return *c.ExternalID, true
		}
	}
	return "", false
}

func (s *OCLServer) handle(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	s.mu.Lock()
	s.requests = append(s.requests, Request{
		Method:        r.Method,
		Path:          r.URL.Path,
		RawQuery:      r.URL.RawQuery,
		Authorization: r.Header.Get("Authorization"),
		Body:          body,
	})
	s.mu.Unlock()

	if r.Header.Get("Authorization") != "Token "+DefaultToken {
		http.Error(w, `{"detail":"Invalid token."}`, http.StatusUnauthorized)
		return
	}

	switch {
	case r.URL.Path == ListingPath() && r.Method == http.MethodGet:
		s.servePage(w, r)
	case strings.HasPrefix(r.URL.Path, ListingPath()):
		id := strings.Trim(strings.TrimPrefix(r.URL.Path, ListingPath()), "/")
		switch r.Method {
		case http.MethodGet:
			s.serveDetail(w, id)
		case http.MethodPut, http.MethodPatch:
			s.serveUpdate(w, id, body)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	default:
		http.NotFound(w, r)
	}
}

func (s *OCLServer) servePage(w http.ResponseWriter, r *http.Request) {
	pageNum := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			http.Error(w, "bad page", http.StatusBadRequest)
			return
		}
		pageNum = n
	}

	s.mu.Lock()
	size := s.PageSize
	if size <= 0 {
		size = len(s.concepts)
	}
	start := (pageNum - 1) * size
	end := start + size
	if start > len(s.concepts) {
		start = len(s.concepts)
	}
	if end > len(s.concepts) {
		end = len(s.concepts)
	}
	results := make([]map[string]any, 0, end-start)
	for _, c := range s.concepts[start:end] {
		results = append(results, s.summary(c))
	}
	hasNext := end < len(s.concepts)
	s.mu.Unlock()

	var next any
	if hasNext {
		next = fmt.Sprintf("%s%s?page=%d", s.URL, ListingPath(), pageNum+1)
	}
	s.writeJSON(w, map[string]any{"count": len(results), "next": next, "results": results})
}

func (s *OCLServer) summary(c FakeConcept) map[string]any {
	out := map[string]any{
		"id":           c.ID,
		"url":          ConceptPath(c.ID),
		"display_name": c.DisplayName,
	}
	if c.ExternalID != nil {
		out["external_id"] = *c.ExternalID
	}
	return out
}

func (s *OCLServer) serveDetail(w http.ResponseWriter, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.concepts {
		if c.ID != id {
			continue
		}
		detail := s.summary(c)
		names := make([]map[string]any, 0, len(c.Names))
		for _, n := range c.Names {
			names = append(names, map[string]any{"name": n, "locale": "en", "name_type": "FULLY_SPECIFIED"})
		}
		detail["names"] = names
		s.writeJSON(w, detail)
		return
	}
	http.NotFound(w, nil)
}

func (s *OCLServer) serveUpdate(w http.ResponseWriter, id string, body []byte) {
	if s.UpdateStatus != 0 && s.UpdateStatus != http.StatusOK {
		http.Error(w, `{"detail":"update rejected"}`, s.UpdateStatus)
		return
	}
	var payload struct {
		ExternalID string `json:"external_id"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.concepts {
		if s.concepts[i].ID == id {
			value := payload.ExternalID
			s.concepts[i].ExternalID = &value
			s.writeJSON(w, s.summary(s.concepts[i]))
			return
		}
	}
	http.NotFound(w, nil)
}

func (s *OCLServer) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.t.Errorf("encode fake response: %v", err)
	}
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string { return &s }
