package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"taglink/config"
	"taglink/logging"
	"taglink/status"
	"taglink/tagman"
)

func logAPI(format string, args ...interface{}) {
	logging.DebugLog("api", format, args...)
}

// Tags is the tag manager surface the API serves.
type Tags interface {
	ListTags() []*tagman.ManagedTag
	GetTag(name string) *tagman.ManagedTag
	WriteTag(name string, value interface{}) error
	GetPollStats() tagman.PollStats
}

// TagResponse is the JSON response for a tag value.
type TagResponse struct {
	Name       string      `json:"name"`
	Type       string      `json:"type"`
	Value      interface{} `json:"value"`
	Count      int         `json:"count,omitempty"`
	Status     string      `json:"status"`
	StatusCode int32       `json:"status_code"`
	Writable   bool        `json:"writable"`
	Error      string      `json:"error,omitempty"`
	Timestamp  string      `json:"timestamp,omitempty"`
}

// WriteRequest is the JSON request for writing a tag value.
type WriteRequest struct {
	Value interface{} `json:"value"`
}

// WriteResponse is the JSON response after writing a tag value.
// This matches the MQTT write response format.
type WriteResponse struct {
	Tag       string      `json:"tag"`
	Value     interface{} `json:"value"`
	Success   bool        `json:"success"`
	Status    int32       `json:"status"`
	Error     string      `json:"error,omitempty"`
	Timestamp string      `json:"timestamp"`
}

// StatusResponse is the JSON response for a decoded status code.
type StatusResponse struct {
	Code  int    `json:"code"`
	Name  string `json:"name"`
	Class string `json:"class"`
}

// StatsResponse is the JSON response for poll statistics.
type StatsResponse struct {
	Tags         int    `json:"tags"`
	TagsPolled   int    `json:"tags_polled"`
	ChangesFound int    `json:"changes_found"`
	LastPoll     string `json:"last_poll,omitempty"`
	LastError    string `json:"last_error,omitempty"`
}

// handlers holds the API handler functions.
type handlers struct {
	tags Tags
}

// NewRouter creates the REST API router. Writes need an admin user when
// users are configured.
func NewRouter(tags Tags, users []config.WebUser) chi.Router {
	r := chi.NewRouter()
	h := &handlers{tags: tags}

	r.Use(middleware.Recoverer)
	r.Use(basicAuth(users))

	r.Get("/stats", h.handleStats)
	r.Get("/status/{code}", h.handleStatus)
	r.Get("/tags", h.handleListTags)
	r.Get("/tags/{name}", h.handleGetTag)
	r.With(requireAdmin).Post("/tags/{name}", h.handleWrite)

	return r
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeJSONStatus(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSONStatus(w, code, map[string]string{"error": message})
}

func tagResponse(mt *tagman.ManagedTag) TagResponse {
	resp := TagResponse{
		Name:     mt.Config.Name,
		Type:     mt.Config.Type.String(),
		Writable: mt.Config.Writable,
	}

	if v := mt.GetValue(); v != nil {
		resp.Value = v.GoValue()
		resp.Count = v.Count
		resp.Timestamp = v.Timestamp.UTC().Format(time.RFC3339)
	}
	st := mt.GetStatus()
	resp.Status = st.String()
	resp.StatusCode = int32(st)
	if err := mt.GetError(); err != nil {
		resp.Error = err.Error()
	}
	return resp
}

func (h *handlers) handleListTags(w http.ResponseWriter, r *http.Request) {
	tags := h.tags.ListTags()
	response := make([]TagResponse, 0, len(tags))
	for _, mt := range tags {
		response = append(response, tagResponse(mt))
	}
	writeJSON(w, response)
}

func (h *handlers) handleGetTag(w http.ResponseWriter, r *http.Request) {
	mt := h.tags.GetTag(chi.URLParam(r, "name"))
	if mt == nil {
		writeError(w, http.StatusNotFound, "tag not found")
		return
	}
	writeJSON(w, tagResponse(mt))
}

func (h *handlers) handleWrite(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var raw map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	rawValue, ok := raw["value"]
	if !ok {
		writeError(w, http.StatusBadRequest, "missing value")
		return
	}

	// Decode numbers as json.Number so 64-bit integers keep their precision.
	var req WriteRequest
	dec := json.NewDecoder(bytes.NewReader(rawValue))
	dec.UseNumber()
	if err := dec.Decode(&req.Value); err != nil {
		writeError(w, http.StatusBadRequest, "invalid value: "+err.Error())
		return
	}

	err := h.tags.WriteTag(name, req.Value)
	resp := WriteResponse{
		Tag:       name,
		Value:     req.Value,
		Success:   err == nil,
		Status:    int32(status.Of(err)),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if err != nil {
		resp.Error = err.Error()
		logAPI("write %s failed: %v", name, err)
		writeJSONStatus(w, httpStatus(err), resp)
		return
	}
	logAPI("write %s = %v", name, req.Value)
	writeJSON(w, resp)
}

// httpStatus maps a write error to an HTTP status code.
func httpStatus(err error) int {
	switch {
	case errors.Is(err, tagman.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, tagman.ErrReadOnly):
		return http.StatusForbidden
	case errors.Is(err, tagman.ErrInvalidInput):
		return http.StatusBadRequest
	}

	switch status.Of(err).Class() {
	case status.ClassPending:
		return http.StatusServiceUnavailable
	case status.ClassTimeout:
		return http.StatusGatewayTimeout
	case status.ClassConfig:
		return http.StatusBadRequest
	case status.ClassMisuse:
		return http.StatusConflict
	default:
		return http.StatusBadGateway
	}
}

func (h *handlers) handleStatus(w http.ResponseWriter, r *http.Request) {
	parsed, err := strconv.ParseInt(chi.URLParam(r, "code"), 10, 32)
	if err != nil {
		writeError(w, http.StatusBadRequest, "status code must be a 32-bit integer")
		return
	}
	code := int(parsed)
	writeJSON(w, StatusResponse{
		Code:  code,
		Name:  status.Decode(code),
		Class: status.Status(code).Class().String(),
	})
}

func (h *handlers) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := h.tags.GetPollStats()
	resp := StatsResponse{
		Tags:         len(h.tags.ListTags()),
		TagsPolled:   stats.TagsPolled,
		ChangesFound: stats.ChangesFound,
	}
	if !stats.LastPollTime.IsZero() {
		resp.LastPoll = stats.LastPollTime.UTC().Format(time.RFC3339)
	}
	if stats.LastError != nil {
		resp.LastError = stats.LastError.Error()
	}
	writeJSON(w, resp)
}
