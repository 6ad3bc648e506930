// Package testutil provides testing utilities for nameyourink.
package testutil

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// MockStyle is one entry served by the mock /styles endpoint.
type MockStyle struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// DefaultStyles mirrors the production catalog.
func DefaultStyles() []MockStyle {
	return []MockStyle{
		{ID: 261, Name: "Golden 3D"},
		{ID: 3475, Name: "Green Announcement"},
		{ID: 4500, Name: "Cyber Neon"},
		{ID: 1234, Name: "Retro Wave"},
		{ID: 888, Name: "Pink Barbie"},
		{ID: 567, Name: "Street Graffiti"},
		{ID: 99, Name: "Liquid Silver"},
		{ID: 202, Name: "Comic Boom"},
	}
}

// MockBackend is a configurable mock of the nameyourink backend
// (/styles, /preview, /generate) for testing.
type MockBackend struct {
	server *httptest.Server

	mu            sync.Mutex
	styles        []MockStyle
	stylesFailure string
	failing       map[string]string
	malformed     map[string]bool
	delay         time.Duration
	previewCalls  map[string]int
	generateCalls int
	requestCount  int
	inFlight      int
	maxInFlight   int
}

// NewMockBackend creates a new mock backend serving DefaultStyles.
func NewMockBackend() *MockBackend {
	mock := &MockBackend{
		styles:       DefaultStyles(),
		failing:      make(map[string]string),
		malformed:    make(map[string]bool),
		previewCalls: make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/styles", mock.handleStyles)
	mux.HandleFunc("/preview", mock.handlePreview)
	mux.HandleFunc("/generate", mock.handleGenerate)

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.requestCount++
		mock.mu.Unlock()
		mux.ServeHTTP(w, r)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockBackend) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockBackend) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockBackend) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.previewCalls = make(map[string]int)
	m.generateCalls = 0
	m.requestCount = 0
	m.maxInFlight = 0
}

// SetStyles replaces the catalog served by /styles.
func (m *MockBackend) SetStyles(styles []MockStyle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.styles = styles
}

// FailStyles makes /styles answer success=false with message.
// An empty message restores normal behaviour.
func (m *MockBackend) FailStyles(message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stylesFailure = message
}

// FailPreview makes /preview and /generate answer success=false for styleID.
func (m *MockBackend) FailPreview(styleID, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failing[styleID] = message
}

// MalformPreview makes /preview answer a non-JSON body for styleID.
func (m *MockBackend) MalformPreview(styleID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.malformed[styleID] = true
}

// SetDelay adds a fixed latency to every /preview and /generate response.
func (m *MockBackend) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// PreviewCalls returns how many /preview requests were made for styleID.
func (m *MockBackend) PreviewCalls(styleID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.previewCalls[styleID]
}

// TotalPreviewCalls returns the number of /preview requests.
func (m *MockBackend) TotalPreviewCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, n := range m.previewCalls {
		total += n
	}
	return total
}

// GenerateCalls returns the number of /generate requests.
func (m *MockBackend) GenerateCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generateCalls
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockBackend) GetRequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requestCount
}

// MaxInFlight returns the highest number of simultaneous /preview requests seen.
func (m *MockBackend) MaxInFlight() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxInFlight
}

// PreviewDataURL is the data URL the mock renders for a style and text.
func PreviewDataURL(styleID, text string) string {
	raw := fmt.Sprintf("preview:%s:%s", styleID, text)
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte(raw))
}

func (m *MockBackend) handleStyles(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	failure := m.stylesFailure
	styles := append([]MockStyle(nil), m.styles...)
	m.mu.Unlock()

	if failure != "" {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": failure})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "styles": styles})
}

func (m *MockBackend) handlePreview(w http.ResponseWriter, r *http.Request) {
	styleID := r.URL.Query().Get("styleId")
	text := r.URL.Query().Get("text")

	m.mu.Lock()
	m.previewCalls[styleID]++
	m.inFlight++
	if m.inFlight > m.maxInFlight {
		m.maxInFlight = m.inFlight
	}
	delay := m.delay
	failure, failing := m.failing[styleID]
	malformed := m.malformed[styleID]
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.inFlight--
		m.mu.Unlock()
	}()

	if delay > 0 {
		time.Sleep(delay)
	}

	switch {
	case malformed:
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("<html>oops</html>"))
	case failing:
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "error": failure})
	default:
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "dataUrl": PreviewDataURL(styleID, text)})
	}
}

func (m *MockBackend) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"success": false, "error": "method not allowed"})
		return
	}

	var req struct {
		Text    string          `json:"text"`
		StyleID json.RawMessage `json:"styleId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "invalid json"})
		return
	}
	var styleID string
	if err := json.Unmarshal(req.StyleID, &styleID); err != nil {
		styleID = string(req.StyleID)
	}

	m.mu.Lock()
	m.generateCalls++
	delay := m.delay
	failure, failing := m.failing[styleID]
	m.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	if req.Text == "" || styleID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "Missing text or styleId"})
		return
	}
	if failing {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": failure})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "dataUrl": PreviewDataURL(styleID, req.Text)})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
