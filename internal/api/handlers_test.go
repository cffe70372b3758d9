package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skyfeed/internal/publish"
	"skyfeed/internal/types"
)

// --- Test Doubles ---

// mockPublisher records Submit calls and serves canned state.
type mockPublisher struct {
	submitted []types.Packet
	latest    *publish.Published
	stats     publish.Stats
}

func (m *mockPublisher) Submit(pkt types.Packet)       { m.submitted = append(m.submitted, pkt) }
func (m *mockPublisher) Latest() *publish.Published    { return m.latest }
func (m *mockPublisher) Stats() publish.Stats          { return m.stats }

func newTestServer(t *testing.T, pub *mockPublisher) *Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	s, err := NewServer(pub, logger)
	require.NoError(t, err)
	return s
}

// --- Tests ---

func TestIngestAcceptsValidPacket(t *testing.T) {
	pub := &mockPublisher{}
	s := newTestServer(t, pub)

	body := `{"dateTime": 1718445600, "units": "us", "fields": {"outTemp": 72.5, "windDir": null}}`
	req := httptest.NewRequest(http.MethodPost, "/ingest", strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, pub.submitted, 1)
	pkt := pub.submitted[0]
	assert.Equal(t, int64(1718445600), pkt.Time)
	assert.Equal(t, types.UnitsUS, pkt.Units)
	v, ok := pkt.Value("outTemp")
	require.True(t, ok)
	assert.Equal(t, 72.5, v)
	assert.Nil(t, pkt.Fields["windDir"], "null field arrives as nil, not zero")
}

func TestIngestDefaultsToCanonicalUnits(t *testing.T) {
	pub := &mockPublisher{}
	s := newTestServer(t, pub)

	body := `{"dateTime": 1718445600, "fields": {"outTemp": 20.0}}`
	req := httptest.NewRequest(http.MethodPost, "/ingest", strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, pub.submitted, 1)
	assert.Equal(t, types.UnitsCanonical, pub.submitted[0].Units)
}

func TestIngestRejectsMalformedJSON(t *testing.T) {
	pub := &mockPublisher{}
	s := newTestServer(t, pub)

	for name, body := range map[string]string{
		"syntax error":  `{"dateTime": `,
		"empty body":    ``,
		"unknown field": `{"dateTime": 1, "fields": {"a": 1}, "bogus": true}`,
		"two documents": `{"dateTime": 1, "fields": {"a": 1}} {}`,
	} {
		req := httptest.NewRequest(http.MethodPost, "/ingest", strings.NewReader(body))
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, name)
	}
	assert.Empty(t, pub.submitted)
}

func TestIngestRejectsValidationFailures(t *testing.T) {
	pub := &mockPublisher{}
	s := newTestServer(t, pub)

	for name, body := range map[string]string{
		"missing dateTime": `{"fields": {"outTemp": 20.0}}`,
		"empty fields":     `{"dateTime": 1718445600, "fields": {}}`,
		"bad units":        `{"dateTime": 1718445600, "units": "imperial", "fields": {"outTemp": 20.0}}`,
	} {
		req := httptest.NewRequest(http.MethodPost, "/ingest", strings.NewReader(body))
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, name)

		var resp struct {
			Error struct {
				Code string `json:"code"`
			} `json:"error"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), name)
		assert.Equal(t, "validation_failed", resp.Error.Code, name)
	}
	assert.Empty(t, pub.submitted)
}

func TestRecordBeforeFirstPublishIs404(t *testing.T) {
	s := newTestServer(t, &mockPublisher{})

	req := httptest.NewRequest(http.MethodGet, "/clientraw.txt", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRecordServesLatestBody(t *testing.T) {
	published := &publish.Published{
		Body: "12345 1.0 !!EOR!!",
		Time: time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC),
		Tick: "abc",
	}
	s := newTestServer(t, &mockPublisher{latest: published})

	req := httptest.NewRequest(http.MethodGet, "/clientraw.txt", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "12345 1.0 !!EOR!!\n", rec.Body.String())
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get("Last-Modified"))
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t, &mockPublisher{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStatusReportsCounters(t *testing.T) {
	pub := &mockPublisher{stats: publish.Stats{
		Received:    10,
		Dropped:     2,
		Published:   3,
		LastPublish: time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC),
	}}
	s := newTestServer(t, pub)

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(10), resp.Received)
	assert.Equal(t, int64(2), resp.Dropped)
	assert.Equal(t, int64(3), resp.Published)
	assert.Equal(t, "2024-06-15T10:00:00Z", resp.LastPublish)
}

func TestRecovererTurnsPanicInto500(t *testing.T) {
	s := newTestServer(t, &mockPublisher{})
	s.router.Get("/boom", func(w http.ResponseWriter, r *http.Request) {
		panic("kaboom")
	})

	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
