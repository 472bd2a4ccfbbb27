package gateway

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spotter/internal/adsb"
	"spotter/internal/geo"
	"spotter/internal/query"
	"spotter/internal/registry"
)

func newTestServer(t *testing.T, reg *registry.Registry) *httptest.Server {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	srv := httptest.NewServer(New(query.NewEngine(reg), reg.Observer(), logger))
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, srv *httptest.Server, path string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func populatedRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg := registry.New(registry.Options{Observer: geo.Point{}, MaxRange: 500})

	upsert := func(frame adsb.Frame) {
		report, err := adsb.Decode(frame[:])
		require.NoError(t, err)
		reg.Upsert(report)
	}
	for _, odd := range []bool{false, true} {
		upsert(adsb.EncodeAirbornePosition(0x00000A, 9000, 0, 0.09, odd))
		upsert(adsb.EncodeAirbornePosition(0x00000B, 9000, 0, 0.45, odd))
	}
	upsert(adsb.EncodeIdentification(0x00000C, "CHARLIE"))
	return reg
}

// TestGateway_Home tests the plain text status page
func TestGateway_Home(t *testing.T) {
	reg := registry.New(registry.Options{Observer: geo.Point{Latitude: 51.47, Longitude: -0.4543}, MaxRange: 500})
	reg.Upsert(&adsb.Report{ICAO: 1})
	srv := newTestServer(t, reg)

	resp, body := get(t, srv, "/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/plain")

	text := string(body)
	assert.Contains(t, text, "==[Info]==========")
	assert.Contains(t, text, "Lat: 51.47\n")
	assert.Contains(t, text, "Long: -0.4543\n")
	assert.Contains(t, text, "Airplanes tracked: 1\n")
	assert.Contains(t, text, "==[Protocol]=====")
	for _, route := range Routes {
		assert.Contains(t, text, route)
	}
}

// TestGateway_Airplanes tests the full listing
func TestGateway_Airplanes(t *testing.T) {
	srv := newTestServer(t, populatedRegistry(t))

	resp, body := get(t, srv, "/airplanes")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var all map[string]map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &all))
	require.Len(t, all, 3)
	assert.Contains(t, all, "00000a")
	assert.Contains(t, all, "00000b")
	assert.Equal(t, "CHARLIE", all["00000c"]["callsign"])
	assert.Nil(t, all["00000c"]["distance"])
	assert.InDelta(t, 10.0, all["00000a"]["distance"], 0.05)
}

// TestGateway_Extremes tests the closest and furthest endpoints
func TestGateway_Extremes(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		expected string
	}{
		{name: "Closest", path: "/airplane/closest", expected: "00000a"},
		{name: "Furthest", path: "/airplane/furthest", expected: "00000b"},
	}

	srv := newTestServer(t, populatedRegistry(t))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := get(t, srv, tt.path)
			assert.Equal(t, http.StatusOK, resp.StatusCode)

			var pair []json.RawMessage
			require.NoError(t, json.Unmarshal(body, &pair))
			require.Len(t, pair, 2)
			assert.JSONEq(t, `"`+tt.expected+`"`, string(pair[0]))

			var entity map[string]interface{}
			require.NoError(t, json.Unmarshal(pair[1], &entity))
			assert.Equal(t, tt.expected, entity["icao"])
		})
	}
}

// TestGateway_ExtremesEmpty tests that no positioned aircraft yields null
func TestGateway_ExtremesEmpty(t *testing.T) {
	reg := registry.New(registry.Options{MaxRange: 500})
	reg.Upsert(&adsb.Report{ICAO: 0x123456})
	srv := newTestServer(t, reg)

	for _, path := range []string{"/airplane/closest", "/airplane/furthest"} {
		resp, body := get(t, srv, path)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "null", string(body))
	}
}

// TestGateway_ByID tests single lookups and their error statuses
func TestGateway_ByID(t *testing.T) {
	srv := newTestServer(t, populatedRegistry(t))

	tests := []struct {
		name   string
		path   string
		status int
	}{
		{name: "Known", path: "/airplane/00000c", status: http.StatusOK},
		{name: "Known upper case", path: "/airplane/00000C", status: http.StatusOK},
		{name: "Unknown", path: "/airplane/abcdef", status: http.StatusNotFound},
		{name: "Malformed", path: "/airplane/nothex", status: http.StatusBadRequest},
		{name: "Too long", path: "/airplane/00000c00", status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := get(t, srv, tt.path)
			assert.Equal(t, tt.status, resp.StatusCode)

			var decoded map[string]interface{}
			require.NoError(t, json.Unmarshal(body, &decoded))
			if tt.status == http.StatusOK {
				assert.Equal(t, "00000c", decoded["icao"])
				assert.Nil(t, decoded["latitude"])
				return
			}
			assert.NotEmpty(t, decoded["error"])
		})
	}
}

// TestGateway_UnknownRoute tests that other paths are not served
func TestGateway_UnknownRoute(t *testing.T) {
	srv := newTestServer(t, populatedRegistry(t))

	resp, _ := get(t, srv, "/airplanes/closest")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// TestGateway_CORS tests that browsers may read the API cross-origin
func TestGateway_CORS(t *testing.T) {
	srv := newTestServer(t, populatedRegistry(t))

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/airplanes", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://dashboard.local")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

// TestGateway_RecoversFromPanic tests that a failing handler does not take the server down
func TestGateway_RecoversFromPanic(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	srv := httptest.NewServer(New(panickingQueries{}, geo.Point{}, logger))
	defer srv.Close()

	resp, _ := get(t, srv, "/airplanes")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	resp, _ = get(t, srv, "/airplane/closest")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

type panickingQueries struct{}

func (panickingQueries) All() map[adsb.ICAO]registry.Entity   { panic("boom") }
func (panickingQueries) Nearest() *query.Match                { return nil }
func (panickingQueries) Farthest() *query.Match               { return nil }
func (panickingQueries) ByID(string) (registry.Entity, error) { return registry.Entity{}, nil }
func (panickingQueries) Count() int                           { return 0 }

// TestRespondJSON_EncodeFailure tests that an unencodable value still yields a JSON error
func TestRespondJSON_EncodeFailure(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	h := &handler{logger: logrus.NewEntry(logger)}

	rec := httptest.NewRecorder()
	h.respondJSON(rec, http.StatusOK, make(chan int))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":"internal error"}`, rec.Body.String())
}
