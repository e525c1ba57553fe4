package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"fleet_tracker/internal/alerts"
	"fleet_tracker/internal/apperr"
	"fleet_tracker/internal/auth"
	"fleet_tracker/internal/catalog"
	"fleet_tracker/internal/middleware"
	"fleet_tracker/internal/store"
	"fleet_tracker/internal/telemetry"
	"fleet_tracker/internal/testutil"
)

const (
	deviceID = "BOLT-TEST-001"
	apiKey   = "bolt_secret_key_for_testing"
	adminKey = "ops-admin-key"
)

type testServer struct {
	router   *gin.Engine
	registry *auth.Registry
	ingestor *telemetry.Ingestor
	alerts   *alerts.Store
	hub      *alerts.Hub
	tokens   *auth.TokenIssuer
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	st := store.New(testutil.OpenDB(t))
	q := st.Queries()

	index := catalog.NewIndex(q)
	for _, p := range testutil.DemoPoints() {
		_, err := index.Upsert(ctx, p)
		require.NoError(t, err)
	}

	verifier := auth.NewBcryptVerifier(bcrypt.MinCost)
	registry := auth.NewRegistry(q, verifier)
	spec, err := auth.NewDeviceSpec(deviceID, apiKey, "ThinkPad", "DevClient")
	require.NoError(t, err)
	_, err = registry.Provision(ctx, spec)
	require.NoError(t, err)

	hub := alerts.NewHub(16)
	t.Cleanup(hub.Close)

	alertStore := alerts.NewStore(q)
	ingestor := telemetry.NewIngestor(st, q, telemetry.NewRuleEngine(index), alertStore, alerts.NewFanout(hub))

	gate := auth.NewGate(registry, verifier, time.Minute)
	registry.OnRotate(gate)
	tokens := auth.NewTokenIssuer("test-secret", time.Hour)

	return &testServer{
		router: SetupRouter(Deps{
			Store:    st,
			Catalog:  index,
			Registry: registry,
			Gate:     gate,
			Tokens:   tokens,
			Ingestor: ingestor,
			Alerts:   alertStore,
			Hub:      hub,
			AdminKey: adminKey,
		}),
		registry: registry,
		ingestor: ingestor,
		alerts:   alertStore,
		hub:      hub,
		tokens:   tokens,
	}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func deviceHeaders() map[string]string {
	return map[string]string{middleware.HeaderDeviceID: deviceID, middleware.HeaderAPIKey: apiKey}
}

func adminHeaders() map[string]string {
	return map[string]string{middleware.HeaderAdminKey: adminKey}
}

func heartbeatBody(ts string, fuel float64, codes ...string) map[string]interface{} {
	return map[string]interface{}{
		"timestamp": ts,
		"location":  map[string]float64{"lat": 10.7800, "lon": 106.6990},
		"obd_data": map[string]interface{}{
			"fuel_level":    fuel,
			"engine_status": "ON",
			"rpm":           900,
			"speed":         30,
			"error_codes":   codes,
		},
	}
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v))
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestServicePointRoutes(t *testing.T) {
	s := newTestServer(t)

	t.Run("upsert", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/service-points", map[string]interface{}{
			"id": "EV002", "name": "Charge Point", "category": "charging", "lat": 10.79, "lon": 106.70,
		}, nil)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		var got map[string]interface{}
		decode(t, w, &got)
		assert.Equal(t, "EV002", got["id"])
	})

	t.Run("upsert without coordinates", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/service-points", map[string]interface{}{
			"id": "X", "name": "X", "category": "fuel",
		}, nil)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("upsert out of range", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/service-points", map[string]interface{}{
			"id": "X", "name": "X", "category": "fuel", "lat": 120, "lon": 0,
		}, nil)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("nearest", func(t *testing.T) {
		w := s.do(t, http.MethodGet, "/service-points/nearest?lat=10.78&lon=106.699&category=fuel", nil, nil)
		require.Equal(t, http.StatusOK, w.Code)

		var got map[string]interface{}
		decode(t, w, &got)
		assert.Equal(t, "GAS002", got["id"])
		assert.Greater(t, got["distance_km"], 0.0)
	})

	t.Run("nearest unknown category", func(t *testing.T) {
		w := s.do(t, http.MethodGet, "/service-points/nearest?lat=10.78&lon=106.699&category=car_wash", nil, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("nearby", func(t *testing.T) {
		w := s.do(t, http.MethodGet, "/service-points/nearby?lat=10.78&lon=106.699&radius_km=1&category=fuel", nil, nil)
		require.Equal(t, http.StatusOK, w.Code)

		var got []map[string]interface{}
		decode(t, w, &got)
		require.Len(t, got, 2)
		assert.Equal(t, "GAS002", got[0]["id"])
	})

	t.Run("nearby geojson", func(t *testing.T) {
		w := s.do(t, http.MethodGet, "/service-points/nearby?lat=10.78&lon=106.699&format=geojson", nil, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"FeatureCollection"`)
	})

	t.Run("nearby negative radius", func(t *testing.T) {
		w := s.do(t, http.MethodGet, "/service-points/nearby?lat=10.78&lon=106.699&radius_km=-1", nil, nil)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})
}

func TestDeviceAuthComesFirst(t *testing.T) {
	s := newTestServer(t)
	body := heartbeatBody("2025-01-01T08:00:00Z", 10)

	w := s.do(t, http.MethodPost, "/device/heartbeat", body, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodPost, "/device/heartbeat", body, map[string]string{
		middleware.HeaderDeviceID: "GHOST-001", middleware.HeaderAPIKey: apiKey,
	})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodPost, "/device/heartbeat", body, map[string]string{
		middleware.HeaderDeviceID: deviceID, middleware.HeaderAPIKey: "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodPost, "/device/heartbeat", body, map[string]string{
		middleware.HeaderDeviceID: deviceID,
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	ctx := context.Background()
	for _, id := range []string{deviceID, "GHOST-001"} {
		_, err := s.ingestor.LastLocation(ctx, id)
		assert.ErrorIs(t, err, apperr.ErrNotFound, id)

		logs, err := s.ingestor.RecentLogs(ctx, id, 0)
		require.NoError(t, err)
		assert.Empty(t, logs, id)

		unread, err := s.alerts.ListUnread(ctx, id)
		require.NoError(t, err)
		assert.Empty(t, unread, id)
	}
}

func TestHeartbeatAndAlertLifecycle(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/device/location/last", nil, deviceHeaders())
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodPost, "/device/heartbeat", heartbeatBody("2025-01-01T08:00:00", 15.0), deviceHeaders())
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	var accepted struct {
		Status string                   `json:"status"`
		Alerts []map[string]interface{} `json:"alerts"`
	}
	decode(t, w, &accepted)
	assert.Equal(t, "accepted", accepted.Status)
	require.Len(t, accepted.Alerts, 1)
	assert.Equal(t, "LOW_FUEL", accepted.Alerts[0]["alert_type"])
	assert.True(t, strings.HasPrefix(accepted.Alerts[0]["message"].(string), "15.0% remaining"))

	w = s.do(t, http.MethodPost, "/device/heartbeat", heartbeatBody("2025-01-01T08:01:00+07:00", 75.0), deviceHeaders())
	require.Equal(t, http.StatusAccepted, w.Code)
	decode(t, w, &accepted)
	assert.Empty(t, accepted.Alerts)

	w = s.do(t, http.MethodGet, "/device/location/last", nil, deviceHeaders())
	require.Equal(t, http.StatusOK, w.Code)
	var loc map[string]interface{}
	decode(t, w, &loc)
	assert.Equal(t, 10.78, loc["last_lat"])
	assert.Equal(t, 106.699, loc["last_lon"])

	w = s.do(t, http.MethodGet, "/device/obd-logs?limit=1", nil, deviceHeaders())
	require.Equal(t, http.StatusOK, w.Code)
	var logs []map[string]interface{}
	decode(t, w, &logs)
	require.Len(t, logs, 1)
	assert.Equal(t, 75.0, logs[0]["fuel_level"])

	w = s.do(t, http.MethodGet, "/device/alerts", nil, deviceHeaders())
	require.Equal(t, http.StatusOK, w.Code)
	var unread []map[string]interface{}
	decode(t, w, &unread)
	require.Len(t, unread, 1)
	alertID := unread[0]["alert_id"].(string)

	w = s.do(t, http.MethodPut, "/device/alerts/"+alertID+"/read", nil, deviceHeaders())
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(t, http.MethodPut, "/device/alerts/"+alertID+"/read", nil, deviceHeaders())
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodPut, "/device/alerts/not-a-uuid/read", nil, deviceHeaders())
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = s.do(t, http.MethodGet, "/device/alerts", nil, deviceHeaders())
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())
}

func TestHeartbeatValidation(t *testing.T) {
	s := newTestServer(t)

	cases := map[string]map[string]interface{}{
		"bad timestamp":  heartbeatBody("yesterday", 50),
		"fuel above 100": heartbeatBody("2025-01-01T08:00:00Z", 150),
		"missing location": {
			"timestamp": "2025-01-01T08:00:00Z",
			"obd_data":  map[string]interface{}{},
		},
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			w := s.do(t, http.MethodPost, "/device/heartbeat", body, deviceHeaders())
			assert.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())
		})
	}

	_, err := s.ingestor.LastLocation(context.Background(), deviceID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestTokenAuth(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/device/token", nil, deviceHeaders())
	require.Equal(t, http.StatusOK, w.Code)
	var issued struct {
		Token    string `json:"token"`
		DeviceID string `json:"device_id"`
	}
	decode(t, w, &issued)
	assert.Equal(t, deviceID, issued.DeviceID)
	require.NotEmpty(t, issued.Token)

	bearer := map[string]string{"Authorization": "Bearer " + issued.Token}
	w = s.do(t, http.MethodGet, "/device/alerts", nil, bearer)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/device/alerts", nil, map[string]string{"Authorization": "Bearer forged"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	t.Run("a token cannot mint another token", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/device/token", nil, bearer)
		assert.Equal(t, http.StatusUnauthorized, w.Code)

		w = s.do(t, http.MethodPost, "/device/token?token="+issued.Token, nil, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)

		w = s.do(t, http.MethodPost, "/device/token", nil, map[string]string{middleware.HeaderDeviceID: deviceID})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestRotatedSecretIsRejected(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/device/alerts", nil, deviceHeaders())
	require.Equal(t, http.StatusOK, w.Code)

	spec, err := auth.NewDeviceSpec(deviceID, "rotated", "", "")
	require.NoError(t, err)
	_, err = s.registry.Provision(context.Background(), spec)
	require.NoError(t, err)

	w = s.do(t, http.MethodGet, "/device/alerts", nil, deviceHeaders())
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodGet, "/device/alerts", nil, map[string]string{
		middleware.HeaderDeviceID: deviceID, middleware.HeaderAPIKey: "rotated",
	})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAdminRequiresKey(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/admin/devices", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodGet, "/admin/devices", nil, map[string]string{middleware.HeaderAdminKey: "guess"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	// device credentials are not operator credentials
	w = s.do(t, http.MethodGet, "/admin/devices", nil, deviceHeaders())
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodPut, "/admin/alerts/"+uuid.NewString()+"/read", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminDisabledWithoutKey(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	AdminRoutes(r, Deps{})

	req := httptest.NewRequest(http.MethodGet, "/admin/devices", nil)
	req.Header.Set(middleware.HeaderAdminKey, adminKey)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestAdminFleetView(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/admin/devices", nil, adminHeaders())
	require.Equal(t, http.StatusOK, w.Code)
	var devices []map[string]interface{}
	decode(t, w, &devices)
	require.Len(t, devices, 1)
	assert.Equal(t, deviceID, devices[0]["id"])
	assert.Equal(t, "ThinkPad", devices[0]["vehicle_make"])
	assert.Equal(t, "DevClient", devices[0]["vehicle_model"])
	assert.NotContains(t, devices[0], "credential_verifier")
	assert.NotContains(t, w.Body.String(), "$2a$")

	w = s.do(t, http.MethodGet, "/admin/devices/"+deviceID+"/location", nil, adminHeaders())
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodGet, "/admin/devices/"+deviceID+"/alerts", nil, adminHeaders())
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())

	w = s.do(t, http.MethodPost, "/device/heartbeat", heartbeatBody("2025-01-01T08:00:00Z", 5, "P0300"), deviceHeaders())
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	w = s.do(t, http.MethodGet, "/admin/devices/"+deviceID+"/location", nil, adminHeaders())
	require.Equal(t, http.StatusOK, w.Code)
	var loc map[string]interface{}
	decode(t, w, &loc)
	assert.Equal(t, 10.78, loc["last_lat"])
	assert.Equal(t, 106.699, loc["last_lon"])
	seen, err := time.Parse(time.RFC3339, loc["last_seen"].(string))
	require.NoError(t, err)
	assert.True(t, seen.Equal(time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)), seen)

	w = s.do(t, http.MethodGet, "/admin/devices/"+deviceID+"/alerts", nil, adminHeaders())
	require.Equal(t, http.StatusOK, w.Code)
	var unread []map[string]interface{}
	decode(t, w, &unread)
	require.Len(t, unread, 2)
	for _, a := range unread {
		assert.NotEmpty(t, a["alert_id"])
		assert.NotEmpty(t, a["timestamp"])
		assert.NotEmpty(t, a["message"])
	}
	assert.ElementsMatch(t, []interface{}{"LOW_FUEL", "ERROR_CODE"}, []interface{}{unread[0]["alert_type"], unread[1]["alert_type"]})

	alertID := unread[0]["alert_id"].(string)
	w = s.do(t, http.MethodPut, "/admin/alerts/"+alertID+"/read", nil, adminHeaders())
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(t, http.MethodPut, "/admin/alerts/"+alertID+"/read", nil, adminHeaders())
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodPut, "/admin/alerts/"+uuid.NewString()+"/read", nil, adminHeaders())
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodPut, "/admin/alerts/not-a-uuid/read", nil, adminHeaders())
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	// the device sees the operator's acknowledgement
	w = s.do(t, http.MethodGet, "/device/alerts", nil, deviceHeaders())
	require.Equal(t, http.StatusOK, w.Code)
	var remaining []map[string]interface{}
	decode(t, w, &remaining)
	require.Len(t, remaining, 1)
	assert.Equal(t, unread[1]["alert_id"], remaining[0]["alert_id"])

	w = s.do(t, http.MethodGet, "/admin/devices/GHOST-001/location", nil, adminHeaders())
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAlertStream(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.router)
	defer srv.Close()

	token, _, err := s.tokens.Issue(deviceID)
	require.NoError(t, err)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/alerts?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return s.hub.Subscribers(deviceID) == 1 }, time.Second, 10*time.Millisecond)

	w := s.do(t, http.MethodPost, "/device/heartbeat", heartbeatBody("2025-01-01T08:00:00Z", 12.5), deviceHeaders())
	require.Equal(t, http.StatusAccepted, w.Code)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var pushed map[string]interface{}
	require.NoError(t, conn.ReadJSON(&pushed))
	assert.Equal(t, "LOW_FUEL", pushed["alert_type"])
	assert.Equal(t, deviceID, pushed["device_id"])

	_, _, err = websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws/alerts", nil)
	assert.Error(t, err)
}
