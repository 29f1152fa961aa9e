package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-drift/permissions/internal/config"
	"github.com/go-drift/permissions/internal/simulator"
	"github.com/go-drift/permissions/pkg/permission"
	"github.com/go-drift/permissions/pkg/platform"
)

func newTestServer(t *testing.T, timeout time.Duration, domains ...config.DomainConfig) (*httptest.Server, *simulator.Bridge) {
	t.Helper()
	bridge := simulator.New(&config.Resolved{
		AppID:           "com.example.test",
		SettingsOpen:    true,
		ServicesEnabled: true,
		Domains:         domains,
	}, nil)
	platform.SetNativeBridge(bridge)

	m := permission.NewManager(permission.NewChannelAuthorizer())
	srv := httptest.NewServer(New(m, nil, timeout).Handler())
	t.Cleanup(func() {
		srv.Close()
		bridge.Close()
		platform.ResetForTest()
	})
	return srv, bridge
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	require.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, time.Second)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	decode(t, resp, &body)
	assert.Equal(t, "ok", body["status"])
	assert.EqualValues(t, 12, body["capabilities"])
}

func TestListPermissions(t *testing.T) {
	srv, _ := newTestServer(t, time.Second,
		config.DomainConfig{Domain: "contacts", Status: "authorized", Response: "denied"},
		config.DomainConfig{Domain: "avcapture", Status: "restricted", Response: "denied"},
	)

	resp, err := http.Get(srv.URL + "/api/permissions?capabilities=contacts,Camera,bogus")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Results permission.Result `json:"results"`
	}
	decode(t, resp, &body)
	assert.Equal(t, permission.Result{
		permission.Contacts: permission.StatusGranted,
		permission.Camera:   permission.StatusRestricted,
		"bogus":             permission.StatusUnknown,
	}, body.Results)
}

func TestGetPermission(t *testing.T) {
	srv, _ := newTestServer(t, time.Second,
		config.DomainConfig{Domain: "corelocation", Status: "authorizedWhenInUse", Response: "denied"},
	)

	tests := []struct {
		path      string
		status    permission.Status
		supported bool
	}{
		{path: "locationWhenInUse", status: permission.StatusGranted, supported: true},
		{path: "location_always", status: permission.StatusDenied, supported: true},
		{path: "sms", status: permission.StatusUnknown, supported: false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := http.Get(srv.URL + "/api/permissions/" + tt.path)
			require.NoError(t, err)
			require.Equal(t, http.StatusOK, resp.StatusCode)

			var body struct {
				Status    permission.Status `json:"status"`
				Supported bool              `json:"supported"`
			}
			decode(t, resp, &body)
			assert.Equal(t, tt.status, body.Status)
			assert.Equal(t, tt.supported, body.Supported)
		})
	}
}

func TestRequestPermissions(t *testing.T) {
	srv, _ := newTestServer(t, 2*time.Second,
		config.DomainConfig{Domain: "avcapture", Target: "video", Status: "notDetermined", Response: "authorized", Delay: 10 * time.Millisecond},
		config.DomainConfig{Domain: "contacts", Status: "denied", Response: "denied"},
	)

	payload := `{"permissions":["camera","contacts","bogus","camera"]}`
	resp, err := http.Post(srv.URL+"/api/permissions/request", "application/json", strings.NewReader(payload))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Results permission.Result `json:"results"`
	}
	decode(t, resp, &body)
	assert.Equal(t, permission.Result{
		permission.Camera:   permission.StatusGranted,
		permission.Contacts: permission.StatusDenied,
		"bogus":             permission.StatusUnknown,
	}, body.Results)
}

func TestRequestPermissionsTimeout(t *testing.T) {
	srv, _ := newTestServer(t, 50*time.Millisecond,
		config.DomainConfig{Domain: "speech", Status: "notDetermined", Response: "authorized", Silent: true},
	)

	resp, err := http.Post(srv.URL+"/api/permissions/request", "application/json", strings.NewReader(`{"permissions":["speech"]}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusGatewayTimeout, resp.StatusCode)

	var body errorBody
	decode(t, resp, &body)
	assert.Equal(t, "request_timeout", body.Error.Code)
}

func TestRequestPermissionsInvalidPayload(t *testing.T) {
	srv, _ := newTestServer(t, time.Second)

	resp, err := http.Post(srv.URL+"/api/permissions/request", "application/json", bytes.NewBufferString("{"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body errorBody
	decode(t, resp, &body)
	assert.Equal(t, "invalid_payload", body.Error.Code)
}

func TestOpenSettings(t *testing.T) {
	srv, _ := newTestServer(t, time.Second)

	resp, err := http.Post(srv.URL+"/api/settings/open", "application/json", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]bool
	decode(t, resp, &body)
	assert.True(t, body["opened"])
}

func TestWatchChanges(t *testing.T) {
	srv, bridge := newTestServer(t, time.Second,
		config.DomainConfig{Domain: "photokit", Status: "notDetermined", Response: "denied"},
	)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/permissions/changes"
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	bridge.SetStatus("photokit", "", "limited")

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var change permission.Change
	require.NoError(t, conn.ReadJSON(&change))
	assert.Equal(t, permission.Change{Capability: permission.Photos, Status: permission.StatusLimited}, change)
}
