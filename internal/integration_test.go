package internal

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
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"bioreactor-monitor/config"
	"bioreactor-monitor/internal/api"
	"bioreactor-monitor/internal/auth"
	"bioreactor-monitor/internal/db"
	"bioreactor-monitor/internal/ingest"
	"bioreactor-monitor/internal/model"
	"bioreactor-monitor/internal/realtime"
	"bioreactor-monitor/internal/retention"
	"bioreactor-monitor/internal/store"
)

type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type wsClient struct {
	t    *testing.T
	conn *websocket.Conn
}

func dial(t *testing.T, serverURL, token string) *wsClient {
	t.Helper()
	u := "ws" + strings.TrimPrefix(serverURL, "http") + "/ws?token=" + token
	conn, resp, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	c := &wsClient{t: t, conn: conn}
	greeting := c.next()
	require.Equal(t, realtime.EventSystem, greeting.Event)
	return c
}

func (c *wsClient) send(event string, data any) {
	c.t.Helper()
	require.NoError(c.t, c.conn.WriteJSON(map[string]any{"event": event, "data": data}))
}

func (c *wsClient) next() envelope {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var env envelope
	require.NoError(c.t, c.conn.ReadJSON(&env))
	return env
}

// sync waits until every control message sent before it has been handled.
func (c *wsClient) sync() []int64 {
	c.t.Helper()
	c.send(realtime.ControlGetSubscriptions, nil)
	env := c.next()
	require.Equal(c.t, realtime.EventSubscriptions, env.Event)
	var body struct {
		ReactorIDs []int64 `json:"reactorIds"`
	}
	require.NoError(c.t, json.Unmarshal(env.Data, &body))
	return body.ReactorIDs
}

func postJSON(t *testing.T, url, token string, body any) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(b))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

// TestMonitoringLifecycle drives ingestion, alerting, realtime delivery, acknowledgement
// and retention through the HTTP and websocket surfaces against one database.
func TestMonitoringLifecycle(t *testing.T) {
	// --- Test Setup ---
	testDB, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, _ := testDB.DB()
	sqlDB.SetMaxOpenConns(1)
	defer sqlDB.Close()
	require.NoError(t, db.Migrate(testDB))

	cfg := &config.Config{}
	cfg.Auth.JWTSecret = "integration"
	cfg.ApplyDefaults()
	cfg.Server.CacheTTLSeconds = 0

	appStore := store.NewGormStore(testDB, 5*time.Second)
	hub := realtime.New(zerolog.Nop())
	defer hub.Close()
	mgr := auth.NewManager(cfg.Auth, nil)

	handler := api.NewHandler(api.Deps{
		Store:    appStore,
		Ingest:   ingest.NewService(appStore, hub, nil, zerolog.Nop()),
		Hub:      hub,
		Auth:     mgr,
		Realtime: realtime.OptionsFromConfig(cfg.Realtime),
		Log:      zerolog.Nop(),
	})
	server := httptest.NewServer(api.NewRouter(cfg.Server, handler))
	defer server.Close()

	adminToken, err := mgr.Issue(auth.Identity{UserID: "1", Username: "root", Role: auth.RoleAdmin})
	require.NoError(t, err)
	userToken, err := mgr.Issue(auth.Identity{UserID: "2", Username: "bob", Role: auth.RoleNormal})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, appStore.UpsertReactor(ctx, &model.Reactor{ID: 1, Name: "Fermenter A", IsActive: true}))

	// A connection with a bad token never reaches the broadcaster.
	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http")+"/ws?token=nope", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	watcher := dial(t, server.URL, userToken)
	other := dial(t, server.URL, userToken)
	admin := dial(t, server.URL, adminToken)

	watcher.send(realtime.ControlSubscribe, 1)
	assert.Equal(t, []int64{1}, watcher.sync())
	other.send(realtime.ControlSubscribe, "2")
	assert.Equal(t, []int64{2}, other.sync())
	assert.Empty(t, admin.sync())
	assert.Equal(t, 3, hub.Connections())

	// --- Setpoint via the API ---
	resp = postJSON(t, server.URL+"/api/v1/setpoints", userToken, map[string]any{
		"reactor_id": 1, "data_type": "gas", "field_name": "ph", "min_value": 6.5, "max_value": 7.5, "severity": "critical",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// --- Ingest a breaching record ---
	resp = postJSON(t, server.URL+"/api/v1/dataup/push-data", "", map[string]any{
		"gas": map[string]any{"reactor_id": 1, "timestamp": time.Now().UTC().Format(time.RFC3339), "pH": 8.2, "DO": 35.5},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var alertID int64
	t.Run("Subscriber receives data then alert", func(t *testing.T) {
		env := watcher.next()
		require.Equal(t, realtime.EventData, env.Event)
		var update struct {
			ReactorID int64          `json:"reactorId"`
			DataType  string         `json:"dataType"`
			Label     string         `json:"label"`
			Record    map[string]any `json:"record"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &update))
		assert.Equal(t, int64(1), update.ReactorID)
		assert.Equal(t, "gas", update.DataType)
		assert.Equal(t, "Gas Data", update.Label)
		assert.Equal(t, 8.2, update.Record["ph"])
		assert.Equal(t, 35.5, update.Record["dissolved_oxygen"])

		env = watcher.next()
		require.Equal(t, realtime.EventAlert, env.Event)
		var alert map[string]any
		require.NoError(t, json.Unmarshal(env.Data, &alert))
		assert.Equal(t, "Fermenter A", alert["reactor_name"])
		assert.Equal(t, "max", alert["breached_bound"])
		assert.Equal(t, "critical", alert["severity"])
		alertID = int64(alert["alert_id"].(float64))
		assert.NotZero(t, alertID)
	})

	t.Run("Admin receives the alert once and no data", func(t *testing.T) {
		env := admin.next()
		require.Equal(t, realtime.EventAlert, env.Event)
		assert.Empty(t, admin.sync())
	})

	t.Run("Other reactor subscribers receive nothing", func(t *testing.T) {
		assert.Equal(t, []int64{2}, other.sync())
	})

	// --- Acknowledge ---
	t.Run("Alert acknowledgement is idempotent", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			resp := postJSON(t, server.URL+"/api/v1/alerts/acknowledge", userToken, map[string]any{"alertIds": []int64{alertID, 424242}})
			require.Equal(t, http.StatusOK, resp.StatusCode)
			var body map[string]any
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, float64(1), body["acknowledgedCount"])
		}
		stored, err := appStore.GetAlert(ctx, alertID)
		require.NoError(t, err)
		assert.True(t, stored.Acknowledged)
		require.NotNil(t, stored.AcknowledgedBy)
		assert.Equal(t, "bob", *stored.AcknowledgedBy)
	})

	// --- Unsubscribe ---
	t.Run("Unsubscribed connection stops receiving data", func(t *testing.T) {
		watcher.send(realtime.ControlUnsubscribe, 1)
		assert.Empty(t, watcher.sync())

		resp := postJSON(t, server.URL+"/api/v1/dataup/push-data", "", map[string]any{
			"type": "dilution", "reactor_id": 1, "timestamp": time.Now().UTC().Format(time.RFC3339), "flowrate": 1.5,
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Empty(t, watcher.sync())
	})

	// --- Retention ---
	t.Run("Retention purges records past the maximum age", func(t *testing.T) {
		resp := postJSON(t, server.URL+"/api/v1/data/1/gas", userToken, map[string]any{"timestamp": "2020-01-01T00:00:00Z", "pH": 7.0})
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		svc := retention.NewService(config.RetentionConfig{Enabled: true, MaxAgeDays: 30}, appStore, zerolog.Nop())
		assert.Equal(t, int64(1), svc.PurgeOnce(ctx))

		recs, err := appStore.QueryByReactor(ctx, model.DataTypeGas, 1, store.QueryFilter{})
		require.NoError(t, err)
		assert.Len(t, recs, 1)
	})

	// --- Teardown ---
	t.Run("Closing the broadcaster drops every connection", func(t *testing.T) {
		hub.Close()
		assert.Equal(t, 0, hub.Connections())
		require.NoError(t, admin.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, _, err := admin.conn.ReadMessage()
		assert.Error(t, err)
	})
}
