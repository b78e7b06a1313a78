package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/anb2473/Archeology-Sentry/sentry-collector/internal/domain"
	"github.com/anb2473/Archeology-Sentry/sentry-collector/internal/repository"
	"github.com/anb2473/Archeology-Sentry/sentry-collector/internal/security"
	"github.com/anb2473/Archeology-Sentry/sentry-collector/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

type testAPI struct {
	srv        *httptest.Server
	principals *repository.MemoryPrincipalsRepo
	points     *repository.MemoryDataPointsRepo
}

func newTestAPI(t *testing.T, allowedDomains ...string) *testAPI {
	t.Helper()
	logger := zap.NewNop()
	tokens, err := security.NewTokenIssuer("test-secret", 24*time.Hour)
	require.NoError(t, err)

	principals := repository.NewMemoryPrincipalsRepo()
	points := repository.NewMemoryDataPointsRepo(principals)
	authSvc := service.NewAuthService(principals, tokens, allowedDomains, logger)
	sensorSvc := service.NewSensorDataService(points, principals, nil, logger)

	router := NewRouter(logger)
	router.RegisterHealthRoutes()
	router.RegisterAuthRoutes(NewAuthHandler(authSvc, false, logger))
	router.RegisterSensorDataRoutes(NewSensorDataHandler(sensorSvc, time.Hour, logger), authSvc)

	srv := httptest.NewServer(LogRequests(logger, router))
	t.Cleanup(srv.Close)
	return &testAPI{srv: srv, principals: principals, points: points}
}

func (a *testAPI) do(t *testing.T, method, path string, body string, session *http.Cookie) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, a.srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if session != nil {
		req.AddCookie(session)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (a *testAPI) auth(t *testing.T, path, email, password string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, a.srv.URL+path, nil)
	require.NoError(t, err)
	req.SetBasicAuth(email, password)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func sessionCookie(t *testing.T, resp *http.Response) *http.Cookie {
	t.Helper()
	for _, c := range resp.Cookies() {
		if c.Name == SessionCookieName {
			return c
		}
	}
	t.Fatalf("response has no %s cookie", SessionCookieName)
	return nil
}

func (a *testAPI) signup(t *testing.T, email string) *http.Cookie {
	t.Helper()
	resp := a.auth(t, "/auth/signup", email, "secret1")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return sessionCookie(t, resp)
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func TestPing(t *testing.T) {
	api := newTestAPI(t)
	resp := api.do(t, http.MethodGet, "/ping", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	decodeBody(t, resp, &body)
	assert.Equal(t, "pong", body["msg"])
}

func TestSignupLoginLogout(t *testing.T) {
	api := newTestAPI(t, "dig.example")

	resp := api.auth(t, "/auth/signup", "ops@dig.example", "secret1")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	c := sessionCookie(t, resp)
	assert.True(t, c.HttpOnly)
	assert.Equal(t, http.SameSiteNoneMode, c.SameSite)
	assert.NotEmpty(t, c.Value)

	resp = api.auth(t, "/auth/signup", "ops@dig.example", "secret1")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = api.auth(t, "/auth/signup", "bad-email", "secret1")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var body map[string]string
	decodeBody(t, resp, &body)
	assert.Equal(t, "Invalid email format", body["err"])

	resp = api.auth(t, "/auth/login", "ops@dig.example", "secret1")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, sessionCookie(t, resp).Value)

	resp = api.auth(t, "/auth/login", "ops@dig.example", "wrong-secret")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = api.auth(t, "/auth/login", "ghost@dig.example", "secret1")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = api.auth(t, "/auth/login", "ops@other.example", "secret1")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = api.do(t, http.MethodPost, "/auth/login", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	decodeBody(t, resp, &body)
	assert.Equal(t, "Missing Basic Auth", body["err"])

	resp = api.do(t, http.MethodPost, "/auth/logout", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	cleared := sessionCookie(t, resp)
	assert.Empty(t, cleared.Value)
	assert.Less(t, cleared.MaxAge, 0)

	resp = api.do(t, http.MethodGet, "/auth/login", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestSensorData_IngestAndQuery(t *testing.T) {
	api := newTestAPI(t)
	session := api.signup(t, "ops@dig.example")

	resp := api.do(t, http.MethodPost, "/user/sensor-data", `{"type":"temperature","value":21.5}`, session)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var msg map[string]string
	decodeBody(t, resp, &msg)
	assert.Equal(t, "Sensor data saved successfully", msg["msg"])

	resp = api.do(t, http.MethodGet, "/user/sensor-data", "", session)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var points []dataPointView
	decodeBody(t, resp, &points)
	require.Len(t, points, 1)
	assert.Equal(t, "temperature", points[0].Type)
	assert.Equal(t, 21.5, points[0].Value)
	assert.False(t, points[0].CreatedAt.IsZero())
	require.NotNil(t, points[0].Owner)
	assert.Equal(t, "ops@dig.example", points[0].Owner.Email)
	require.NotNil(t, points[0].OwnerID)
}

func TestSensorData_RejectsMalformedBodies(t *testing.T) {
	api := newTestAPI(t)
	session := api.signup(t, "ops@dig.example")

	for _, body := range []string{
		`{"type":"temperature","value":"x"}`,
		`{"type":"temperature"}`,
		`{"value":21.5}`,
		`{"type":"","value":21.5}`,
		`{"type":"pressure","value":1013}`,
		`{"type":7,"value":21.5}`,
		`not json`,
	} {
		resp := api.do(t, http.MethodPost, "/user/sensor-data", body, session)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
		var e map[string]string
		decodeBody(t, resp, &e)
		assert.Equal(t, "Invalid sensor data format", e["err"], body)
	}

	all, err := api.points.List(context.Background(), repository.DataPointFilter{})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestSensorData_RequiresSession(t *testing.T) {
	api := newTestAPI(t)

	resp := api.do(t, http.MethodPost, "/user/sensor-data", `{"type":"temperature","value":21.5}`, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = api.do(t, http.MethodGet, "/user/sensor-data", "", &http.Cookie{Name: SessionCookieName, Value: "forged"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	var e map[string]string
	decodeBody(t, resp, &e)
	assert.NotEmpty(t, e["err"])
}

func TestSensorData_UnknownOwner(t *testing.T) {
	api := newTestAPI(t)
	session := api.signup(t, "ops@dig.example")

	p, err := api.principals.GetByEmail(context.Background(), "ops@dig.example")
	require.NoError(t, err)
	require.NoError(t, api.principals.Delete(context.Background(), p.ID))

	resp := api.do(t, http.MethodPost, "/user/sensor-data", `{"type":"humidity","value":40}`, session)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var e map[string]string
	decodeBody(t, resp, &e)
	assert.Equal(t, "Unknown owner", e["err"])
}

func TestSensorData_TimeframeWindow(t *testing.T) {
	api := newTestAPI(t)
	session := api.signup(t, "ops@dig.example")
	p, err := api.principals.GetByEmail(context.Background(), "ops@dig.example")
	require.NoError(t, err)

	now := time.Now()
	for _, age := range []time.Duration{120 * time.Minute, 30 * time.Minute, 5 * time.Minute} {
		ts := now.Add(-age)
		api.points.SetClock(func() time.Time { return ts })
		require.NoError(t, api.points.Insert(context.Background(), &domain.DataPoint{
			Type: domain.SensorHumidity, Value: age.Minutes(), OwnerID: p.ID,
		}))
	}

	resp := api.do(t, http.MethodGet, "/user/sensor-data?timeframe=60", "", session)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var points []dataPointView
	decodeBody(t, resp, &points)
	require.Len(t, points, 2)
	assert.Equal(t, 5.0, points[0].Value)
	assert.Equal(t, 30.0, points[1].Value)

	resp = api.do(t, http.MethodGet, "/user/sensor-data", "", session)
	decodeBody(t, resp, &points)
	assert.Len(t, points, 2)

	resp = api.do(t, http.MethodGet, "/user/sensor-data?timeframe=all", "", session)
	decodeBody(t, resp, &points)
	assert.Len(t, points, 3)

	for _, bad := range []string{"0", "-1", "soon", "", "200000000"} {
		resp = api.do(t, http.MethodGet, "/user/sensor-data?timeframe="+bad, "", session)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, bad)
	}
}

func TestSensorData_DuplicatesCreateDistinctRows(t *testing.T) {
	api := newTestAPI(t)
	session := api.signup(t, "ops@dig.example")

	for i := 0; i < 2; i++ {
		resp := api.do(t, http.MethodPost, "/user/sensor-data", `{"type":"humidity","value":40}`, session)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp := api.do(t, http.MethodGet, "/user/sensor-data?timeframe=all", "", session)
	var points []dataPointView
	decodeBody(t, resp, &points)
	require.Len(t, points, 2)
	assert.NotEqual(t, points[0].ID, points[1].ID)
	assert.True(t, points[0].CreatedAt.After(points[1].CreatedAt))
}

func TestSensorData_Latest(t *testing.T) {
	api := newTestAPI(t)
	session := api.signup(t, "ops@dig.example")

	for _, body := range []string{
		`{"type":"temperature","value":19}`,
		`{"type":"temperature","value":20}`,
		`{"type":"humidity","value":41}`,
	} {
		resp := api.do(t, http.MethodPost, "/user/sensor-data", body, session)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp := api.do(t, http.MethodGet, "/user/sensor-data/latest", "", session)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var latest map[string]dataPointView
	decodeBody(t, resp, &latest)
	assert.Equal(t, 20.0, latest["temperature"].Value)
	assert.Equal(t, 41.0, latest["humidity"].Value)
}

func TestSensorData_Export(t *testing.T) {
	api := newTestAPI(t)
	session := api.signup(t, "ops@dig.example")

	resp := api.do(t, http.MethodPost, "/user/sensor-data", `{"type":"temperature","value":21.5}`, session)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = api.do(t, http.MethodGet, "/user/sensor-data/export?timeframe=all", "", session)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), ".xlsx")

	var buf bytes.Buffer
	_, err := buf.ReadFrom(resp.Body)
	require.NoError(t, err)

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(SensorDataSheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, SensorDataExportHeader, rows[0])
	assert.Equal(t, "temperature", rows[1][1])
	assert.Equal(t, "21.5", rows[1][2])
	assert.Equal(t, "ops@dig.example", rows[1][3])

	resp = api.do(t, http.MethodGet, "/user/sensor-data/export?timeframe=nope", "", session)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
