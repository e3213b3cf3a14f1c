package handlers

import (
	"context"
	"net/http"

	"smartlift_monitor/internal/models"
	"smartlift_monitor/internal/service"
	"smartlift_monitor/internal/store"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockAuth struct {
	disabled bool
	parseID  int
	parseErr error

	lastParseToken string
}

func (m *mockAuth) Enabled() bool { return !m.disabled }
func (m *mockAuth) ParseToken(token string) (int, error) {
	m.lastParseToken = token
	return m.parseID, m.parseErr
}

type mockMonitoring struct {
	view     service.LiftsView
	lift     models.Lift
	liftErr  error
	calls    []service.CallRow
	callsErr error
	status   service.StatusView

	lastFilter service.LiftFilter
	lastID     string
}

func (m *mockMonitoring) ListLifts(f service.LiftFilter) service.LiftsView {
	m.lastFilter = f
	return m.view
}
func (m *mockMonitoring) GetLift(id string) (models.Lift, error) {
	m.lastID = id
	return m.lift, m.liftErr
}
func (m *mockMonitoring) Calls(id string) ([]service.CallRow, error) {
	m.lastID = id
	return m.calls, m.callsErr
}
func (m *mockMonitoring) Status() service.StatusView { return m.status }
func (m *mockMonitoring) Subscribe(buffer int) (<-chan store.Update, func()) {
	ch := make(chan store.Update)
	return ch, func() {}
}

type mockEventLog struct {
	resp       []models.LiftEvent
	err        error
	lastFilter service.LogFilter
}

func (m *mockEventLog) List(ctx context.Context, f service.LogFilter) ([]models.LiftEvent, error) {
	m.lastFilter = f
	return m.resp, m.err
}

type mockCommands struct {
	res service.CommandResult
	err error

	calls   int
	lastID  string
	lastCmd service.Command
}

func (m *mockCommands) Send(ctx context.Context, liftID string, cmd service.Command) (service.CommandResult, error) {
	m.calls++
	m.lastID = liftID
	m.lastCmd = cmd
	return m.res, m.err
}

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(s, nil, nil)
	return h.InitRoutes()
}

func authHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}
