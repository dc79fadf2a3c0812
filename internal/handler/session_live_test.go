package handler_test

import (
	"errors"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/qr-attendance-api/internal/dto"
	"github.com/noah-isme/qr-attendance-api/internal/models"
)

func startFiberServer(t *testing.T, app *fiber.App) (string, func()) {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		if err := app.Listener(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.Logf("fiber listener stopped: %v", err)
		}
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)

	shutdown := func() {
		_ = app.Shutdown()
		_ = listener.Close()
		select {
		case <-done:
		case <-time.After(100 * time.Millisecond):
		}
	}

	return "http://" + listener.Addr().String(), shutdown
}

func TestSessionLiveFeedStreamsCheckInsUntilClose(t *testing.T) {
	env := setupApp(t)
	env.seedUser(t, "teacher", models.RoleAdmin)
	alice := env.seedUser(t, "alice", models.RoleStudent)
	admin := env.login(t, "teacher")
	student := env.login(t, "alice")

	session := createSession(t, env, admin, "Algebra")

	baseURL, shutdown := startFiberServer(t, env.app)
	defer shutdown()

	url := "ws" + strings.TrimPrefix(baseURL, "http") + "/api/sessions/" + itoa(session.ID) + "/live"
	dialer := websocket.Dialer{HandshakeTimeout: 3 * time.Second}
	conn, resp, err := dialer.Dial(url, http.Header{"Cookie": {admin.Name + "=" + admin.Value}})
	require.NoError(t, err)
	if resp != nil {
		_ = resp.Body.Close()
	}
	defer conn.Close()

	time.Sleep(100 * time.Millisecond)

	markResp := env.do(t, http.MethodPost, "/api/attendance", map[string]interface{}{"sessionId": session.ID}, student)
	require.Equal(t, http.StatusCreated, markResp.StatusCode)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var marked dto.AttendanceEvent
	require.NoError(t, conn.ReadJSON(&marked))
	require.Equal(t, dto.EventAttendanceMarked, marked.Type)
	require.Equal(t, session.ID, marked.SessionID)
	require.NotNil(t, marked.Attendance)
	require.Equal(t, alice.ID, marked.Attendance.UserID)

	expireResp := env.do(t, http.MethodPut, "/api/sessions/"+itoa(session.ID)+"/expire", nil, admin)
	require.Equal(t, http.StatusOK, expireResp.StatusCode)

	var closed dto.AttendanceEvent
	require.NoError(t, conn.ReadJSON(&closed))
	require.Equal(t, dto.EventSessionClosed, closed.Type)
	require.NotNil(t, closed.Session)
	require.False(t, closed.Session.IsActive)

	_, _, err = conn.ReadMessage()
	require.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure))
}

func TestSessionLiveFeedRejectsStudents(t *testing.T) {
	env := setupApp(t)
	env.seedUser(t, "teacher", models.RoleAdmin)
	env.seedUser(t, "alice", models.RoleStudent)
	admin := env.login(t, "teacher")
	student := env.login(t, "alice")

	session := createSession(t, env, admin, "Algebra")

	baseURL, shutdown := startFiberServer(t, env.app)
	defer shutdown()

	url := "ws" + strings.TrimPrefix(baseURL, "http") + "/api/sessions/" + itoa(session.ID) + "/live"
	dialer := websocket.Dialer{HandshakeTimeout: 3 * time.Second}
	_, resp, err := dialer.Dial(url, http.Header{"Cookie": {student.Name + "=" + student.Value}})
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}
