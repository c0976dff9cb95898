package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/suPer8Hu/medirec/internal/backend"
	"github.com/suPer8Hu/medirec/internal/logger"
	"github.com/suPer8Hu/medirec/internal/session"
)

type fixedSession struct{ uid string }

func (f fixedSession) Snapshot() session.Snapshot {
	if f.uid == "" {
		return session.Snapshot{State: session.StateUnauthenticated}
	}
	return session.Snapshot{State: session.StateAuthenticated, Session: &backend.Session{UserID: f.uid}}
}

func newLoggedRouter(src SessionSource) (*gin.Engine, *observer.ObservedLogs) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zapcore.InfoLevel)
	log := &logger.Logger{SugaredLogger: zap.New(core).Sugar()}

	r := gin.New()
	r.Use(RequestID(), AccessLog(log))
	r.GET("/open", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/private", RequireSession(src), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return r, logs
}

func TestAccessLog_IncludesSignedInUser(t *testing.T) {
	r, logs := newLoggedRouter(fixedSession{uid: "u1"})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/private", nil))
	require.Equal(t, http.StatusNoContent, w.Code)

	entries := logs.FilterMessage("http request").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "u1", fields["user_id"])
	assert.Equal(t, w.Header().Get(RequestIDHeader), fields["request_id"])
}

func TestAccessLog_AnonymousRoutesHaveNoUser(t *testing.T) {
	r, logs := newLoggedRouter(fixedSession{uid: "u1"})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/open", nil))

	entries := logs.FilterMessage("http request").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "", entries[0].ContextMap()["user_id"])
}

func TestRequireSession_RejectsSignedOut(t *testing.T) {
	r, logs := newLoggedRouter(fixedSession{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/private", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"code":40101,"message":"unauthorized","data":null}`, w.Body.String())

	entries := logs.FilterMessage("http request").All()
	require.Len(t, entries, 1)
	assert.Equal(t, int64(http.StatusUnauthorized), entries[0].ContextMap()["status"])
}
