package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/suPer8Hu/medirec/internal/app"
	"github.com/suPer8Hu/medirec/internal/backend"
	"github.com/suPer8Hu/medirec/internal/common"
	"github.com/suPer8Hu/medirec/internal/logger"
	"github.com/suPer8Hu/medirec/internal/predict"
	"github.com/suPer8Hu/medirec/internal/session"
)

const defaultHeartbeat = 15 * time.Second

// SessionWatcher is the read side of the session mirror.
type SessionWatcher interface {
	Snapshot() session.Snapshot
	Watch() (<-chan session.Snapshot, func())
}

type Handler struct {
	App       *app.Service
	Session   SessionWatcher
	Log       *logger.Logger
	Heartbeat time.Duration
}

func NewHandler(svc *app.Service, sess SessionWatcher, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{App: svc, Session: sess, Log: log.With("component", "HTTP"), Heartbeat: defaultHeartbeat}
}

func (h *Handler) Ping(c *gin.Context) {
	common.OK(c, "pong")
}

// fail maps use-case errors onto the envelope codes.
func (h *Handler) fail(c *gin.Context, op string, err error) {
	var pe *backend.ProviderError
	switch {
	case errors.Is(err, app.ErrNoSymptoms), errors.Is(err, app.ErrUnknownSymptom):
		common.Fail(c, http.StatusBadRequest, 10010, err.Error())
	case errors.Is(err, app.ErrMissingCredential):
		common.Fail(c, http.StatusBadRequest, 10002, err.Error())
	case errors.Is(err, app.ErrInvalidUsername):
		common.Fail(c, http.StatusBadRequest, 10012, err.Error())
	case errors.Is(err, app.ErrEmptyUpload):
		common.Fail(c, http.StatusBadRequest, 10013, err.Error())
	case errors.Is(err, app.ErrUnauthenticated):
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
	case errors.Is(err, backend.ErrNotFound):
		common.Fail(c, http.StatusNotFound, 40401, "profile not found")
	case errors.Is(err, predict.ErrPredictionFailed):
		h.Log.Warn(op+" failed", "err", err, "request_id", c.GetString("request_id"))
		common.Fail(c, http.StatusBadGateway, 50201, "prediction failed")
	case errors.As(err, &pe) && pe.Status >= 400 && pe.Status < 500:
		common.Fail(c, http.StatusBadRequest, 40001, pe.Message)
	case errors.As(err, &pe):
		h.Log.Warn(op+" failed", "err", err, "request_id", c.GetString("request_id"))
		common.Fail(c, http.StatusBadGateway, 50202, "backend unavailable")
	default:
		h.Log.Error(op+" failed", "err", err, "request_id", c.GetString("request_id"))
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
	}
}
