package notification

import (
	"context"
	"io"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/headstart-tech/admissions-api/internal/handler"
	"github.com/headstart-tech/admissions-api/internal/middleware"
	"github.com/headstart-tech/admissions-api/internal/model"
	apperrors "github.com/headstart-tech/admissions-api/pkg/errors"
	"github.com/headstart-tech/admissions-api/pkg/logger"
)

// Service is implemented by *notification.Service.
type Service interface {
	WriteAndPublish(ctx context.Context, in model.EventInput)
	Broadcast(ctx context.Context, in model.EventInput, recipients []string) int
	Recent(ctx context.Context, recipient string, limit int64) ([]model.NotificationCacheEntry, error)
	Subscribe(ctx context.Context, recipient string) (<-chan []byte, error)
}

type EventRequest struct {
	Kind          string             `json:"kind" binding:"required"`
	StudentID     string             `json:"student_id" binding:"omitempty,objectid"`
	ApplicationID string             `json:"application_id" binding:"omitempty,objectid"`
	Recipient     string             `json:"recipient"`
	Payload       model.EventPayload `json:"payload"`
}

type BroadcastRequest struct {
	EventRequest
	Recipients []string `json:"recipients" binding:"required,min=1,dive,required"`
}

type Handler struct {
	service      Service
	authz        handler.Authorizer
	logger       *logger.Logger
	streamWindow int64
	heartbeat    time.Duration
}

func NewHandler(service Service, authz handler.Authorizer, streamWindow int64, log *logger.Logger) *Handler {
	if streamWindow <= 0 {
		streamWindow = 50
	}
	return &Handler{
		service:      service,
		authz:        authz,
		logger:       log,
		streamWindow: streamWindow,
		heartbeat:    25 * time.Second,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	notifications := r.Group("/notifications")
	{
		notifications.GET("", h.ListNotifications)
		notifications.POST("/events", h.CreateEvent)
		notifications.POST("/events/broadcast",
			h.authz.RequirePermission(model.FeatureNotifications, model.OpWrite),
			h.BroadcastEvent,
		)
	}
}

// RegisterStreamRoutes is kept apart so the long-lived stream escapes the request timeout.
func (h *Handler) RegisterStreamRoutes(r *gin.RouterGroup) {
	r.GET("/notifications/stream", h.Stream)
}

func (req EventRequest) input() (model.EventInput, error) {
	kind := model.ParseEventKind(req.Kind)
	if kind == model.KindUnknown {
		return model.EventInput{}, apperrors.BadRequest("unknown event kind "+strconv.Quote(req.Kind), nil)
	}
	return model.EventInput{
		Kind:              kind,
		StudentID:         req.StudentID,
		ApplicationID:     req.ApplicationID,
		Payload:           req.Payload,
		RecipientOverride: req.Recipient,
	}, nil
}

// CreateEvent records a business event. The response does not say whether a
// notification resulted; events nobody can receive are dropped.
func (h *Handler) CreateEvent(c *gin.Context) {
	var req EventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.Fail(c, apperrors.BadRequest("invalid request body", err))
		return
	}
	in, err := req.input()
	if err != nil {
		handler.Fail(c, err)
		return
	}

	h.service.WriteAndPublish(c.Request.Context(), in)
	handler.Accepted(c, "event accepted")
}

func (h *Handler) BroadcastEvent(c *gin.Context) {
	var req BroadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.Fail(c, apperrors.BadRequest("invalid request body", err))
		return
	}
	in, err := req.input()
	if err != nil {
		handler.Fail(c, err)
		return
	}

	n := h.service.Broadcast(c.Request.Context(), in, req.Recipients)
	handler.OK(c, gin.H{"written": n})
}

// ListNotifications returns the caller's newest notifications, oldest first.
func (h *Handler) ListNotifications(c *gin.Context) {
	limit := h.streamWindow
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 1 || n > 500 {
			handler.Fail(c, apperrors.BadRequest("limit must be between 1 and 500", err))
			return
		}
		limit = n
	}

	entries, err := h.service.Recent(c.Request.Context(), c.GetString(middleware.ContextUserID), limit)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, entries)
}

// Stream is a server-sent event feed of the caller's list. The current list is sent
// on connect and again each time a publish signal arrives for the caller.
func (h *Handler) Stream(c *gin.Context) {
	ctx := c.Request.Context()
	recipient := c.GetString(middleware.ContextUserID)

	signals, err := h.service.Subscribe(ctx, recipient)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	send := func() bool {
		entries, err := h.service.Recent(ctx, recipient, h.streamWindow)
		if err != nil {
			h.logger.Warn(err, "notification stream read failed", "send_to", recipient)
			return false
		}
		c.SSEvent("notifications", entries)
		return true
	}

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	if !send() {
		return
	}
	c.Writer.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	c.Stream(func(io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case _, ok := <-signals:
			if !ok {
				return false
			}
			return send()
		case <-ticker.C:
			c.SSEvent("ping", "")
			return true
		}
	})
}
