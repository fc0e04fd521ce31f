package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"email-list-worker/internal/logging"
	"email-list-worker/internal/models"
	"email-list-worker/internal/service"
)

const (
	MsgRunning           = "Email List Worker running"
	MsgSubscribed        = "Subscribed!"
	MsgInvalidJSON       = "Invalid JSON"
	MsgInvalidEmail      = "Invalid email"
	MsgAlreadySubscribed = "Already subscribed"
	MsgErrorSaving       = "Error saving"
	MsgErrorLoading      = "Error loading subscribers"
)

type SubscriberHandler struct {
	service *service.SubscriberService
	logger  *logging.ContextLogger
	tracer  trace.Tracer
}

func NewSubscriberHandler(service *service.SubscriberService, logger *logging.ContextLogger) *SubscriberHandler {
	return &SubscriberHandler{
		service: service,
		logger:  logger,
		tracer:  otel.Tracer("subscriber-handler"),
	}
}

// Subscribe handles POST /subscribe.
func (h *SubscriberHandler) Subscribe(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "subscriber.handler.subscribe")
	defer span.End()

	req, err := decodeSubscribeRequest(c)
	if err != nil {
		span.RecordError(err)
		h.logger.DebugWithTracing(ctx, "Rejected request body", logrus.Fields{
			"error":    err.Error(),
			"endpoint": "POST /subscribe",
		})
		c.String(http.StatusBadRequest, MsgInvalidJSON)
		return
	}

	if err := binding.Validator.ValidateStruct(req); err != nil {
		span.RecordError(err)
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			span.SetAttributes(attribute.String("validation.rule", verrs[0].Tag()))
		}
		h.service.RecordInvalidEmail(ctx, req.Email)
		c.String(http.StatusBadRequest, MsgInvalidEmail)
		return
	}

	subscriber, err := h.service.Subscribe(ctx, req.Email)
	switch {
	case errors.Is(err, models.ErrInvalidEmail):
		c.String(http.StatusBadRequest, MsgInvalidEmail)
		return
	case errors.Is(err, models.ErrAlreadySubscribed):
		span.SetAttributes(attribute.Bool("duplicate", true))
		c.String(http.StatusConflict, MsgAlreadySubscribed)
		return
	case err != nil:
		span.RecordError(err)
		c.String(http.StatusInternalServerError, MsgErrorSaving)
		return
	}

	span.SetAttributes(
		attribute.Int64("subscriber.id", subscriber.ID),
		attribute.Bool("success", true),
	)
	c.String(http.StatusOK, MsgSubscribed)
}

// ListSubscribers handles /subscribers for any method. There is no access
// control on this listing yet.
func (h *SubscriberHandler) ListSubscribers(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "subscriber.handler.list")
	defer span.End()

	subscribers, err := h.service.ListSubscribers(ctx)
	if err != nil {
		span.RecordError(err)
		c.String(http.StatusInternalServerError, MsgErrorLoading)
		return
	}

	h.logger.InfoWithTracing(ctx, "Listed subscribers", logrus.Fields{
		"count":    len(subscribers),
		"endpoint": "/subscribers",
	})

	span.SetAttributes(
		attribute.Int("subscriber.count", len(subscribers)),
		attribute.Bool("success", true),
	)
	c.JSON(http.StatusOK, subscribers)
}

// Default answers every request no other route claims. It is a status page,
// not a 404.
func (h *SubscriberHandler) Default(c *gin.Context) {
	c.String(http.StatusOK, MsgRunning)
}

var jsonNull = []byte("null")

// decodeSubscribeRequest accepts exactly one JSON object. Trailing data after
// the value, a top-level null and any other shape are all rejected.
func decodeSubscribeRequest(c *gin.Context) (*models.SubscribeRequest, error) {
	body, err := c.GetRawData()
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	if err := dec.Decode(&json.RawMessage{}); !errors.Is(err, io.EOF) {
		return nil, errors.New("unexpected data after JSON value")
	}
	if bytes.Equal(raw, jsonNull) {
		return nil, errors.New("request body is null")
	}

	var req models.SubscribeRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, err
	}
	return &req, nil
}
