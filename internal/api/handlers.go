package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"github.com/birbparty/cooldb/internal/store"
	"github.com/birbparty/cooldb/internal/telemetry"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/sirupsen/logrus"
)

// EventPublisher receives a notification for every stored write
type EventPublisher interface {
	Publish(ctx context.Context, key string, value json.RawMessage)
}

// Handler holds all dependencies for API handlers
type Handler struct {
	store  store.Store
	events EventPublisher
}

// NewHandler creates a new handler instance. events may be nil.
func NewHandler(s store.Store, events EventPublisher) *Handler {
	return &Handler{store: s, events: events}
}

// Set handles POST /set
func (h *Handler) Set(c *fiber.Ctx) error {
	var req SetRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil || req.Key == "" || len(req.Value) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(NewErrorResponse(MsgInvalidRequest))
	}

	ctx, done := telemetry.TimeOperation(c.UserContext(), "set")
	if err := h.store.Set(ctx, req.Key, req.Value); err != nil {
		done("error")
		return storageError(c, "set", err)
	}
	done("ok")

	if h.events != nil {
		h.events.Publish(ctx, req.Key, req.Value)
	}

	return c.JSON(&SetResponse{
		Message: MsgSetSuccess,
		Key:     req.Key,
		Value:   req.Value,
	})
}

// Get handles GET /get/:key
func (h *Handler) Get(c *fiber.Ctx) error {
	key, err := url.PathUnescape(c.Params("key"))
	if err != nil || key == "" {
		return c.Status(fiber.StatusBadRequest).JSON(NewErrorResponse(MsgInvalidRequest))
	}
	key = utils.CopyString(key)

	ctx, done := telemetry.TimeOperation(c.UserContext(), "get")
	value, err := h.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, store.ErrKeyNotFound) {
			done("not_found")
			return c.Status(fiber.StatusNotFound).JSON(NewErrorResponse(MsgKeyNotFound))
		}
		done("error")
		return storageError(c, "get", err)
	}
	done("ok")

	return c.JSON(&GetResponse{Key: key, Value: value})
}

// List handles GET /list
func (h *Handler) List(c *fiber.Ctx) error {
	ctx, done := telemetry.TimeOperation(c.UserContext(), "list")
	keys, err := h.store.List(ctx)
	if err != nil {
		done("error")
		return storageError(c, "list", err)
	}
	done("ok")

	if keys == nil {
		keys = []string{}
	}
	return c.JSON(&ListResponse{Keys: keys})
}

// Status handles GET /status
func (h *Handler) Status(c *fiber.Ctx) error {
	ctx, done := telemetry.TimeOperation(c.UserContext(), "count")
	count, err := h.store.Count(ctx)
	if err != nil {
		done("error")
		return storageError(c, "count", err)
	}
	done("ok")

	telemetry.UpdateStoreEntries(count)
	return c.JSON(&StatusResponse{Status: fmt.Sprintf("OK: %d keys", count)})
}

// Health handles GET /health
func (h *Handler) Health(c *fiber.Ctx) error {
	if err := h.store.Ping(c.UserContext()); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "unhealthy",
			"store":  err.Error(),
		})
	}
	return c.JSON(fiber.Map{"status": "healthy"})
}

func storageError(c *fiber.Ctx, op string, err error) error {
	telemetry.WithContext(c.UserContext()).WithError(err).WithFields(logrus.Fields{
		"operation": op,
	}).Error("Store operation failed")
	return c.Status(fiber.StatusInternalServerError).JSON(NewErrorResponse(err.Error()))
}
