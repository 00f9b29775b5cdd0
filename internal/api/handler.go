package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"

	"rack-leasing-backend/internal/lifecycle"
	"rack-leasing-backend/internal/mw"
	"rack-leasing-backend/internal/notification"
	"rack-leasing-backend/internal/store"
)

// EventDispatcher queues a status-change notification. notification.WorkerPool implements it.
type EventDispatcher interface {
	Dispatch(ctx context.Context, ev notification.Event)
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store     store.Store
	lifecycle *lifecycle.Service
	webpush   *webpush.Options
	events    EventDispatcher
}

// NewHandler creates a new API handler. events may be nil.
func NewHandler(s store.Store, lc *lifecycle.Service, webpushOptions *webpush.Options, events EventDispatcher) *Handler {
	return &Handler{
		store:     s,
		lifecycle: lc,
		webpush:   webpushOptions,
		events:    events,
	}
}

// idParam reads a positive integer path parameter, answering 400 when it is not one.
func idParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

// respondError maps lifecycle and store errors onto HTTP statuses.
func respondError(c *gin.Context, err error) {
	if errors.Is(err, store.ErrNotFound) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	switch lifecycle.KindOf(err) {
	case lifecycle.KindCapacityExceeded, lifecycle.KindInvalidStateTransition:
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": err.Error()})
	case lifecycle.KindInvalidArgument:
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		log.Printf("[%s] %s %s: %v", mw.GetRequestID(c), c.Request.Method, c.FullPath(), err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
