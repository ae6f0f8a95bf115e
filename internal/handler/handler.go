package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"sessionattendance/internal/attendance"
	"sessionattendance/internal/calendar"
	"sessionattendance/internal/report"
)

// SummaryCache stores day summaries between reads. Implementations
// swallow their own failures.
//
// Get returns the date's generation alongside the lookup; Set must drop
// the write when an Invalidate has bumped that generation since.
type SummaryCache interface {
	Get(ctx context.Context, batchID, date string) (attendance.DaySummary, int64, bool)
	Set(ctx context.Context, batchID string, sum attendance.DaySummary, gen int64) bool
	Invalidate(ctx context.Context, batchID, date string)
}

// Publisher receives marked events.
type Publisher interface {
	PublishMarked(ctx context.Context, batchID, date, session string) error
}

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) bool

// Handler serves the attendance HTTP API.
type Handler struct {
	svc      *attendance.Service
	agg      *attendance.Aggregator
	exporter *report.Exporter
	cache    SummaryCache
	events   Publisher
	health   map[string]HealthCheck
	now      func() time.Time
}

// Option configures optional Handler collaborators.
type Option func(*Handler)

// WithCache serves day summaries through c.
func WithCache(c SummaryCache) Option { return func(h *Handler) { h.cache = c } }

// WithPublisher announces every successful mark to p.
func WithPublisher(p Publisher) Option { return func(h *Handler) { h.events = p } }

// WithHealthCheck adds a named dependency to /healthz.
func WithHealthCheck(name string, check HealthCheck) Option {
	return func(h *Handler) { h.health[name] = check }
}

// WithClock overrides the clock used for the default summary date.
func WithClock(now func() time.Time) Option { return func(h *Handler) { h.now = now } }

func New(svc *attendance.Service, agg *attendance.Aggregator, exporter *report.Exporter, opts ...Option) *Handler {
	h := &Handler{
		svc:      svc,
		agg:      agg,
		exporter: exporter,
		health:   make(map[string]HealthCheck),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the API. staff runs on every /v1 route; admin
// additionally guards exports.
func (h *Handler) Register(r gin.IRouter, admin gin.HandlerFunc, staff ...gin.HandlerFunc) {
	r.GET("/healthz", h.Healthz)

	v1 := r.Group("/v1", staff...)
	v1.POST("/attendance/mark", h.Mark)
	v1.GET("/attendance/:batch/:date/:session", h.GetRecord)
	v1.GET("/summary/day", h.DaySummary)
	v1.GET("/summary/dates", h.DatesSummary)
	v1.GET("/summary/range", h.RangeSummary)
	v1.GET("/students/:regNo/stats", h.StudentStats)
	v1.GET("/batches/:batch/export", admin, h.Export)
}

// ---------- Health ----------

func (h *Handler) Healthz(c *gin.Context) {
	status := http.StatusOK
	body := gin.H{"status": "ok"}
	for name, check := range h.health {
		ok := check(c.Request.Context())
		body[name] = ok
		if !ok {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
		}
	}
	c.JSON(status, body)
}

// ---------- Errors ----------

func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, calendar.ErrInvalidDateFormat),
		errors.Is(err, attendance.ErrInvalidSession),
		errors.Is(err, attendance.ErrInvalidRange),
		errors.Is(err, attendance.ErrBatchRequired):
		status = http.StatusBadRequest
	case errors.Is(err, attendance.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, attendance.ErrStoreUnavailable):
		status = http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		status = http.StatusGatewayTimeout
	}
	if status >= http.StatusInternalServerError {
		log.Printf("%s %s failed: %v", c.Request.Method, c.FullPath(), err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// queryList accepts both ?k=a&k=b and ?k=a,b.
func queryList(c *gin.Context, key string) []string {
	var out []string
	for _, v := range c.QueryArray(key) {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
