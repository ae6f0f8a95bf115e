package handler

import (
	"context"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"sessionattendance/internal/attendance"
	"sessionattendance/internal/auth"
	"sessionattendance/internal/calendar"
	"sessionattendance/internal/metrics"
)

type markRequest struct {
	BatchID     string                  `json:"batch_id" binding:"required"`
	Date        string                  `json:"date" binding:"required"`
	Session     string                  `json:"session" binding:"required"`
	Submissions []attendance.Submission `json:"submissions"`
}

type rejection struct {
	RegistrationNumber string `json:"registration_number"`
	Error              string `json:"error"`
}

// Mark records a session's statuses for a batch. The bearer subject is
// stored as markedBy.
func (h *Handler) Mark(c *gin.Context) {
	var req markRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()
	res, err := h.svc.Mark(ctx, attendance.MarkRequest{
		BatchID:     req.BatchID,
		Date:        req.Date,
		Session:     req.Session,
		Submissions: req.Submissions,
		MarkedBy:    auth.Subject(c),
	})
	if err != nil {
		writeError(c, err)
		return
	}

	rec := res.Record
	date := calendar.CivilDate(rec.CalendarDate)
	metrics.RejectedSubmissions.Add(float64(len(res.Rejected)))
	// No record means nothing was written.
	if rec.ID != "" {
		metrics.Marks.WithLabelValues(string(rec.Session), metrics.Outcome(res.Created)).Inc()
		h.afterWrite(ctx, rec.BatchID, date, string(rec.Session))
	}
	rejected := make([]rejection, 0, len(res.Rejected))
	for _, r := range res.Rejected {
		rejected = append(rejected, rejection{RegistrationNumber: r.RegistrationNumber, Error: r.Err.Error()})
	}
	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{
		"record_id":   rec.ID,
		"created":     res.Created,
		"entry_count": res.EntryCount,
		"accepted":    res.Accepted,
		"rejected":    rejected,
		"marked_at":   rec.MarkedAt,
	})
}

func (h *Handler) afterWrite(ctx context.Context, batchID, date, session string) {
	if h.cache != nil {
		h.cache.Invalidate(ctx, batchID, date)
	}
	if h.events != nil {
		if err := h.events.PublishMarked(ctx, batchID, date, session); err != nil {
			log.Printf("publish marked %s %s %s failed: %v", batchID, date, session, err)
		}
	}
}

// GetRecord returns the stored record for a key.
func (h *Handler) GetRecord(c *gin.Context) {
	rec, err := h.svc.Get(c.Request.Context(), c.Param("batch"), c.Param("date"), c.Param("session"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"record": rec, "date": rec.Date()})
}
