package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"sessionattendance/internal/attendance"
	"sessionattendance/internal/calendar"
)

// DaySummary serves ?batch=&date=; date defaults to today.
func (h *Handler) DaySummary(c *gin.Context) {
	batchID := c.Query("batch")
	date := c.Query("date")
	if date == "" {
		date = calendar.Today(h.now())
	}
	day, err := calendar.DayStart(date)
	if err != nil {
		writeError(c, err)
		return
	}
	date = calendar.CivilDate(day)

	ctx := c.Request.Context()
	var gen int64 = -1
	if h.cache != nil {
		cached, g, ok := h.cache.Get(ctx, batchID, date)
		if ok {
			c.JSON(http.StatusOK, cached)
			return
		}
		gen = g
	}
	sum, err := h.agg.SummarizeDay(ctx, batchID, date)
	if err != nil {
		writeError(c, err)
		return
	}
	if h.cache != nil {
		h.cache.Set(ctx, batchID, sum, gen)
	}
	c.JSON(http.StatusOK, sum)
}

// DatesSummary serves ?batch=&dates=d1,d2.
func (h *Handler) DatesSummary(c *gin.Context) {
	dates := queryList(c, "dates")
	if len(dates) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "dates required"})
		return
	}
	sums, err := h.agg.SummarizeDates(c.Request.Context(), c.Query("batch"), dates)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"summaries": sums})
}

// RangeSummary serves ?batch=&start=&end=, end inclusive.
func (h *Handler) RangeSummary(c *gin.Context) {
	start, end := c.Query("start"), c.Query("end")
	if start == "" || end == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "start and end required"})
		return
	}
	sums, err := h.agg.SummarizeRange(c.Request.Context(), c.Query("batch"), start, end)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"summaries": sums})
}

// StudentStats serves one student's tally with the same percentage the
// export reports.
func (h *Handler) StudentStats(c *gin.Context) {
	regNo := attendance.NormalizeRegistrationNumber(c.Param("regNo"))
	st, err := h.agg.StudentStatsBetween(c.Request.Context(), c.Query("batch"), regNo, c.Query("start"), c.Query("end"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"registration_number": regNo, "stats": st})
}
