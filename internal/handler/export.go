package handler

import (
	"bytes"
	"net/http"

	"github.com/gin-gonic/gin"

	"sessionattendance/internal/metrics"
	"sessionattendance/internal/report"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Export serves a batch report as json (default), csv or xlsx.
func (h *Handler) Export(c *gin.Context) {
	format := c.DefaultQuery("format", "json")
	if format != "json" && format != "csv" && format != "xlsx" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "format must be json, csv or xlsx"})
		return
	}
	start, end := c.Query("start"), c.Query("end")
	rep, err := h.exporter.Export(c.Request.Context(), c.Param("batch"), start, end)
	if err != nil {
		writeError(c, err)
		return
	}
	metrics.Exports.WithLabelValues(format).Inc()

	if format == "json" {
		c.JSON(http.StatusOK, gin.H{
			"batch_id": rep.BatchID,
			"dates":    rep.Dates,
			"columns":  rep.Header(),
			"rows":     rep.Rows,
		})
		return
	}

	var buf bytes.Buffer
	contentType := "text/csv; charset=utf-8"
	write := report.WriteCSV
	if format == "xlsx" {
		contentType = xlsxContentType
		write = report.WriteXLSX
	}
	if err := write(&buf, rep); err != nil {
		writeError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+report.FileName(rep, format, start, end)+`"`)
	c.Data(http.StatusOK, contentType, buf.Bytes())
}
