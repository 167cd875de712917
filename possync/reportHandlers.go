package possync

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/pos_terminal/models/reports"
	"github.com/gin-gonic/gin"
)

// Offline report endpoints. Read-only over the local log; shaped like the
// server's report responses so the terminal UI renders them unchanged when
// the server is unreachable.

func SalesOverviewHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		fromDate, toDate, err := parseDateRange(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		report, err := reports.GetSalesOverviewReport(c.Request.Context(), fromDate, toDate)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, report)
	}
}

func TopSellingProductsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		fromDate, toDate, err := parseDateRange(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		limit := 10
		if v := strings.TrimSpace(c.Query("limit")); v != "" {
			if n, convErr := strconv.Atoi(v); convErr == nil && n > 0 {
				limit = n
			}
		}
		report, err := reports.GetTopSellingProductsReport(c.Request.Context(), fromDate, toDate, limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, report)
	}
}

func PaymentMethodBreakdownHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		fromDate, toDate, err := parseDateRange(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		report, err := reports.GetPaymentMethodBreakdownReport(c.Request.Context(), fromDate, toDate)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, report)
	}
}

func parseDateRange(c *gin.Context) (time.Time, time.Time, error) {
	now := time.Now().UTC()
	fromDate := now.Truncate(24 * time.Hour)
	toDate := now

	if v := strings.TrimSpace(c.Query("from")); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return fromDate, toDate, err
		}
		fromDate = parsed
	}
	if v := strings.TrimSpace(c.Query("to")); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return fromDate, toDate, err
		}
		toDate = parsed
	}
	return fromDate, toDate, nil
}
