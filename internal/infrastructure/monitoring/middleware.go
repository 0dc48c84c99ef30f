package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// Middleware creates a Gin middleware for metrics collection
func Middleware(metrics *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method

		c.Next()

		// Route templates keep task and session ids out of label values
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		status := strconv.Itoa(c.Writer.Status())
		metrics.RecordHTTPRequest(method, route, status, time.Since(start), int64(c.Writer.Size()))
	}
}

// Timer measures an operation and reports it through a callback
type Timer struct {
	start  time.Time
	record func(outcome string, d time.Duration)
}

// NewTimer starts a timer that calls record on Stop
func NewTimer(record func(outcome string, d time.Duration)) *Timer {
	return &Timer{start: time.Now(), record: record}
}

// Stop records the elapsed time with the given outcome and returns it
func (t *Timer) Stop(outcome string) time.Duration {
	d := time.Since(t.start)
	if t.record != nil {
		t.record(outcome, d)
	}
	return d
}
