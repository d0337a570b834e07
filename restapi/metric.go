package restapi

import (
	"fmt"
	"strconv"
	"time"

	"github.com/AustralianCyberSecurityCentre/azul-dupescan.git/prom"
	st "github.com/AustralianCyberSecurityCentre/azul-dupescan.git/settings"
	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
)

// scan phases as seen by the status server
const (
	phaseWaiting = "waiting"
	phaseRunning = "running"
	phaseDone    = "done"
)

// accessLogLine is one request in restapi.ok.log or restapi.err.log.
type accessLogLine struct {
	Time          string `json:"time"`
	DurationS     string `json:"duration_s"`
	Status        int    `json:"status"`
	Method        string `json:"method"`
	Route         string `json:"route"`
	Remote        string `json:"remote"`
	Useragent     string `json:"user_agent"`
	Scan          string `json:"scan"`
	BatchesMerged uint64 `json:"batches_merged"`
	Errors        string `json:"errors,omitempty"`
}

// phase reports where the attached scan is, for labelling requests.
func (s *StatusServer) phase() (string, uint64) {
	p := s.progress.Load()
	switch {
	case p == nil:
		return phaseWaiting, 0
	case p.Done.Load():
		return phaseDone, p.BatchesMerged.Load()
	default:
		return phaseRunning, p.BatchesMerged.Load()
	}
}

// MetricHandler times fn and counts its response codes by scan phase.
// The route template is passed in as gin only knows the concrete path.
func (s *StatusServer) MetricHandler(route string, fn gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		fn(c)
		elapsed := time.Since(start).Seconds()
		status := c.Writer.Status()
		phase, merged := s.phase()
		prom.RestapiTimes.WithLabelValues(c.Request.Method, route).Observe(elapsed)
		prom.RestapiCodes.WithLabelValues(c.Request.Method, route, strconv.Itoa(status), phase).Inc()

		line, err := json.Marshal(accessLogLine{
			Time:          start.Format(time.RFC3339),
			DurationS:     fmt.Sprintf("%.4f", elapsed),
			Status:        status,
			Method:        c.Request.Method,
			Route:         route,
			Remote:        c.Request.RemoteAddr,
			Useragent:     c.Request.UserAgent(),
			Scan:          phase,
			BatchesMerged: merged,
			Errors:        c.Errors.String(),
		})
		if err != nil {
			st.Logger.Warn().Err(err).Str("route", route).Msg("could not marshal restapi log line")
			return
		}
		if status < 400 {
			st.ChLogRestapiOk <- line
		} else {
			st.ChLogRestapiErr <- line
		}
	}
}
