package dartdap

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsSubsystem = "dartdap"

// Stats accumulates per-connection operation counts. Fields are updated
// under mu by the connection manager's run and reader goroutines; Clone is
// safe to call from any goroutine.
type Stats struct {
	mu sync.RWMutex

	Submitted uint64
	Completed uint64
	Failed    uint64
	Timeouts  uint64
	Abandoned uint64
	InFlight  uint64
	BytesSent uint64
	BytesRecv uint64
}

func (s *Stats) countSubmit() {
	s.mu.Lock()
	s.Submitted++
	s.InFlight++
	s.mu.Unlock()
}

func (s *Stats) countFlushed(n int) {
	s.mu.Lock()
	s.BytesSent += uint64(n)
	s.mu.Unlock()
}

func (s *Stats) countReceived(n int) {
	s.mu.Lock()
	s.BytesRecv += uint64(n)
	s.mu.Unlock()
}

func (s *Stats) countComplete() {
	s.mu.Lock()
	s.Completed++
	s.InFlight--
	s.mu.Unlock()
}

func (s *Stats) countFailed() {
	s.mu.Lock()
	s.Failed++
	s.InFlight--
	s.mu.Unlock()
}

func (s *Stats) countTimeout() {
	s.mu.Lock()
	s.Timeouts++
	s.InFlight--
	s.mu.Unlock()
}

func (s *Stats) countAbandoned() {
	s.mu.Lock()
	s.Abandoned++
	s.InFlight--
	s.mu.Unlock()
}

// Clone returns a point-in-time copy of s, safe to read without further
// locking.
func (s *Stats) Clone() *Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return &Stats{
		Submitted: s.Submitted,
		Completed: s.Completed,
		Failed:    s.Failed,
		Timeouts:  s.Timeouts,
		Abandoned: s.Abandoned,
		InFlight:  s.InFlight,
		BytesSent: s.BytesSent,
		BytesRecv: s.BytesRecv,
	}
}

type connCollector struct {
	stats *Stats

	submittedDesc *prometheus.Desc
	completedDesc *prometheus.Desc
	failedDesc    *prometheus.Desc
	timeoutsDesc  *prometheus.Desc
	abandonedDesc *prometheus.Desc
	inFlightDesc  *prometheus.Desc
	bytesSentDesc *prometheus.Desc
	bytesRecvDesc *prometheus.Desc
}

// NewCollector returns a prometheus.Collector exposing c's Stats. Register
// it with a prometheus.Registerer to scrape a single connection's counters.
func NewCollector(c *Conn) prometheus.Collector {
	return &connCollector{
		stats: c.stats,
		submittedDesc: prometheus.NewDesc(
			prometheus.BuildFQName("", metricsSubsystem, "operations_submitted_total"),
			"Total number of operations submitted on this connection", nil, nil,
		),
		completedDesc: prometheus.NewDesc(
			prometheus.BuildFQName("", metricsSubsystem, "operations_completed_total"),
			"Total number of operations that received a terminating response, whatever its result code", nil, nil,
		),
		failedDesc: prometheus.NewDesc(
			prometheus.BuildFQName("", metricsSubsystem, "operations_failed_total"),
			"Total number of operations ended locally by a connection failure or close", nil, nil,
		),
		timeoutsDesc: prometheus.NewDesc(
			prometheus.BuildFQName("", metricsSubsystem, "operations_timeout_total"),
			"Total number of operations that hit their context deadline", nil, nil,
		),
		abandonedDesc: prometheus.NewDesc(
			prometheus.BuildFQName("", metricsSubsystem, "operations_abandoned_total"),
			"Total number of operations abandoned by the caller", nil, nil,
		),
		inFlightDesc: prometheus.NewDesc(
			prometheus.BuildFQName("", metricsSubsystem, "operations_in_flight"),
			"Number of operations submitted but not yet completed", nil, nil,
		),
		bytesSentDesc: prometheus.NewDesc(
			prometheus.BuildFQName("", metricsSubsystem, "bytes_sent_total"),
			"Total bytes written to the socket", nil, nil,
		),
		bytesRecvDesc: prometheus.NewDesc(
			prometheus.BuildFQName("", metricsSubsystem, "bytes_received_total"),
			"Total bytes read from the socket", nil, nil,
		),
	}
}

// Describe is implemented with DescribeByCollect since Collect always
// returns the same fixed set of descriptors.
func (cc *connCollector) Describe(ch chan<- *prometheus.Desc) {
	prometheus.DescribeByCollect(cc, ch)
}

func (cc *connCollector) Collect(ch chan<- prometheus.Metric) {
	s := cc.stats.Clone()
	ch <- prometheus.MustNewConstMetric(cc.submittedDesc, prometheus.CounterValue, float64(s.Submitted))
	ch <- prometheus.MustNewConstMetric(cc.completedDesc, prometheus.CounterValue, float64(s.Completed))
	ch <- prometheus.MustNewConstMetric(cc.failedDesc, prometheus.CounterValue, float64(s.Failed))
	ch <- prometheus.MustNewConstMetric(cc.timeoutsDesc, prometheus.CounterValue, float64(s.Timeouts))
	ch <- prometheus.MustNewConstMetric(cc.abandonedDesc, prometheus.CounterValue, float64(s.Abandoned))
	ch <- prometheus.MustNewConstMetric(cc.inFlightDesc, prometheus.GaugeValue, float64(s.InFlight))
	ch <- prometheus.MustNewConstMetric(cc.bytesSentDesc, prometheus.CounterValue, float64(s.BytesSent))
	ch <- prometheus.MustNewConstMetric(cc.bytesRecvDesc, prometheus.CounterValue, float64(s.BytesRecv))
}
