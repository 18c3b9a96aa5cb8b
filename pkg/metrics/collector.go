package metrics

import (
	"runtime"
	"time"
)

// lagQuantum is the sleep used to sample cooperative scheduling lag.
// The gauge records how much longer than this the sleep actually took.
const lagQuantum = 10 * time.Millisecond

// Collector periodically samples process runtime metrics
type Collector struct {
	interval time.Duration
	stopCh   chan struct{}
}

// NewCollector creates a new runtime metrics collector
func NewCollector(interval time.Duration) *Collector {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Collector{
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins collecting metrics
func (c *Collector) Start() {
	ticker := time.NewTicker(c.interval)
	go func() {
		// Collect immediately on start
		c.collect()

		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	c.collectSchedLag()
	c.collectMemoryPressure()
}

func (c *Collector) collectSchedLag() {
	start := time.Now()
	time.Sleep(lagQuantum)
	lag := time.Since(start) - lagQuantum
	if lag < 0 {
		lag = 0
	}
	SchedLagSeconds.Set(lag.Seconds())
}

func (c *Collector) collectMemoryPressure() {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	if stats.HeapSys == 0 {
		return
	}
	MemoryPressurePct.Set(float64(stats.HeapAlloc) / float64(stats.HeapSys) * 100)
}
