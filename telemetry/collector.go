package telemetry

// Collector accumulates events within tick windows and produces WindowStats.
type Collector struct {
	windowTicks int
	dt          float64

	// Current window tracking
	windowStartTick int

	// Event counters for current window
	anomalies int
	impulses  int
	pushed    int
}

// NewCollector creates a new stats collector.
// windowTicks: ticks per window
// dt: seconds per tick (used for tick-to-time conversion)
func NewCollector(windowTicks int, dt float64) *Collector {
	if windowTicks < 1 {
		windowTicks = 1
	}
	return &Collector{
		windowTicks: windowTicks,
		dt:          dt,
	}
}

// RecordAnomalies adds non-finite accelerations reset during a tick.
func (c *Collector) RecordAnomalies(n int) {
	c.anomalies += n
}

// RecordImpulse records one impulse and the number of particles it moved.
func (c *Collector) RecordImpulse(pushed int) {
	c.impulses++
	c.pushed += pushed
}

// ShouldFlush returns true if enough ticks have passed to flush the window.
func (c *Collector) ShouldFlush(currentTick int) bool {
	return currentTick-c.windowStartTick >= c.windowTicks
}

// Flush completes sampled with the window's event counters and tick range,
// then resets counters for the next window.
func (c *Collector) Flush(currentTick int, sampled WindowStats) WindowStats {
	stats := sampled
	stats.WindowStartTick = c.windowStartTick
	stats.WindowEndTick = currentTick
	stats.SimTimeSec = float64(currentTick) * c.dt
	stats.Anomalies = c.anomalies
	stats.Impulses = c.impulses
	stats.Pushed = c.pushed

	c.windowStartTick = currentTick
	c.anomalies = 0
	c.impulses = 0
	c.pushed = 0

	return stats
}
