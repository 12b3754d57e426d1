package directory

// Health is the coarse availability signal for one download client.
type Health string

const (
	HealthHealthy Health = "healthy"
	HealthWarning Health = "warning"
	HealthFailing Health = "failing"
)

// failingThreshold is the number of consecutive connectivity failures after
// which a client is reported failing.
const failingThreshold = 3

type healthTracker struct {
	consecutiveFailures int
}

func (h *healthTracker) recordSuccess() {
	h.consecutiveFailures = 0
}

func (h *healthTracker) recordFailure() {
	h.consecutiveFailures++
}

func (h *healthTracker) health() Health {
	switch {
	case h.consecutiveFailures == 0:
		return HealthHealthy
	case h.consecutiveFailures >= failingThreshold:
		return HealthFailing
	default:
		return HealthWarning
	}
}
