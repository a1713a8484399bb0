package domain

// Availability is the service-wide availability state. Lockdown is entered
// when security-critical configuration is missing in production; it clears
// once a later evaluation passes.
type Availability string

const (
	Available Availability = "available"
	Degraded  Availability = "degraded"
	Lockdown  Availability = "lockdown"
)

// HealthChecks reports per-dependency status strings ("ok" or an error
// summary).
type HealthChecks struct {
	Database string `json:"database"`
	Provider string `json:"provider"`
	CSRF     string `json:"csrf"`
	Config   string `json:"config"`
}

// HealthReport is the admin health endpoint response.
type HealthReport struct {
	Status          Availability `json:"status"`
	Uptime          string       `json:"uptime"`
	Version         string       `json:"version"`
	Checks          HealthChecks `json:"checks"`
	ActiveSessions  int          `json:"activeSessions"`
	RevokedTokens   int          `json:"revokedTokens"`
	TrackedRateKeys int          `json:"trackedRateKeys"`
}
