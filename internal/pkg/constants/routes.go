package constants

// Static route and path constants
const (
	APIRoute    = "/api/v1"
	HealthRoute = "/health"

	// Working directory for produced artifact files
	OutputDir = "./uploads/output"
)
