package constants

// Static route constants
const (
	APIRoute   = "/api"
	APIv1Route = "/api/v1"
	// Gateway notification endpoint, exempt from auth and rate limits
	NotificationRoute = "/api/v1/billing/notification"
)
