package constants

// API route constants
const (
	APIRoute   = "/api"
	APIv1Route = "/v1"

	YearbooksRoute     = "/yearbooks"
	ClaimsRoute        = "/claims"
	ReportsRoute       = "/reports"
	ModerationRoute    = "/moderation"
	NotificationsRoute = "/notifications"
)
