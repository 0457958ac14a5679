package constants

// Static route constants
const (
	HomeRoute      = "/"
	LoginRoute     = "/login"
	DashboardRoute = "/dashboard"
	PricingRoute   = "/pricing"
)
