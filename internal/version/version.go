package version

const (
	AppName        = "Playerlink"
	AppDescription = "Real-time music session client for the Evict dashboard"
	AppVersion     = "0.3.0"
)
