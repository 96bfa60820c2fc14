package version

// AppVersion is the daemon version reported by the /version endpoint.
// Overridable at build time: -ldflags "-X fpshield/version.AppVersion=..."
var AppVersion = "0.3.0"
