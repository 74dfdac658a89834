// Package version identifies the service in logs, traces, and builds.
package version

// Name is the service name reported to telemetry backends.
const Name = "crm-auth-api"

// Version is stamped at build time via -ldflags.
var Version = "dev"
