// Package version holds build information set by ldflags:
//
//	go build -ldflags "-X github.com/ironsheep/ballmeter/internal/version.Version=1.2.0" ./cmd/ballmeter
package version

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
