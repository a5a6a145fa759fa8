// Package version holds build metadata set with -ldflags.
package version

// Version is overridden at build time:
//
//	go build -ldflags "-X github.com/originbots/tradebot/internal/version.Version=v1.2.3"
var Version = "dev"
