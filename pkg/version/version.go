package version

// Version is filled with `-ldflags "-X github.com/can-bridge/udp2can/pkg/version.Version=..."`.
var Version = "v0.0.0+unknown"
