package main

// version and buildHash are overridden at link time with -ldflags
// "-X main.version=... -X main.buildHash=...", matching how the rest of this
// module's build tooling stamps release artifacts.
var (
	version   = "dev"
	buildHash = "unknown"
)
