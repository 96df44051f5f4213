package build

// Name and Version are injected at build time via ldflags.
var (
	Name    = "codefmt"
	Version = "v0.0.1+dev"
)
