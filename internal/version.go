package internal

// CurrentVersion is set at build time via -ldflags.
var CurrentVersion = "dev"
