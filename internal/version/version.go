package version

// Version is the version of the ra-strapi CLI. It is overridden at build
// time with -ldflags "-X .../internal/version.Version=<version>".
var Version = "0.1.0-dev"
