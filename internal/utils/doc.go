// Package utils exposes reusable helpers consumed across the application,
// including the ConfigurationLoader that merges embedded defaults with file
// and environment overrides, the LoggerFactory that builds zap loggers for
// structured or console output, and the CommandContextAccessor for passing
// resolved settings through command contexts.
package utils
