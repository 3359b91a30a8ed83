package zmachine

import "go.uber.org/zap"

// logger is the package-wide structured logger, named "interp" after
// the original interpreter's app::trace log target. It defaults to a
// no-op so headless conformance runs and tests stay silent unless a
// driver opts in via EnableLogging.
var logger = zap.NewNop()

// EnableLogging switches the interpreter loop's logger from a no-op to
// a development logger (human-readable, coloured level, caller info).
// Call it before Load so construction itself is covered.
func EnableLogging(enabled bool) {
	if !enabled {
		logger = zap.NewNop()
		return
	}
	l, err := zap.NewDevelopment()
	if err != nil {
		logger = zap.NewNop()
		return
	}
	logger = l.Named("interp")
}
