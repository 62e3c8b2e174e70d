package observability

import (
	"runtime/debug"
)

// RecoverPanic recovers from a panic and logs it with the full stack trace.
// Meant for defer statements guarding subscriber callbacks and background
// goroutines:
//
//	defer observability.RecoverPanic(logger, "access status subscriber")
//
// The panic is swallowed after logging so one misbehaving callback cannot
// take the process down with it.
func RecoverPanic(logger *Logger, where string) {
	r := recover()
	if r == nil {
		return
	}

	logger.WithFields(map[string]interface{}{
		"panic":   r,
		"stack":   string(debug.Stack()),
		"context": where,
	}).Error("PANIC recovered")
}
