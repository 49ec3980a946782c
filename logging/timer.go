package logging

import "time"

// StartTimer emits a DEBUG "started" entry immediately and returns a
// callback that emits an INFO "completed" entry with the measured
// duration.
func (l *Logger) StartTimer(source, operation string, ctx map[string]any) func() {
	start := time.Now()

	l.Debug(source, operation+" started", withOperation(ctx, operation, nil))

	return func() {
		ms := time.Since(start).Milliseconds()
		l.Info(source, operation+" completed", withOperation(ctx, operation, &ms))
	}
}

func withOperation(ctx map[string]any, operation string, durationMs *int64) map[string]any {
	out := make(map[string]any, len(ctx)+2)
	for k, v := range ctx {
		out[k] = v
	}
	out["operation"] = operation
	if durationMs != nil {
		out["duration_ms"] = *durationMs
	}
	return out
}
