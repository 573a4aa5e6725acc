package schema

// Event type constants for the compile/execute log, written around compile,
// execute and WSpec cache lookups.
const (
	EventCompileStarted   = "compile_started"
	EventCompileCompleted = "compile_completed"
	EventCompileFailed    = "compile_failed"

	EventExecuteStarted   = "execute_started"
	EventExecuteCompleted = "execute_completed"
	EventExecuteFailed    = "execute_failed"

	EventCacheHit  = "cache_hit"
	EventCacheMiss = "cache_miss"
)
