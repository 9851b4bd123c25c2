package analyzer

// Aggregator accumulates per-session statistics over records in arrival
// order. It is owned by a single ingestion pass and is not safe for
// concurrent use.
type Aggregator struct {
	total     int64
	errors    int64
	fallbacks int64
	users     map[string]struct{}
}

func NewAggregator() *Aggregator {
	return &Aggregator{users: make(map[string]struct{})}
}

// Add counts one record. An empty uid is a distinct identity of its own.
func (a *Aggregator) Add(rec *LogRecord) {
	a.total++
	if IsErrorLevel(rec.Level) {
		a.errors++
	}
	if rec.TimestampFallback {
		a.fallbacks++
	}
	a.users[rec.UID] = struct{}{}
}

func (a *Aggregator) Snapshot() Counters {
	return Counters{
		TotalLogs:          a.total,
		UniqueUsers:        int64(len(a.users)),
		ErrorCount:         a.errors,
		FallbackTimestamps: a.fallbacks,
	}
}
