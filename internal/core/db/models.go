package db

// Run is one upload invocation.
type Run struct {
	ID    string
	Input string
	Style string
	// StartedAt and FinishedAt are stored as RFC3339 text. FinishedAt is
	// empty while the run is in progress or when it was interrupted.
	StartedAt  string
	FinishedAt string
	LinkCount  int
}

// Link is one accepted mirror link of a run.
type Link struct {
	ID        int64
	RunID     string
	Host      string
	URL       string
	CreatedAt string
}
