package domain

// ImportRequest describes a file submitted for asynchronous import.
type ImportRequest struct {
	UserID     *string
	Entity     string
	FileName   string
	Options    map[string]any
	Priority   int
	MaxRetries *int
	Remark     *string
	// IdempotencyKey makes resubmissions return the task created first.
	IdempotencyKey *string
}

// MaxPriority bounds the priority accepted from callers.
const MaxPriority = 100

// MaxRetriesLimit bounds the retry budget accepted from callers.
const MaxRetriesLimit = 10
