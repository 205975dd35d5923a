package activity

import "context"

// Repository provides persistence operations for activity entries.
type Repository interface {
	Log(ctx context.Context, entry *Entry) error
	List(ctx context.Context, opts ListOptions) ([]Entry, error)
}

// Recorder is what other domains need to append to the trail.
type Recorder interface {
	Log(ctx context.Context, entry *Entry) error
}
