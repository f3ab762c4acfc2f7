package store

import "github.com/user/forkd/internal/types"

var (
	_ types.EventStore   = (*EventStore)(nil)
	_ types.ForkStore    = (*ForkStore)(nil)
	_ types.SessionStore = (*SessionStore)(nil)
	_ types.JobStore     = (*JobStore)(nil)
)
