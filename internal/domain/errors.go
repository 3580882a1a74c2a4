package domain

import "errors"

var (
	// ErrAgentNotFound signals that no aggregate exists for the agent ID.
	ErrAgentNotFound = errors.New("agent: not found")
	// ErrPostNotFound signals that the agent owns no post with the given ID.
	ErrPostNotFound = errors.New("agent: post not found")
	// ErrTokenNotFound signals that the agent has no stored credential.
	ErrTokenNotFound = errors.New("agent: token not found")
)
