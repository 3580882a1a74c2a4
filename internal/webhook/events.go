package webhook

import "encoding/json"

// Event is one classified unit of work from a delivery. The closed set of
// implementations is FeedPostEvent, FeedCommentEvent, MessagingEvent and
// UnrecognizedEvent; downstream code switches on the concrete type and
// never inspects raw maps.
type Event interface {
	Kind() string
}

// FeedPostEvent is a feed change on a post itself.
type FeedPostEvent struct {
	PostID string
	Verb   string
}

func (FeedPostEvent) Kind() string { return "feed_post" }

// FeedCommentEvent is a feed change on a comment under a post.
type FeedCommentEvent struct {
	PostID    string
	CommentID string
	Verb      string
}

func (FeedCommentEvent) Kind() string { return "feed_comment" }

// MessagingEvent is an opaque messaging item. It is logged, never applied.
type MessagingEvent struct {
	Raw json.RawMessage
}

func (MessagingEvent) Kind() string { return "messaging" }

// UnrecognizedEvent is a change the classifier does not understand. Kept as
// an event so the dispatcher can log it; it is never a failure.
type UnrecognizedEvent struct {
	Field string
	Raw   json.RawMessage
}

func (UnrecognizedEvent) Kind() string { return "unrecognized" }
