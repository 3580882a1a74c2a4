package webhook

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrMalformedPayload signals a body that is not decodable JSON.
	ErrMalformedPayload = errors.New("webhook: malformed payload")
	// ErrInvalidSchema signals decodable JSON that does not match the
	// delivery schema. Distinct from ErrMalformedPayload so callers can
	// log the two differently.
	ErrInvalidSchema = errors.New("webhook: invalid schema")
)

// Delivery is one verified, classified webhook delivery.
type Delivery struct {
	Object string
	Events []Event
}

type rawEntry struct {
	ID        string            `json:"id"`
	Time      int64             `json:"time"`
	Changes   []rawChange       `json:"changes"`
	Messaging []json.RawMessage `json:"messaging"`
}

type rawChange struct {
	Field string          `json:"field"`
	Value json.RawMessage `json:"value"`
}

type feedValue struct {
	PostID    string `json:"post_id"`
	CommentID string `json:"comment_id"`
	Item      string `json:"item"`
	Verb      string `json:"verb"`
}

// Parse decodes and classifies a verified payload into an ordered sequence
// of typed events. Changes the classifier does not recognize become
// UnrecognizedEvent entries so a new upstream event type never breaks
// ingestion of the rest of the delivery.
func Parse(body []byte) (*Delivery, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(body, &probe); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, fmt.Errorf("%w: top level is not an object", ErrInvalidSchema)
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	entryRaw, ok := probe["entry"]
	if !ok {
		return nil, fmt.Errorf("%w: missing entry", ErrInvalidSchema)
	}
	var entries []rawEntry
	if err := json.Unmarshal(entryRaw, &entries); err != nil {
		return nil, fmt.Errorf("%w: entry: %v", ErrInvalidSchema, err)
	}

	delivery := &Delivery{}
	if objRaw, ok := probe["object"]; ok {
		_ = json.Unmarshal(objRaw, &delivery.Object)
	}

	for _, entry := range entries {
		for _, change := range entry.Changes {
			delivery.Events = append(delivery.Events, classifyChange(change))
		}
		for _, msg := range entry.Messaging {
			delivery.Events = append(delivery.Events, MessagingEvent{Raw: msg})
		}
	}
	return delivery, nil
}

func classifyChange(change rawChange) Event {
	if change.Field != "feed" {
		return UnrecognizedEvent{Field: change.Field, Raw: change.Value}
	}
	var value feedValue
	if err := json.Unmarshal(change.Value, &value); err != nil || value.PostID == "" {
		return UnrecognizedEvent{Field: change.Field, Raw: change.Value}
	}
	switch value.Item {
	case "post":
		return FeedPostEvent{PostID: value.PostID, Verb: value.Verb}
	case "comment":
		return FeedCommentEvent{PostID: value.PostID, CommentID: value.CommentID, Verb: value.Verb}
	default:
		return UnrecognizedEvent{Field: change.Field, Raw: change.Value}
	}
}
