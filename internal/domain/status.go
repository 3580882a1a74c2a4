package domain

// PostStatus is the publication state of a post.
type PostStatus string

const (
	PostStatusDraft     PostStatus = "draft"
	PostStatusScheduled PostStatus = "scheduled"
	PostStatusPublished PostStatus = "published"
	PostStatusUpdated   PostStatus = "updated"
	PostStatusHidden    PostStatus = "hidden"
	PostStatusDeleted   PostStatus = "deleted"
	PostStatusModified  PostStatus = "modified"
	PostStatusFailed    PostStatus = "failed"
)

// StatusForVerb maps a feed-change verb to the resulting post status.
// Unknown verbs map to modified rather than failing, so new upstream verbs
// never break ingestion.
func StatusForVerb(verb string) PostStatus {
	switch verb {
	case "add":
		return PostStatusPublished
	case "edit":
		return PostStatusUpdated
	case "delete":
		return PostStatusDeleted
	case "hide":
		return PostStatusHidden
	case "unhide":
		return PostStatusPublished
	default:
		return PostStatusModified
	}
}

// Terminal reports whether the status is absorbing: once a post is deleted
// or failed it never transitions out.
func (s PostStatus) Terminal() bool {
	return s == PostStatusDeleted || s == PostStatusFailed
}
