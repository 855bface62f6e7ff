// Package mastodon implements the REST surface of Mastodon-compatible
// servers: wire types, a blocking HTTP client, and the error taxonomy the
// sync engine keys its retry policy on.
//
// The wire schema is treated as opaque beyond the fields needed for
// identity, ordering, and merge: everything else passes through untouched.
package mastodon

import "time"

// Status is one post as the server represents it.
type Status struct {
	ID               string            `json:"id"`
	URI              string            `json:"uri"`
	URL              string            `json:"url"`
	Content          string            `json:"content"`
	CreatedAt        time.Time         `json:"created_at"`
	EditedAt         *time.Time        `json:"edited_at"`
	Account          Account           `json:"account"`
	SpoilerText      string            `json:"spoiler_text"`
	Visibility       string            `json:"visibility"`
	Reblog           *Status           `json:"reblog"`
	MediaAttachments []MediaAttachment `json:"media_attachments"`
	RepliesCount     int64             `json:"replies_count"`
	ReblogsCount     int64             `json:"reblogs_count"`
	FavouritesCount  int64             `json:"favourites_count"`
	Favourited       bool              `json:"favourited"`
	Reblogged        bool              `json:"reblogged"`
	Bookmarked       bool              `json:"bookmarked"`
	InReplyToID      string            `json:"in_reply_to_id"`
	Poll             *Poll             `json:"poll"`
}

// Account is the author identity attached to statuses and notifications.
type Account struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	Acct        string `json:"acct"`
	DisplayName string `json:"display_name"`
	Locked      bool   `json:"locked"`
	Bot         bool   `json:"bot"`
}

// Name returns the display name, falling back to the handle.
func (a Account) Name() string {
	if a.DisplayName != "" {
		return a.DisplayName
	}
	return a.Acct
}

// MediaAttachment describes one attached media item.
type MediaAttachment struct {
	ID          string `json:"id"`
	Type        string `json:"type"` // "image", "video", "gifv", "audio"
	URL         string `json:"url"`
	Description string `json:"description"`
}

// Poll is an attached poll, possibly already voted in.
type Poll struct {
	ID          string       `json:"id"`
	ExpiresAt   *time.Time   `json:"expires_at"`
	Expired     bool         `json:"expired"`
	Multiple    bool         `json:"multiple"`
	VotesCount  int64        `json:"votes_count"`
	VotersCount *int64       `json:"voters_count"`
	Options     []PollOption `json:"options"`
	Voted       bool         `json:"voted"`
	OwnVotes    []int        `json:"own_votes"`
}

// PollOption is one poll choice.
type PollOption struct {
	Title      string `json:"title"`
	VotesCount *int64 `json:"votes_count"`
}

// Notification is one entry of the notifications timeline.
type Notification struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"` // "mention", "favourite", "reblog", "follow", "poll"
	CreatedAt time.Time `json:"created_at"`
	Account   Account   `json:"account"`
	Status    *Status   `json:"status"`
}

// Context is the reply tree around one status.
type Context struct {
	Ancestors   []Status `json:"ancestors"`
	Descendants []Status `json:"descendants"`
}

// SearchResults is the payload of /api/v2/search.
type SearchResults struct {
	Accounts []Account `json:"accounts"`
	Statuses []Status  `json:"statuses"`
	Hashtags []Tag     `json:"hashtags"`
}

// Tag is a hashtag reference.
type Tag struct {
	Name      string `json:"name"`
	URL       string `json:"url"`
	Following bool   `json:"following"`
}

// Instance carries the server metadata the client cares about.
type Instance struct {
	URI           string `json:"uri"`
	Title         string `json:"title"`
	Version       string `json:"version"`
	Configuration struct {
		Statuses struct {
			MaxCharacters int `json:"max_characters"`
		} `json:"statuses"`
	} `json:"configuration"`
}

// StatusDraft is the payload for creating a status or reply.
type StatusDraft struct {
	Content     string
	Visibility  string // "public", "unlisted", "private", "direct"
	SpoilerText string
	InReplyToID string
}
