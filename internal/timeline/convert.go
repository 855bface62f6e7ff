package timeline

import (
	"fmt"

	"github.com/mkordell/murmur/internal/mastodon"
)

// FromStatus converts a wire status to a timeline entry. A boost keeps the
// wrapper's id and creation time (so it sorts at boost time and stays
// unique per boost) and records the booster as BoostedBy.
func FromStatus(s mastodon.Status) Entry {
	source := s
	var boostedBy *Identity
	boostOfID := ""
	if s.Reblog != nil {
		source = *s.Reblog
		booster := identity(s.Account)
		boostedBy = &booster
		boostOfID = source.ID
	}

	return Entry{
		ID:          s.ID,
		Author:      identity(source.Account),
		BoostedBy:   boostedBy,
		BoostOfID:   boostOfID,
		Content:     source.Content,
		CreatedAt:   s.CreatedAt,
		Visibility:  source.Visibility,
		SpoilerText: source.SpoilerText,
		InReplyToID: source.InReplyToID,
		Replies:     source.RepliesCount,
		Boosts:      source.ReblogsCount,
		Favorites:   source.FavouritesCount,
		Favorited:   source.Favourited,
		Boosted:     source.Reblogged,
		Bookmarked:  source.Bookmarked,
		Media:       mediaSummaries(source.MediaAttachments),
		Poll:        pollSummary(source.Poll),
	}
}

// FromStatuses converts a page of statuses.
func FromStatuses(statuses []mastodon.Status) []Entry {
	entries := make([]Entry, 0, len(statuses))
	for _, s := range statuses {
		entries = append(entries, FromStatus(s))
	}
	return entries
}

// FromNotification converts a notification to an entry of the
// notifications timeline. The notification id is the entry identity; the
// wrapped status, when present, supplies content and counts.
func FromNotification(n mastodon.Notification) Entry {
	entry := Entry{
		ID:        n.ID,
		Author:    identity(n.Account),
		CreatedAt: n.CreatedAt,
		NotifType: n.Type,
	}
	if n.Status != nil {
		inner := FromStatus(*n.Status)
		entry.Content = inner.Content
		entry.SpoilerText = inner.SpoilerText
		entry.Visibility = inner.Visibility
		entry.Replies = inner.Replies
		entry.Boosts = inner.Boosts
		entry.Favorites = inner.Favorites
		entry.Favorited = inner.Favorited
		entry.Boosted = inner.Boosted
		entry.Bookmarked = inner.Bookmarked
		entry.Media = inner.Media
		entry.Poll = inner.Poll
	}
	return entry
}

// FromNotifications converts a page of notifications.
func FromNotifications(notifications []mastodon.Notification) []Entry {
	entries := make([]Entry, 0, len(notifications))
	for _, n := range notifications {
		entries = append(entries, FromNotification(n))
	}
	return entries
}

func identity(a mastodon.Account) Identity {
	return Identity{
		ID:     a.ID,
		Handle: a.Acct,
		Name:   a.Name(),
	}
}

func mediaSummaries(attachments []mastodon.MediaAttachment) []string {
	if len(attachments) == 0 {
		return nil
	}
	out := make([]string, 0, len(attachments))
	for _, m := range attachments {
		if m.Description != "" {
			out = append(out, fmt.Sprintf("%s: %s", m.Type, m.Description))
		} else {
			out = append(out, m.Type)
		}
	}
	return out
}

func pollSummary(p *mastodon.Poll) *PollSummary {
	if p == nil {
		return nil
	}
	summary := &PollSummary{
		ID:       p.ID,
		Expired:  p.Expired,
		Multiple: p.Multiple,
		Votes:    p.VotesCount,
		Voted:    p.Voted,
	}
	for _, opt := range p.Options {
		choice := PollChoice{Title: opt.Title}
		if opt.VotesCount != nil {
			choice.Votes = *opt.VotesCount
		}
		summary.Options = append(summary.Options, choice)
	}
	return summary
}
