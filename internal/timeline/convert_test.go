package timeline

import (
	"testing"
	"time"

	"github.com/mkordell/murmur/internal/mastodon"
)

func TestFromStatusPlainPost(t *testing.T) {
	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s := mastodon.Status{
		ID:          "100",
		Content:     "<p>hello</p>",
		CreatedAt:   created,
		Visibility:  "public",
		SpoilerText: "politics",
		Account: mastodon.Account{
			ID:          "a1",
			Acct:        "ada@example.social",
			DisplayName: "Ada",
		},
		RepliesCount:    2,
		ReblogsCount:    3,
		FavouritesCount: 4,
		Favourited:      true,
	}

	e := FromStatus(s)
	if e.ID != "100" || e.Content != "<p>hello</p>" || !e.CreatedAt.Equal(created) {
		t.Errorf("basic fields wrong: %+v", e)
	}
	if e.Author.Name != "Ada" || e.Author.Handle != "ada@example.social" {
		t.Errorf("Author = %+v", e.Author)
	}
	if e.BoostedBy != nil || e.BoostOfID != "" {
		t.Error("plain post marked as boost")
	}
	if e.Replies != 2 || e.Boosts != 3 || e.Favorites != 4 || !e.Favorited {
		t.Errorf("counts wrong: %+v", e)
	}
	if e.SpoilerText != "politics" {
		t.Errorf("SpoilerText = %q", e.SpoilerText)
	}
}

func TestFromStatusBoostKeepsWrapperIdentity(t *testing.T) {
	boostTime := time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)
	origTime := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	s := mastodon.Status{
		ID:        "200",
		CreatedAt: boostTime,
		Account:   mastodon.Account{ID: "b1", Acct: "bob@example.social", DisplayName: "Bob"},
		Reblog: &mastodon.Status{
			ID:        "150",
			Content:   "<p>original</p>",
			CreatedAt: origTime,
			Account:   mastodon.Account{ID: "a1", Acct: "ada@example.social", DisplayName: "Ada"},
		},
	}

	e := FromStatus(s)
	// The wrapper id and time: a boost sorts at boost time and stays
	// unique per boost.
	if e.ID != "200" || !e.CreatedAt.Equal(boostTime) {
		t.Errorf("wrapper identity lost: id=%s created=%v", e.ID, e.CreatedAt)
	}
	if e.BoostOfID != "150" {
		t.Errorf("BoostOfID = %q, want 150", e.BoostOfID)
	}
	// Content and author come from the boosted status.
	if e.Author.Handle != "ada@example.social" || e.Content != "<p>original</p>" {
		t.Errorf("inner status fields lost: %+v", e)
	}
	if e.BoostedBy == nil || e.BoostedBy.Name != "Bob" {
		t.Errorf("BoostedBy = %+v", e.BoostedBy)
	}
}

func TestFromStatusMediaAndPoll(t *testing.T) {
	votes := int64(7)
	s := mastodon.Status{
		ID:        "300",
		CreatedAt: time.Now(),
		Account:   mastodon.Account{ID: "a1", Acct: "ada@example.social"},
		MediaAttachments: []mastodon.MediaAttachment{
			{Type: "image", Description: "a cat"},
			{Type: "video"},
		},
		Poll: &mastodon.Poll{
			ID:         "p1",
			Multiple:   true,
			VotesCount: 10,
			Options: []mastodon.PollOption{
				{Title: "yes", VotesCount: &votes},
				{Title: "no"},
			},
		},
	}

	e := FromStatus(s)
	if len(e.Media) != 2 || e.Media[0] != "image: a cat" || e.Media[1] != "video" {
		t.Errorf("Media = %v", e.Media)
	}
	if e.Poll == nil || e.Poll.ID != "p1" || !e.Poll.Multiple {
		t.Fatalf("Poll = %+v", e.Poll)
	}
	if len(e.Poll.Options) != 2 || e.Poll.Options[0].Votes != 7 || e.Poll.Options[1].Votes != 0 {
		t.Errorf("Options = %+v", e.Poll.Options)
	}
}

func TestFromNotification(t *testing.T) {
	created := time.Date(2025, 6, 3, 9, 0, 0, 0, time.UTC)
	n := mastodon.Notification{
		ID:        "n42",
		Type:      "favourite",
		CreatedAt: created,
		Account:   mastodon.Account{ID: "b1", Acct: "bob@example.social", DisplayName: "Bob"},
		Status: &mastodon.Status{
			ID:        "100",
			Content:   "<p>nice post</p>",
			CreatedAt: created.Add(-time.Hour),
			Account:   mastodon.Account{ID: "a1", Acct: "ada@example.social"},
		},
	}

	e := FromNotification(n)
	// The notification id is the entry identity, not the status id.
	if e.ID != "n42" || !e.CreatedAt.Equal(created) {
		t.Errorf("identity wrong: %+v", e)
	}
	if e.NotifType != "favourite" {
		t.Errorf("NotifType = %q", e.NotifType)
	}
	if e.Author.Name != "Bob" {
		t.Errorf("Author = %+v, want the notifying account", e.Author)
	}
	if e.Content != "<p>nice post</p>" {
		t.Errorf("Content = %q", e.Content)
	}
}

func TestFromNotificationWithoutStatus(t *testing.T) {
	n := mastodon.Notification{
		ID:        "n1",
		Type:      "follow",
		CreatedAt: time.Now(),
		Account:   mastodon.Account{ID: "b1", Acct: "bob@example.social"},
	}
	e := FromNotification(n)
	if e.Content != "" || e.NotifType != "follow" {
		t.Errorf("follow notification = %+v", e)
	}
}
