// Package timeline holds the authoritative model of open timelines: entry
// identity, the merge rule, canonical ordering, and pagination cursors.
// Everything here is pure data manipulation; no I/O.
package timeline

import "net/url"

// Category names the flavor of a timeline.
type Category string

const (
	Home          Category = "home"
	Notifications Category = "notifications"
	Local         Category = "local"
	Federated     Category = "federated"
	Direct        Category = "direct"
	Bookmarks     Category = "bookmarks"
	Favorites     Category = "favorites"
	User          Category = "user"
	Hashtag       Category = "hashtag"
	Thread        Category = "thread"
	Search        Category = "search"
)

// Kind identifies one open timeline: a category plus its parameter
// (account id, hashtag, status id, or search query; empty for the fixed
// categories). Comparable, so it keys maps directly.
type Kind struct {
	Category Category
	Param    string
}

// DisplayName returns the label shown in the timeline selector.
func (k Kind) DisplayName() string {
	switch k.Category {
	case Home:
		return "Home"
	case Notifications:
		return "Notifications"
	case Local:
		return "Local"
	case Federated:
		return "Federated"
	case Direct:
		return "Direct"
	case Bookmarks:
		return "Bookmarks"
	case Favorites:
		return "Favorites"
	case User:
		return "User " + k.Param
	case Hashtag:
		return "#" + k.Param
	case Thread:
		return "Thread"
	case Search:
		return "Search: " + k.Param
	default:
		return string(k.Category)
	}
}

// APIPath returns the REST path and query parameters for status-list
// timelines. Notifications, threads, and search use dedicated endpoints
// and return ok=false.
func (k Kind) APIPath() (path string, params url.Values, ok bool) {
	switch k.Category {
	case Home:
		return "/api/v1/timelines/home", nil, true
	case Local:
		return "/api/v1/timelines/public", url.Values{"local": {"true"}}, true
	case Federated:
		return "/api/v1/timelines/public", nil, true
	case Direct:
		return "/api/v1/timelines/direct", nil, true
	case Bookmarks:
		return "/api/v1/bookmarks", nil, true
	case Favorites:
		return "/api/v1/favourites", nil, true
	case User:
		return "/api/v1/accounts/" + k.Param + "/statuses", nil, true
	case Hashtag:
		return "/api/v1/timelines/tag/" + k.Param, nil, true
	default:
		return "", nil, false
	}
}

// StreamName returns the streaming subscription name for categories that
// have a live stream. Pull-only categories return ok=false.
func (k Kind) StreamName() (string, bool) {
	switch k.Category {
	case Home, Notifications:
		return "user", true
	case Local:
		return "public:local", true
	case Federated:
		return "public", true
	case Direct:
		return "direct", true
	case Hashtag:
		return "hashtag", true
	default:
		return "", false
	}
}

// Closeable reports whether the user may close this timeline. Home and
// Notifications stay open for the life of the session.
func (k Kind) Closeable() bool {
	return k.Category != Home && k.Category != Notifications
}

// Paged reports whether the timeline pages backward with a max_id cursor.
// Threads arrive whole; search pages by offset.
func (k Kind) Paged() bool {
	return k.Category != Thread && k.Category != Search
}
