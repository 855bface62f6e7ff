package engine

import (
	"context"

	"github.com/mkordell/murmur/internal/dispatch"
	"github.com/mkordell/murmur/internal/logging"
	"github.com/mkordell/murmur/internal/mastodon"
	"github.com/mkordell/murmur/internal/stream"
	"github.com/mkordell/murmur/internal/timeline"
)

// Payload shapes carried through the response channel.
type (
	pagePayload   struct{ page mastodon.Page }
	notifsPayload struct {
		items []mastodon.Notification
		next  string
	}
	threadPayload struct {
		status  mastodon.Status
		context mastodon.Context
	}
	searchPayload   struct{ results mastodon.SearchResults }
	statusPayload   struct{ status mastodon.Status }
	pollPayload     struct{ poll mastodon.Poll }
	acctPayload     struct{ account mastodon.Account }
	instancePayload struct{ info mastodon.Instance }
)

func (e *Engine) apply(cmd Command, diff *Diff) {
	s, ok := e.sessions[e.active]
	if !ok {
		return
	}

	switch c := cmd.(type) {
	case OpenTimeline:
		e.openTimeline(s, c.Kind, diff)
	case CloseTimeline:
		e.closeTimeline(s, c.Kind, diff)
	case LoadMore:
		e.scheduleLoadMore(s, c.Kind, diff)
	case Refresh:
		e.scheduleRefresh(s, c.Kind, diff)
	case Post:
		e.schedulePost(s, c.Draft, diff)
	case ToggleFavorite:
		e.scheduleToggle(s, c.EntryID, "favorite", diff)
	case ToggleBoost:
		e.scheduleToggle(s, c.EntryID, "boost", diff)
	case ToggleBookmark:
		e.scheduleToggle(s, c.EntryID, "bookmark", diff)
	case VotePoll:
		e.scheduleVote(s, c, diff)
	case DeleteEntry:
		e.scheduleDelete(s, c.EntryID, diff)
	case SwitchAccount:
		e.switchAccount(c.Index, diff)
	case AddAccount:
		e.addAccount(c, diff)
	case RemoveAccount:
		e.removeAccount(c.Index, diff)
	}
}

// openTimeline creates the timeline if needed, serves cached entries
// marked stale, schedules the first fetch, and ensures its stream runs.
func (e *Engine) openTimeline(s *session, kind timeline.Kind, diff *Diff) {
	if _, ok := s.timelines[kind]; ok {
		diff.mark(kind)
		return
	}

	t := timeline.New(kind)
	s.timelines[kind] = t
	s.order = append(s.order, kind)
	diff.Layout = true

	if e.store != nil && kind.Paged() {
		cached, err := e.store.LoadEntries(s.id, kind, e.pageSize)
		if err != nil {
			logging.Warn("cache load failed", "timeline", kind.DisplayName(), "err", err)
		} else if len(cached) > 0 {
			t.MergeAll(cached)
			t.Stale = true
		}
	}

	e.scheduleRefresh(s, kind, diff)
	e.ensureStream(s, kind)
}

// closeTimeline removes a closeable timeline and stops its stream when no
// other open timeline shares it. Results still in flight for it will be
// discarded when they land.
func (e *Engine) closeTimeline(s *session, kind timeline.Kind, diff *Diff) {
	if !kind.Closeable() {
		diff.notice(NoticeWarn, "%s cannot be closed", kind.DisplayName())
		return
	}
	if _, ok := s.timelines[kind]; !ok {
		return
	}
	delete(s.timelines, kind)
	for i, k := range s.order {
		if k == kind {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	e.dropStreamIfUnused(s, kind)
	if e.store != nil && kind.Paged() {
		if err := e.store.ClearTimeline(s.id, kind); err != nil {
			logging.Warn("cache clear failed", "timeline", kind.DisplayName(), "err", err)
		}
	}
	diff.Layout = true
}

// scheduleRefresh fetches the newest page of a timeline.
func (e *Engine) scheduleRefresh(s *session, kind timeline.Kind, diff *Diff) {
	t, ok := s.timelines[kind]
	if !ok || t.Loading {
		return
	}
	t.Loading = true
	diff.mark(kind)
	e.submitFetch(s, kind, "", true, false)
}

// scheduleLoadMore fetches the next older page, re-deriving the cursor at
// apply time so a stale issued cursor never skips a page.
func (e *Engine) scheduleLoadMore(s *session, kind timeline.Kind, diff *Diff) {
	t, ok := s.timelines[kind]
	if !ok || t.Loading || t.EndReached || !kind.Paged() {
		return
	}
	t.Loading = true
	diff.mark(kind)
	e.submitFetch(s, kind, t.PageCursor(""), false, false)
}

// submitFetch builds and submits the fetch job for one timeline page.
// A retry is a new correlation id; the retried flag just stops a second
// one.
func (e *Engine) submitFetch(s *session, kind timeline.Kind, maxID string, refresh, retried bool) {
	corrID := dispatch.NewCorrID()
	api := s.api
	pageSize := e.pageSize

	var op string
	var run func(ctx context.Context) (any, error)
	switch kind.Category {
	case timeline.Notifications:
		op = "notifications"
		run = func(ctx context.Context) (any, error) {
			items, next, err := api.Notifications(ctx, pageSize, maxID)
			if err != nil {
				return nil, err
			}
			return notifsPayload{items: items, next: next}, nil
		}
	case timeline.Thread:
		op = "thread"
		statusID := kind.Param
		run = func(ctx context.Context) (any, error) {
			status, err := api.GetStatus(ctx, statusID)
			if err != nil {
				return nil, err
			}
			threadCtx, err := api.GetContext(ctx, statusID)
			if err != nil {
				return nil, err
			}
			return threadPayload{status: status, context: threadCtx}, nil
		}
	case timeline.Search:
		op = "search"
		query := kind.Param
		run = func(ctx context.Context) (any, error) {
			results, err := api.Search(ctx, query, pageSize, 0)
			if err != nil {
				return nil, err
			}
			return searchPayload{results: results}, nil
		}
	default:
		path, params, ok := kind.APIPath()
		if !ok {
			return
		}
		op = "page"
		run = func(ctx context.Context) (any, error) {
			page, err := api.Timeline(ctx, path, params, pageSize, maxID)
			if err != nil {
				return nil, err
			}
			return pagePayload{page: page}, nil
		}
	}

	e.inflight[corrID] = inflight{
		session: s.id, kind: kind, op: op, refresh: refresh, maxID: maxID, retried: retried,
	}
	if !e.pool.Submit(dispatch.Job{CorrID: corrID, Label: kind.DisplayName(), Run: run}) {
		delete(e.inflight, corrID)
		if t, ok := s.timelines[kind]; ok {
			t.Loading = false
		}
	}
}

// submitOrRollback submits an entry-operation job. A refused submission
// (full or stopped queue) produces no result, so its bookkeeping must be
// undone here or the pending slot stays occupied forever.
func (e *Engine) submitOrRollback(job dispatch.Job, key pendingKey, hasPend bool, diff *Diff) bool {
	if e.pool.Submit(job) {
		return true
	}
	delete(e.inflight, job.CorrID)
	if hasPend {
		delete(e.pending, key)
	}
	if diff != nil {
		diff.notice(NoticeWarn, "busy, try %s again", job.Label)
	}
	return false
}

// schedulePost publishes a draft. The posted status is merged on return.
func (e *Engine) schedulePost(s *session, draft mastodon.StatusDraft, diff *Diff) {
	corrID := dispatch.NewCorrID()
	api := s.api
	e.inflight[corrID] = inflight{session: s.id, op: "post"}
	e.submitOrRollback(dispatch.Job{
		CorrID: corrID,
		Label:  "post",
		Run: func(ctx context.Context) (any, error) {
			status, err := api.PostStatus(ctx, draft)
			if err != nil {
				return nil, err
			}
			return statusPayload{status: status}, nil
		},
	}, pendingKey{}, false, diff)
}

// scheduleToggle flips favorite/boost/bookmark state. The direction is
// read from local state here, on the loop, so it cannot race a stream
// update of the same entry.
func (e *Engine) scheduleToggle(s *session, entryID, action string, diff *Diff) {
	key := pendingKey{session: s.id, entryID: entryID, action: action}
	entry, found := s.findEntry(entryID)
	if !found {
		delete(e.pending, key)
		diff.notice(NoticeWarn, "entry no longer present")
		return
	}

	api := s.api
	var call func(ctx context.Context, id string) (mastodon.Status, error)
	switch action {
	case "favorite":
		if entry.Favorited {
			call = api.Unfavourite
		} else {
			call = api.Favourite
		}
	case "boost":
		if entry.Boosted {
			call = api.Unreblog
		} else {
			call = api.Reblog
		}
	case "bookmark":
		if entry.Bookmarked {
			call = api.Unbookmark
		} else {
			call = api.Bookmark
		}
	default:
		delete(e.pending, key)
		return
	}

	// Boost wrappers act on the underlying status.
	targetID := entryID
	if entry.BoostOfID != "" {
		targetID = entry.BoostOfID
	}

	corrID := dispatch.NewCorrID()
	e.inflight[corrID] = inflight{
		session: s.id, op: "status", target: entryID, pending: key, hasPend: true,
	}
	e.submitOrRollback(dispatch.Job{
		CorrID: corrID,
		Label:  action,
		Run: func(ctx context.Context) (any, error) {
			status, err := call(ctx, targetID)
			if err != nil {
				return nil, err
			}
			return statusPayload{status: status}, nil
		},
	}, key, true, diff)
}

func (e *Engine) scheduleVote(s *session, cmd VotePoll, diff *Diff) {
	key := pendingKey{session: s.id, entryID: cmd.EntryID, action: "vote"}
	if _, found := s.findEntry(cmd.EntryID); !found {
		delete(e.pending, key)
		diff.notice(NoticeWarn, "entry no longer present")
		return
	}

	api := s.api
	corrID := dispatch.NewCorrID()
	e.inflight[corrID] = inflight{
		session: s.id, op: "vote", target: cmd.EntryID, pending: key, hasPend: true,
	}
	e.submitOrRollback(dispatch.Job{
		CorrID: corrID,
		Label:  "vote",
		Run: func(ctx context.Context) (any, error) {
			poll, err := api.VotePoll(ctx, cmd.PollID, cmd.Choices)
			if err != nil {
				return nil, err
			}
			return pollPayload{poll: poll}, nil
		},
	}, key, true, diff)
}

func (e *Engine) scheduleDelete(s *session, entryID string, diff *Diff) {
	key := pendingKey{session: s.id, entryID: entryID, action: "delete"}
	if _, found := s.findEntry(entryID); !found {
		delete(e.pending, key)
		return
	}

	api := s.api
	corrID := dispatch.NewCorrID()
	e.inflight[corrID] = inflight{
		session: s.id, op: "delete", target: entryID, pending: key, hasPend: true,
	}
	e.submitOrRollback(dispatch.Job{
		CorrID: corrID,
		Label:  "delete",
		Run: func(ctx context.Context) (any, error) {
			return nil, api.DeleteStatus(ctx, entryID)
		},
	}, key, true, diff)
}

func (e *Engine) verifyCredentials(s *session) {
	api := s.api
	corrID := dispatch.NewCorrID()
	e.inflight[corrID] = inflight{session: s.id, op: "verify"}
	e.submitOrRollback(dispatch.Job{
		CorrID: corrID,
		Label:  "verify credentials",
		Run: func(ctx context.Context) (any, error) {
			account, err := api.VerifyCredentials(ctx)
			if err != nil {
				return nil, err
			}
			return acctPayload{account: account}, nil
		},
	}, pendingKey{}, false, nil)
}

// fetchInstanceInfo asks the server for its metadata, mainly the status
// length limit the composer enforces.
func (e *Engine) fetchInstanceInfo(s *session) {
	api := s.api
	corrID := dispatch.NewCorrID()
	e.inflight[corrID] = inflight{session: s.id, op: "instance"}
	e.submitOrRollback(dispatch.Job{
		CorrID: corrID,
		Label:  "instance info",
		Run: func(ctx context.Context) (any, error) {
			info, err := api.InstanceInfo(ctx)
			if err != nil {
				return nil, err
			}
			return instancePayload{info: info}, nil
		},
	}, pendingKey{}, false, nil)
}

func (e *Engine) switchAccount(index int, diff *Diff) {
	if index < 0 || index >= len(e.cfg.Accounts) {
		diff.notice(NoticeWarn, "no such account")
		return
	}
	account := e.cfg.Accounts[index]
	s, err := e.activateSession(account, diff)
	if err != nil {
		diff.notice(NoticeError, "switch failed: %v", err)
		return
	}
	e.active = s.id
	e.cfg.ActiveAccount = index
	e.saveConfig(diff)
	diff.Layout = true
	logging.Info("active account switched", "account", account.Acct)
}

func (e *Engine) addAccount(cmd AddAccount, diff *Diff) {
	e.cfg.Accounts = append(e.cfg.Accounts, cmd.Account)
	e.switchAccount(len(e.cfg.Accounts)-1, diff)
}

// removeAccount tears down the session, its workers, and its cache rows.
func (e *Engine) removeAccount(index int, diff *Diff) {
	if index < 0 || index >= len(e.cfg.Accounts) {
		diff.notice(NoticeWarn, "no such account")
		return
	}
	account := e.cfg.Accounts[index]
	id := sessionID(account)

	if s, ok := e.sessions[id]; ok {
		for _, w := range s.workers {
			w.Stop(stopTimeout)
		}
		delete(e.sessions, id)
	}
	if e.store != nil {
		if err := e.store.ClearSession(id); err != nil {
			logging.Warn("cache clear failed", "instance", account.Instance, "err", err)
		}
	}

	e.cfg.Accounts = append(e.cfg.Accounts[:index], e.cfg.Accounts[index+1:]...)
	if e.cfg.ActiveAccount >= len(e.cfg.Accounts) {
		e.cfg.ActiveAccount = 0
	}
	diff.Layout = true

	if id == e.active {
		e.active = ""
		if next := e.cfg.Active(); next != nil {
			e.switchAccount(e.cfg.ActiveAccount, diff)
			return
		}
	}
	e.saveConfig(diff)
}

func (e *Engine) saveConfig(diff *Diff) {
	if err := e.cfg.Save(); err != nil {
		logging.Error("config save failed", "err", err)
		diff.notice(NoticeError, "could not save config: %v", err)
	}
}

// streamKey collapses timelines that share one subscription ("user"
// serves both Home and Notifications) onto one worker.
func streamKey(kind timeline.Kind) (string, bool) {
	name, ok := kind.StreamName()
	if !ok {
		return "", false
	}
	if kind.Category == timeline.Hashtag {
		return name + "|" + kind.Param, true
	}
	return name, true
}

// ensureStream starts the worker for a timeline's subscription if it is
// not already running.
func (e *Engine) ensureStream(s *session, kind timeline.Kind) {
	key, ok := streamKey(kind)
	if !ok {
		return
	}
	if _, running := s.workers[key]; running {
		return
	}
	name, _ := kind.StreamName()
	tag := ""
	if kind.Category == timeline.Hashtag {
		tag = kind.Param
	}
	desc := stream.Descriptor{Session: s.id, Kind: kind}
	dialer := e.newDialer(s.api.StreamURL(name, tag))
	s.workers[key] = stream.Start(e.ctx, desc, dialer, e.events)
	logging.Debug("stream started", "instance", s.account.Instance, "stream", key)
}

// dropStreamIfUnused stops the worker for a closed timeline unless some
// other open timeline still shares the subscription.
func (e *Engine) dropStreamIfUnused(s *session, kind timeline.Kind) {
	key, ok := streamKey(kind)
	if !ok {
		return
	}
	for other := range s.timelines {
		if otherKey, ok := streamKey(other); ok && otherKey == key {
			return
		}
	}
	if w, running := s.workers[key]; running {
		w.Stop(stopTimeout)
		delete(s.workers, key)
		logging.Debug("stream stopped", "instance", s.account.Instance, "stream", key)
	}
}
