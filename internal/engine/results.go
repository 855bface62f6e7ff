package engine

import (
	"github.com/mkordell/murmur/internal/dispatch"
	"github.com/mkordell/murmur/internal/logging"
	"github.com/mkordell/murmur/internal/mastodon"
	"github.com/mkordell/murmur/internal/stream"
	"github.com/mkordell/murmur/internal/timeline"
)

// applyResult folds one completed fetch into the state store. Results
// whose correlation id is unknown, or whose session or timeline has been
// closed since the request was issued, are discarded without effect.
func (e *Engine) applyResult(result dispatch.Result, diff *Diff) {
	req, known := e.inflight[result.CorrID]
	if !known {
		logging.Debug("discarding orphaned result", "corr_id", result.CorrID)
		return
	}
	delete(e.inflight, result.CorrID)
	if req.hasPend {
		delete(e.pending, req.pending)
	}

	s, ok := e.sessions[req.session]
	if !ok {
		return
	}

	if result.Err != nil {
		e.applyFailure(s, req, result, diff)
		return
	}

	switch req.op {
	case "page":
		payload := result.Payload.(pagePayload)
		e.applyPage(s, req, timeline.FromStatuses(payload.page.Statuses), payload.page.NextMaxID, diff)
	case "notifications":
		payload := result.Payload.(notifsPayload)
		e.applyPage(s, req, timeline.FromNotifications(payload.items), payload.next, diff)
	case "thread":
		payload := result.Payload.(threadPayload)
		entries := timeline.FromStatuses(payload.context.Ancestors)
		entries = append(entries, timeline.FromStatus(payload.status))
		entries = append(entries, timeline.FromStatuses(payload.context.Descendants)...)
		e.applyWhole(s, req, entries, diff)
	case "search":
		payload := result.Payload.(searchPayload)
		e.applyWhole(s, req, timeline.FromStatuses(payload.results.Statuses), diff)
	case "status":
		payload := result.Payload.(statusPayload)
		e.applyStatusUpdate(s, payload.status, diff)
	case "vote":
		payload := result.Payload.(pollPayload)
		e.applyPollUpdate(s, payload.poll, diff)
	case "post":
		payload := result.Payload.(statusPayload)
		e.applyPosted(s, payload.status, diff)
	case "delete":
		e.applyDeleted(s, req.target, diff)
	case "verify":
		payload := result.Payload.(acctPayload)
		e.applyVerified(s, payload.account, diff)
	case "instance":
		payload := result.Payload.(instancePayload)
		e.applyInstance(s, payload.info)
	}
}

// isFetchOp reports whether an operation is an idempotent timeline GET.
func isFetchOp(op string) bool {
	switch op {
	case "page", "notifications", "thread", "search":
		return true
	}
	return false
}

// applyFailure surfaces a failed request. A transient failure of an
// idempotent GET gets one automatic retry under a fresh correlation id;
// mutations are never retried automatically. Page fetches clear the
// loading flag so the timeline can be retried by hand; entry operations
// just notify, the local state never changed.
func (e *Engine) applyFailure(s *session, req inflight, result dispatch.Result, diff *Diff) {
	if isFetchOp(req.op) && !req.retried && result.Failure.Retryable() {
		if _, open := s.timelines[req.kind]; open {
			logging.Debug("retrying transient fetch failure",
				"instance", s.account.Instance, "timeline", req.kind.DisplayName(), "err", result.Err)
			e.submitFetch(s, req.kind, req.maxID, req.refresh, true)
			return
		}
	}

	// Instance metadata is a nicety; the composer falls back to the
	// default limit, so a failure is not worth a notice.
	if req.op == "instance" {
		logging.Debug("instance info fetch failed",
			"instance", s.account.Instance, "err", result.Err)
		return
	}

	if t, ok := s.timelines[req.kind]; ok && isFetchOp(req.op) {
		t.Loading = false
		if s.id == e.active {
			diff.mark(req.kind)
		}
	}

	level := NoticeWarn
	if result.Failure == mastodon.FailureAuth {
		level = NoticeError
	}
	if s.id == e.active {
		diff.notice(level, "%s", result.Err.Error())
	}
	logging.Warn("request failed",
		"instance", s.account.Instance, "op", req.op, "kind", string(result.Failure), "err", result.Err)
}

// applyPage merges one fetched page into its timeline and advances the
// pagination cursor.
func (e *Engine) applyPage(s *session, req inflight, entries []timeline.Entry, next string, diff *Diff) {
	t, ok := s.timelines[req.kind]
	if !ok {
		return // closed while the fetch was in flight
	}
	t.Loading = false
	t.MergeAll(entries)

	if req.refresh {
		t.Stale = false
		if t.NextMaxID == "" {
			t.NextMaxID = next
		}
	} else {
		t.NextMaxID = next
		if len(entries) == 0 || next == "" {
			t.EndReached = true
		}
	}

	e.persist(s, t)
	if s.id == e.active {
		diff.mark(req.kind)
	}
}

// applyWhole replaces thread and search timelines, which arrive complete
// rather than paged.
func (e *Engine) applyWhole(s *session, req inflight, entries []timeline.Entry, diff *Diff) {
	t, ok := s.timelines[req.kind]
	if !ok {
		return
	}
	t.Loading = false
	t.Stale = false
	t.EndReached = true
	t.MergeAll(entries)
	if s.id == e.active {
		diff.mark(req.kind)
	}
}

// applyStatusUpdate propagates an authoritative status, for example the
// response to a favorite, to every entry that renders it: the status
// itself and any boost wrapper of it.
func (e *Engine) applyStatusUpdate(s *session, status mastodon.Status, diff *Diff) {
	converted := timeline.FromStatus(status)
	for kind, t := range s.timelines {
		changed := false
		if _, ok := t.Get(status.ID); ok {
			if _, updated := t.Merge(converted); updated {
				changed = true
			}
		}
		for _, entry := range t.Entries() {
			if entry.BoostOfID != status.ID {
				continue
			}
			update := entry
			update.Content = converted.Content
			update.SpoilerText = converted.SpoilerText
			update.Replies = converted.Replies
			update.Boosts = converted.Boosts
			update.Favorites = converted.Favorites
			update.Favorited = converted.Favorited
			update.Boosted = converted.Boosted
			update.Bookmarked = converted.Bookmarked
			update.Poll = converted.Poll
			if _, updated := t.Merge(update); updated {
				changed = true
			}
		}
		if changed {
			e.persist(s, t)
			if s.id == e.active {
				diff.mark(kind)
			}
		}
	}
}

// applyPollUpdate folds fresh poll state into every entry carrying it.
func (e *Engine) applyPollUpdate(s *session, poll mastodon.Poll, diff *Diff) {
	for kind, t := range s.timelines {
		changed := false
		for _, entry := range t.Entries() {
			if entry.Poll == nil || entry.Poll.ID != poll.ID {
				continue
			}
			update := entry
			update.Poll = pollToSummary(poll)
			if _, updated := t.Merge(update); updated {
				changed = true
			}
		}
		if changed {
			e.persist(s, t)
			if s.id == e.active {
				diff.mark(kind)
			}
		}
	}
}

func pollToSummary(p mastodon.Poll) *timeline.PollSummary {
	summary := &timeline.PollSummary{
		ID:       p.ID,
		Expired:  p.Expired,
		Multiple: p.Multiple,
		Votes:    p.VotesCount,
		Voted:    p.Voted,
	}
	for _, opt := range p.Options {
		choice := timeline.PollChoice{Title: opt.Title}
		if opt.VotesCount != nil {
			choice.Votes = *opt.VotesCount
		}
		summary.Options = append(summary.Options, choice)
	}
	return summary
}

// applyPosted merges the user's fresh status into Home so it shows up
// before the stream echoes it back.
func (e *Engine) applyPosted(s *session, status mastodon.Status, diff *Diff) {
	home := timeline.Kind{Category: timeline.Home}
	if t, ok := s.timelines[home]; ok {
		t.Merge(timeline.FromStatus(status))
		e.persist(s, t)
		if s.id == e.active {
			diff.mark(home)
		}
	}
	if s.id == e.active {
		diff.notice(NoticeInfo, "posted")
	}
}

// applyDeleted removes an entry everywhere after the server confirmed the
// delete.
func (e *Engine) applyDeleted(s *session, id string, diff *Diff) {
	for kind, t := range s.timelines {
		if t.Remove(id) && s.id == e.active {
			diff.mark(kind)
		}
	}
	if e.store != nil {
		if err := e.store.DeleteEntry(s.id, id); err != nil {
			logging.Warn("cache delete failed", "id", id, "err", err)
		}
	}
	if s.id == e.active {
		diff.notice(NoticeInfo, "deleted")
	}
}

// applyVerified records the account's identity from the server and keeps
// the config copy in sync.
func (e *Engine) applyVerified(s *session, account mastodon.Account, diff *Diff) {
	s.account.Acct = account.Acct
	s.account.DisplayName = account.Name()
	s.account.UserID = account.ID
	for i := range e.cfg.Accounts {
		if sessionID(e.cfg.Accounts[i]) == s.id {
			e.cfg.Accounts[i].Acct = account.Acct
			e.cfg.Accounts[i].DisplayName = account.Name()
			e.cfg.Accounts[i].UserID = account.ID
		}
	}
	e.saveConfig(diff)
	if s.id == e.active {
		diff.Layout = true
	}
}

// applyInstance records server limits the composer consults.
func (e *Engine) applyInstance(s *session, info mastodon.Instance) {
	if limit := info.Configuration.Statuses.MaxCharacters; limit > 0 {
		s.maxPostChars = limit
	}
}

// applyEvent folds one stream event into the state store. Events for
// sessions or timelines that no longer exist are dropped.
func (e *Engine) applyEvent(event stream.Event, diff *Diff) {
	desc := event.StreamDescriptor()
	s, ok := e.sessions[desc.Session]
	if !ok {
		return
	}

	switch ev := event.(type) {
	case stream.StatusChanged:
		e.applyStreamStatus(s, ev, diff)
	case stream.EntryReceived:
		e.applyStreamEntry(s, desc.Kind, ev.Status, diff)
	case stream.EntryEdited:
		e.applyStatusUpdate(s, ev.Status, diff)
	case stream.EntryDeleted:
		e.applyDeletedQuiet(s, ev.ID, diff)
	case stream.NotificationReceived:
		e.applyStreamNotification(s, ev.Notification, diff)
	}
}

// applyStreamStatus updates the stream indicator of every timeline that
// shares the reporting worker's subscription.
func (e *Engine) applyStreamStatus(s *session, ev stream.StatusChanged, diff *Diff) {
	evKey, ok := streamKey(ev.Desc.Kind)
	if !ok {
		return
	}
	for kind, t := range s.timelines {
		key, ok := streamKey(kind)
		if !ok || key != evKey {
			continue
		}
		t.Stream = timeline.StreamStatus{
			State:     ev.State,
			Attempt:   ev.Attempt,
			NextRetry: ev.NextRetry,
			LastError: ev.Err,
		}
		if s.id == e.active {
			diff.mark(kind)
		}
	}
}

func (e *Engine) applyStreamEntry(s *session, kind timeline.Kind, status mastodon.Status, diff *Diff) {
	t, ok := s.timelines[kind]
	if !ok {
		return
	}
	entry := timeline.FromStatus(status)
	added, updated := t.Merge(entry)
	if added || updated {
		e.persist(s, t)
		if s.id == e.active {
			diff.mark(kind)
		}
	}
}

// applyDeletedQuiet handles server-initiated deletes, which remove the
// entry everywhere without a notice.
func (e *Engine) applyDeletedQuiet(s *session, id string, diff *Diff) {
	for kind, t := range s.timelines {
		if t.Remove(id) && s.id == e.active {
			diff.mark(kind)
		}
	}
	if e.store != nil {
		if err := e.store.DeleteEntry(s.id, id); err != nil {
			logging.Warn("cache delete failed", "id", id, "err", err)
		}
	}
}

func (e *Engine) applyStreamNotification(s *session, n mastodon.Notification, diff *Diff) {
	kind := timeline.Kind{Category: timeline.Notifications}
	t, ok := s.timelines[kind]
	if !ok {
		return
	}
	t.Merge(timeline.FromNotification(n))
	e.persist(s, t)
	if s.id == e.active {
		diff.mark(kind)
	}
}

// persist writes a timeline's current entries through to the cache and
// keeps the cached window bounded.
func (e *Engine) persist(s *session, t *timeline.Timeline) {
	if e.store == nil || !t.Kind.Paged() {
		return
	}
	if err := e.store.SaveEntries(s.id, t.Kind, t.Entries()); err != nil {
		logging.Warn("cache save failed", "timeline", t.Kind.DisplayName(), "err", err)
		return
	}
	if err := e.store.Trim(s.id, t.Kind, cacheKeep); err != nil {
		logging.Warn("cache trim failed", "timeline", t.Kind.DisplayName(), "err", err)
	}
}
