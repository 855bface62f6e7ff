// Package engine is the synchronization loop: the single owner of all
// timeline state. Commands arrive on a bounded queue, background workers
// deliver results and stream events on channels, and Tick folds both into
// the state store, returning a diff for the renderer. Nothing outside
// this package mutates a timeline.
package engine

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/mkordell/murmur/internal/cache"
	"github.com/mkordell/murmur/internal/config"
	"github.com/mkordell/murmur/internal/dispatch"
	"github.com/mkordell/murmur/internal/logging"
	"github.com/mkordell/murmur/internal/mastodon"
	"github.com/mkordell/murmur/internal/stream"
	"github.com/mkordell/murmur/internal/timeline"
)

const (
	commandQueueSize    = 64
	resultQueueSize     = 256
	commandsPerTick     = 32
	cacheKeep           = 200
	stopTimeout         = 3 * time.Second
	defaultMaxPostChars = 500
)

// API is the slice of the Mastodon client the engine drives. Satisfied by
// *mastodon.Client; tests substitute a mock.
type API interface {
	Timeline(ctx context.Context, path string, params url.Values, limit int, maxID string) (mastodon.Page, error)
	Notifications(ctx context.Context, limit int, maxID string) ([]mastodon.Notification, string, error)
	GetStatus(ctx context.Context, id string) (mastodon.Status, error)
	GetContext(ctx context.Context, id string) (mastodon.Context, error)
	PostStatus(ctx context.Context, draft mastodon.StatusDraft) (mastodon.Status, error)
	DeleteStatus(ctx context.Context, id string) error
	Favourite(ctx context.Context, id string) (mastodon.Status, error)
	Unfavourite(ctx context.Context, id string) (mastodon.Status, error)
	Reblog(ctx context.Context, id string) (mastodon.Status, error)
	Unreblog(ctx context.Context, id string) (mastodon.Status, error)
	Bookmark(ctx context.Context, id string) (mastodon.Status, error)
	Unbookmark(ctx context.Context, id string) (mastodon.Status, error)
	VotePoll(ctx context.Context, pollID string, choices []int) (mastodon.Poll, error)
	Search(ctx context.Context, query string, limit, offset int) (mastodon.SearchResults, error)
	VerifyCredentials(ctx context.Context) (mastodon.Account, error)
	InstanceInfo(ctx context.Context) (mastodon.Instance, error)
	StreamURL(stream, tag string) string
}

// Options tune the engine. Zero values select defaults; the factory
// fields exist so tests can swap the network edges out.
type Options struct {
	Workers   int
	PageSize  int
	NewAPI    func(instance, token string) (API, error)
	NewDialer func(url string) stream.Dialer
}

// NoticeLevel grades a user-facing notice.
type NoticeLevel int

const (
	NoticeInfo NoticeLevel = iota
	NoticeWarn
	NoticeError
)

// Notice is a transient message for the user: a failed action, a posted
// status, a degraded stream.
type Notice struct {
	Level NoticeLevel
	Text  string
}

// Diff tells the renderer what changed during one tick. Changed holds
// timelines of the active session with new, updated, or removed entries
// or stream-status transitions. Layout means timelines opened or closed
// or the active account switched.
type Diff struct {
	Changed map[timeline.Kind]struct{}
	Layout  bool
	Notices []Notice
}

// Empty reports whether the diff requires no redraw.
func (d Diff) Empty() bool {
	return len(d.Changed) == 0 && !d.Layout && len(d.Notices) == 0
}

func (d *Diff) mark(kind timeline.Kind) {
	if d.Changed == nil {
		d.Changed = make(map[timeline.Kind]struct{})
	}
	d.Changed[kind] = struct{}{}
}

func (d *Diff) notice(level NoticeLevel, format string, args ...any) {
	d.Notices = append(d.Notices, Notice{Level: level, Text: fmt.Sprintf(format, args...)})
}

// inflight records what an outstanding fetch was for, so its result can
// be routed or discarded when it lands.
type inflight struct {
	session string
	kind    timeline.Kind
	op      string
	target  string     // entry id for entry operations
	pending pendingKey // cleared when the result lands
	hasPend bool
	refresh bool   // page fetch replacing the newest page, not appending
	maxID   string // cursor the fetch was issued with
	retried bool   // transient GET failures are retried once, no more
}

// session is one account's live state: its API client, open timelines,
// and stream workers. Sessions survive account switches; only RemoveAccount
// tears one down.
type session struct {
	id           string
	account      config.Account
	api          API
	order        []timeline.Kind
	timelines    map[timeline.Kind]*timeline.Timeline
	workers      map[string]*stream.Worker // keyed by stream name + tag
	maxPostChars int                       // server-reported status length limit
}

func (s *session) timeline(kind timeline.Kind) (*timeline.Timeline, bool) {
	t, ok := s.timelines[kind]
	return t, ok
}

// findEntry locates an entry by id in any open timeline of the session.
func (s *session) findEntry(id string) (timeline.Entry, bool) {
	for _, t := range s.timelines {
		if e, ok := t.Get(id); ok {
			return e, true
		}
	}
	return timeline.Entry{}, false
}

// Engine owns every session. All methods must be called from one
// goroutine (the UI event loop); the channels are the only crossing
// points for background work.
type Engine struct {
	cfg   *config.Config
	store *cache.Cache

	pool     *dispatch.Pool
	results  chan dispatch.Result
	events   chan stream.Event
	commands chan Command

	sessions map[string]*session
	active   string

	pending  map[pendingKey]struct{}
	inflight map[string]inflight

	pageSize  int
	newAPI    func(instance, token string) (API, error)
	newDialer func(url string) stream.Dialer

	ctx    context.Context
	cancel context.CancelFunc
	closed bool
}

// New wires an engine over the given config and cache. Call Start before
// the first Tick.
func New(cfg *config.Config, store *cache.Cache, opts Options) *Engine {
	if opts.PageSize <= 0 {
		opts.PageSize = cfg.UI.PageSize
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 40
	}
	if opts.NewAPI == nil {
		opts.NewAPI = func(instance, token string) (API, error) {
			return mastodon.NewClient(instance, token)
		}
	}
	if opts.NewDialer == nil {
		opts.NewDialer = func(url string) stream.Dialer {
			return stream.WebsocketDialer{URL: url}
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		cfg:       cfg,
		store:     store,
		results:   make(chan dispatch.Result, resultQueueSize),
		events:    make(chan stream.Event, resultQueueSize),
		commands:  make(chan Command, commandQueueSize),
		sessions:  make(map[string]*session),
		pending:   make(map[pendingKey]struct{}),
		inflight:  make(map[string]inflight),
		pageSize:  opts.PageSize,
		newAPI:    opts.NewAPI,
		newDialer: opts.NewDialer,
		ctx:       ctx,
		cancel:    cancel,
	}
	e.pool = dispatch.NewPool(ctx, opts.Workers, e.results)
	return e
}

// Start activates the configured active account: builds its session,
// opens the startup timelines, and begins streaming. Returns the first
// diff so the UI can render cached state immediately.
func (e *Engine) Start() (Diff, error) {
	var diff Diff
	account := e.cfg.Active()
	if account == nil {
		return diff, fmt.Errorf("no account configured")
	}
	s, err := e.activateSession(*account, &diff)
	if err != nil {
		return diff, err
	}
	e.active = s.id
	diff.Layout = true
	return diff, nil
}

// Submit enqueues a command. Entry operations are deduplicated here, at
// the queue boundary, so a double-tap never produces two requests.
func (e *Engine) Submit(cmd Command) error {
	if e.closed {
		return ErrShutdown
	}
	if key, ok := pendingFor(e.active, cmd); ok {
		if _, dup := e.pending[key]; dup {
			return ErrDuplicatePending
		}
		e.pending[key] = struct{}{}
	}
	select {
	case e.commands <- cmd:
		return nil
	default:
		if key, ok := pendingFor(e.active, cmd); ok {
			delete(e.pending, key)
		}
		return ErrQueueFull
	}
}

// Tick runs one iteration of the synchronization loop: a bounded batch of
// commands, then every queued result and stream event. Never blocks.
func (e *Engine) Tick() Diff {
	var diff Diff

	for i := 0; i < commandsPerTick; i++ {
		select {
		case cmd := <-e.commands:
			e.apply(cmd, &diff)
		default:
			i = commandsPerTick
		}
	}

	for drained := false; !drained; {
		select {
		case result := <-e.results:
			e.applyResult(result, &diff)
		case event := <-e.events:
			e.applyEvent(event, &diff)
		default:
			drained = true
		}
	}
	return diff
}

// Shutdown stops workers and the pool and closes the cache. Safe to call
// once, from the same goroutine as Tick.
func (e *Engine) Shutdown() {
	if e.closed {
		return
	}
	e.closed = true
	e.cancel()
	for _, s := range e.sessions {
		for _, w := range s.workers {
			w.Stop(stopTimeout)
		}
	}
	e.pool.Shutdown(stopTimeout)
	if e.store != nil {
		e.store.Close()
	}
}

// OldestFirst reports the configured display-order preference. Storage
// order is always newest first; this only affects rendering.
func (e *Engine) OldestFirst() bool { return e.cfg.UI.OldestFirst }

// Accounts returns the configured accounts in order.
func (e *Engine) Accounts() []config.Account {
	out := make([]config.Account, len(e.cfg.Accounts))
	copy(out, e.cfg.Accounts)
	return out
}

// ActiveAccount returns the account whose timelines are rendered.
func (e *Engine) ActiveAccount() config.Account {
	if s, ok := e.sessions[e.active]; ok {
		return s.account
	}
	return config.Account{}
}

// OpenKinds returns the active session's timelines in open order.
func (e *Engine) OpenKinds() []timeline.Kind {
	s, ok := e.sessions[e.active]
	if !ok {
		return nil
	}
	out := make([]timeline.Kind, len(s.order))
	copy(out, s.order)
	return out
}

// Timeline returns the active session's timeline of the given kind. The
// caller must not retain it across ticks.
func (e *Engine) Timeline(kind timeline.Kind) (*timeline.Timeline, bool) {
	s, ok := e.sessions[e.active]
	if !ok {
		return nil, false
	}
	return s.timeline(kind)
}

// MaxPostChars returns the active server's status length limit, falling
// back to the Mastodon default until instance metadata arrives.
func (e *Engine) MaxPostChars() int {
	if s, ok := e.sessions[e.active]; ok && s.maxPostChars > 0 {
		return s.maxPostChars
	}
	return defaultMaxPostChars
}

// sessionID keys a session by fields that never change after login.
// The acct handle is refined by credential verification, so it cannot
// participate: a key that shifts mid-session would fork a duplicate
// session (and duplicate stream connections) on the next switch.
func sessionID(account config.Account) string {
	return account.Instance + "|" + account.AccessToken
}

// activateSession returns the live session for the account, creating it
// with the startup timelines on first use.
func (e *Engine) activateSession(account config.Account, diff *Diff) (*session, error) {
	id := sessionID(account)
	if s, ok := e.sessions[id]; ok {
		return s, nil
	}

	api, err := e.newAPI(account.Instance, account.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("client for %s: %w", account.Instance, err)
	}
	s := &session{
		id:        id,
		account:   account,
		api:       api,
		timelines: make(map[timeline.Kind]*timeline.Timeline),
		workers:   make(map[string]*stream.Worker),
	}
	e.sessions[id] = s

	logging.Info("session started", "account", account.Acct, "instance", account.Instance)

	for _, category := range []timeline.Category{timeline.Home, timeline.Notifications, timeline.Local} {
		e.openTimeline(s, timeline.Kind{Category: category}, diff)
	}
	e.verifyCredentials(s)
	e.fetchInstanceInfo(s)
	return s, nil
}
