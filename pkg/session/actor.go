package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/txn2/live-search/pkg/analysis"
	"github.com/txn2/live-search/pkg/audit"
	"github.com/txn2/live-search/pkg/dedup"
	"github.com/txn2/live-search/pkg/history"
	"github.com/txn2/live-search/pkg/resultcache"
	"github.com/txn2/live-search/pkg/search"
)

// ErrClosed is returned by Receive after the actor has stopped.
var ErrClosed = errors.New("session closed")

// Client-visible messages.
const (
	msgInvalid     = "Invalid message"
	msgStopped     = "stopped"
	msgSlow        = "Search provider is slow to respond, will retry on the next update"
	msgConnection  = "Could not reach the search provider, search stopped"
	msgRateLimited = "Too many requests to the search provider, live updates paused"
	msgFailedFmt   = "Search failed: "
)

// Mailbox messages other than Inbound.
type (
	inboundFrame struct{ data []byte }

	updateCheck struct{ gen uint64 }

	lookupDone struct {
		gen      uint64
		kind     audit.Kind
		resp     *search.Response
		hit      bool
		err      error
		duration time.Duration
	}

	analysisDone struct {
		gen    uint64
		batch  uint64
		result analysis.Result
	}
)

// Actor serves one client connection.
type Actor struct {
	id     string
	userID string
	cfg    Config
	deps   Deps
	logger *slog.Logger

	mailbox chan any
	done    chan struct{}
	wg      sync.WaitGroup

	// Owned by the Run goroutine.
	ctx          context.Context
	state        State
	query        string
	sortBy       search.SortBy
	gen          uint64
	seen         *dedup.Set
	known        []search.Article
	batch        uint64
	delivered    map[analysis.Kind]uint64
	handle       Handle
	pollInFlight bool
	searchCtx    context.Context
	cancelSearch context.CancelFunc

	infoMu sync.Mutex
	info   Info
}

// New creates an actor for session id. userID may be empty.
func New(id, userID string, deps Deps, cfg Config) *Actor {
	cfg = cfg.withDefaults()
	if deps.Scheduler == nil {
		deps.Scheduler = TickerScheduler{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	return &Actor{
		id:      id,
		userID:  userID,
		cfg:     cfg,
		deps:    deps,
		logger:  deps.Logger.With("component", "session", slogKeySessionID, id),
		mailbox: make(chan any, cfg.MailboxSize),
		done:    make(chan struct{}),
		state:   StateIdle,
		seen:    dedup.New(cfg.DedupCapacity),

		delivered: make(map[analysis.Kind]uint64),
		info: Info{
			ID:        id,
			UserID:    userID,
			State:     StateIdle,
			CreatedAt: deps.Now(),
		},
	}
}

// ID returns the session id.
func (a *Actor) ID() string { return a.id }

// Info returns a snapshot of the session.
func (a *Actor) Info() Info {
	a.infoMu.Lock()
	defer a.infoMu.Unlock()
	return a.info
}

// Receive queues a raw client frame. It blocks while the mailbox is full and
// returns ErrClosed once the actor has stopped.
func (a *Actor) Receive(data []byte) error {
	select {
	case a.mailbox <- inboundFrame{data: data}:
		return nil
	case <-a.done:
		return ErrClosed
	}
}

// Run processes the mailbox until ctx is cancelled. On return the poll
// schedule is cancelled and every in-flight lookup and analysis has exited.
func (a *Actor) Run(ctx context.Context) {
	a.ctx = ctx
	defer a.shutdown()

	for {
		select {
		case <-ctx.Done():
			return
		case m := <-a.mailbox:
			a.process(m)
		}
	}
}

func (a *Actor) shutdown() {
	close(a.done)
	a.disarm()
	if a.cancelSearch != nil {
		a.cancelSearch()
	}
	a.wg.Wait()
	a.logger.Debug("session: stopped")
}

// post delivers an async completion, giving up once the actor has stopped.
func (a *Actor) post(m any) {
	select {
	case a.mailbox <- m:
	case <-a.done:
	}
}

// tryPost delivers without blocking. A dropped tick is retried by the next.
func (a *Actor) tryPost(m any) {
	select {
	case <-a.done:
	case a.mailbox <- m:
	default:
	}
}

func (a *Actor) process(m any) {
	switch m := m.(type) {
	case inboundFrame:
		a.handleFrame(m.data)
	case updateCheck:
		a.handleUpdateCheck(m)
	case lookupDone:
		a.handleLookup(m)
	case analysisDone:
		a.handleAnalysis(m)
	}
}

func (a *Actor) handleFrame(data []byte) {
	msg, err := DecodeInbound(data)
	if err != nil {
		a.logger.Debug("session: rejected message", slogKeyError, err)
		a.send(newError(msgInvalid))
		return
	}

	switch msg := msg.(type) {
	case StartSearch:
		a.startSearch(msg)
	case StopSearch:
		a.stopSearch()
		a.send(newStatus(msgStopped))
	case GetHistory:
		a.send(newHistory(a.deps.History.List(a.id)))
	case Ping:
		a.send(newPong())
	}
}

func (a *Actor) startSearch(msg StartSearch) {
	a.disarm()
	if a.cancelSearch != nil {
		a.cancelSearch()
	}

	a.gen++
	a.query = msg.Query
	a.sortBy = msg.SortBy
	a.seen.Reset()
	a.known = nil
	a.pollInFlight = false
	a.setState(StateSearching)

	ctx, cancel := context.WithCancel(a.ctx)
	a.searchCtx, a.cancelSearch = ctx, cancel

	req := a.request()
	gen := a.gen
	a.logger.Info("session: search started", "query", req.Query, "sort_by", string(req.SortBy))

	a.goAsync(func() {
		start := time.Now()
		resp, hit, err := a.deps.Cache.Fetch(ctx, a.deps.Provider, req)
		a.post(lookupDone{gen: gen, kind: audit.KindInitial, resp: resp, hit: hit, err: err, duration: time.Since(start)})
	})
}

// stopSearch cancels polling and returns to idle. In-flight analyses of the
// delivered batch still complete.
func (a *Actor) stopSearch() {
	a.disarm()
	a.setState(StateIdle)
}

func (a *Actor) handleUpdateCheck(m updateCheck) {
	if m.gen != a.gen || a.state != StateSearching || a.handle == nil || a.handle.Cancelled() {
		return
	}
	if a.pollInFlight {
		return
	}
	a.pollInFlight = true

	ctx := a.searchCtx
	req := a.request()
	gen := a.gen
	a.goAsync(func() {
		start := time.Now()
		resp, err := a.deps.Provider.Search(ctx, req)
		a.post(lookupDone{gen: gen, kind: audit.KindPoll, resp: resp, err: err, duration: time.Since(start)})
	})
}

func (a *Actor) handleLookup(m lookupDone) {
	if m.gen != a.gen {
		return
	}
	if m.kind == audit.KindPoll {
		a.pollInFlight = false
	}

	newCount := 0
	defer func() { a.record(m, newCount) }()

	if a.state != StateSearching {
		return
	}

	if m.err != nil {
		stop := a.handleProviderError(m.err)
		if stop || m.kind == audit.KindInitial {
			a.stopSearch()
		}
		return
	}

	if m.kind == audit.KindInitial {
		newCount = a.deliverInitial(m.resp)
		return
	}
	newCount = a.deliverPoll(m.resp)
}

func (a *Actor) deliverInitial(resp *search.Response) int {
	if resp == nil {
		resp = &search.Response{}
	}
	for i := range resp.Articles {
		a.seen.Add(resp.Articles[i].Key())
	}
	a.remember(resp.Articles)

	now := a.deps.Now()
	a.send(newInitialResults(a.query, a.sortBy, resp, now))

	a.deps.History.Push(a.id, history.NewEntry(a.query, a.sortBy, resp, now))
	a.send(newHistory(a.deps.History.List(a.id)))

	a.dispatch(resp.Articles, nil)

	gen := a.gen
	a.handle = a.deps.Scheduler.Schedule(a.cfg.PollInterval, func() {
		a.tryPost(updateCheck{gen: gen})
	})
	return len(resp.Articles)
}

func (a *Actor) deliverPoll(resp *search.Response) int {
	a.deps.Cache.Put(resultcache.KeyFor(a.request()), resp)
	if resp.Empty() {
		return 0
	}

	fresh := make([]search.Article, 0, len(resp.Articles))
	for i := range resp.Articles {
		if a.seen.Add(resp.Articles[i].Key()) {
			fresh = append(fresh, resp.Articles[i])
		}
	}
	if len(fresh) == 0 {
		return 0
	}

	a.remember(fresh)
	a.send(newAppend(fresh))
	if a.deps.Recorder != nil {
		a.deps.Recorder.ArticlesAppended(len(fresh))
	}

	known := make([]search.Article, len(a.known))
	copy(known, a.known)
	a.dispatch(known, []analysis.Kind{analysis.KindReadability, analysis.KindSentiment})
	return len(fresh)
}

// handleProviderError tells the client about a failed lookup and reports
// whether the search must stop.
func (a *Actor) handleProviderError(err error) bool {
	kind := search.Classify(err)
	a.logger.Warn("session: provider lookup failed", "class", kind.String(), slogKeyError, err)

	switch kind {
	case search.KindTimeout:
		a.send(newStatus(msgSlow))
		return false
	case search.KindConnection:
		a.send(newError(msgConnection))
		return true
	case search.KindRateLimited:
		a.send(newError(msgRateLimited))
		return true
	default:
		a.send(newError(msgFailedFmt + providerMessage(err)))
		return search.IsPermanent(err)
	}
}

func providerMessage(err error) string {
	var pe *search.ProviderError
	if errors.As(err, &pe) && pe.Message != "" {
		return pe.Message
	}
	return err.Error()
}

// dispatch runs analyses over articles and posts each result back into the
// mailbox tagged with the current generation and a new batch number.
func (a *Actor) dispatch(articles []search.Article, only []analysis.Kind) {
	if a.deps.Analysis == nil {
		return
	}
	in := analysis.Input{Query: a.query, Articles: articles}
	a.batch++
	gen, batch := a.gen, a.batch
	ctx := a.searchCtx
	a.goAsync(func() {
		a.deps.Analysis.Dispatch(ctx, in, only, func(r analysis.Result) {
			a.post(analysisDone{gen: gen, batch: batch, result: r})
		})
	})
}

// handleAnalysis pushes a result of the current search unless a newer batch
// of the same kind was already pushed.
func (a *Actor) handleAnalysis(m analysisDone) {
	if m.gen != a.gen || m.batch < a.delivered[m.result.Kind] {
		return
	}
	a.delivered[m.result.Kind] = m.batch
	a.send(AnalysisResult{Kind: m.result.Kind, Payload: m.result.Payload})
}

// remember appends articles to the accumulated set, keeping the newest
// DedupCapacity.
func (a *Actor) remember(articles []search.Article) {
	a.known = append(a.known, articles...)
	if over := len(a.known) - a.cfg.DedupCapacity; over > 0 {
		a.known = append([]search.Article(nil), a.known[over:]...)
	}
}

// disarm cancels the poll schedule if one is armed.
func (a *Actor) disarm() {
	if a.handle != nil && !a.handle.Cancelled() {
		a.handle.Cancel()
	}
	a.handle = nil
}

func (a *Actor) request() search.Request {
	return search.Request{
		Query:    a.query,
		SortBy:   a.sortBy,
		PageSize: a.cfg.PageSize,
		Page:     1,
	}
}

func (a *Actor) goAsync(fn func()) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		fn()
	}()
}

func (a *Actor) send(msg Message) {
	if err := a.deps.Sender.Send(msg); err != nil {
		a.logger.Debug("session: send failed", "type", msg.MessageType(), slogKeyError, err)
	}
}

func (a *Actor) setState(s State) {
	a.state = s
	a.infoMu.Lock()
	a.info.State = s
	a.info.Query = a.query
	a.info.SortBy = string(a.sortBy)
	a.infoMu.Unlock()
}

// record emits metrics and an audit event for a completed lookup.
func (a *Actor) record(m lookupDone, newCount int) {
	errClass, errMsg := "", ""
	if m.err != nil {
		errClass = search.Classify(m.err).String()
		errMsg = m.err.Error()
	}
	if a.deps.Recorder != nil {
		a.deps.Recorder.ObserveSearch(string(m.kind), m.duration, m.hit, errClass)
	}
	if a.deps.Audit == nil {
		return
	}

	total := 0
	if m.resp != nil {
		total = m.resp.TotalResults
	}
	event := audit.NewEvent(a.id, m.kind).
		WithUser(a.userID).
		WithSearch(a.query, string(a.sortBy)).
		WithOutcome(total, newCount, m.hit).
		WithResult(m.err == nil, errClass, errMsg, m.duration.Milliseconds())
	if err := a.deps.Audit.Log(context.Background(), *event); err != nil {
		a.logger.Warn("session: audit log failed", slogKeyError, err)
	}
}
