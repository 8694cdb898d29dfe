package presence

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// RoomLeaver removes a transport from every room it joined. The registry
// calls it before forgetting a transport so room membership never points at
// a destroyed connection.
type RoomLeaver interface {
	LeaveAll(transportID string)
}

// Options tunes staleness and reconciliation.
type Options struct {
	StaleAfter     time.Duration
	DriftThreshold int
	// Now is overridable in tests.
	Now func() time.Time
}

// session is one logical client attachment: a username or an anonymous id
// with its open tabs and the transports each tab uses.
type session struct {
	tabs       map[string]struct{}
	transports map[string]string // transportID -> tabID
	// touched is the last inbound activity of an anonymous session that
	// did not re-mint its id.
	touched time.Time
}

// Registry tracks which identities are online.
//
// Registered users keep their last-seen time in a side table; anonymous ids
// carry their own timestamp and are re-minted on heartbeat. Other traffic
// on a transport refreshes its owner through Touch.
type Registry struct {
	mu        sync.Mutex
	users     map[string]*session
	seen      map[string]time.Time
	anonymous map[string]*session
	owners    map[string]string // transportID -> identity

	leaver RoomLeaver
	opts   Options
	logger zerolog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(leaver RoomLeaver, opts Options, logger zerolog.Logger) *Registry {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = 3 * time.Minute
	}
	if opts.DriftThreshold <= 0 {
		opts.DriftThreshold = 2
	}
	return &Registry{
		users:     make(map[string]*session),
		seen:      make(map[string]time.Time),
		anonymous: make(map[string]*session),
		owners:    make(map[string]string),
		leaver:    leaver,
		opts:      opts,
		logger:    logger.With().Str("component", "presence").Logger(),
	}
}

// Connect registers a tab for identity and returns the identity used (a
// fresh anonymous id when identity is empty) and the online count.
// A repeated connect for a known identity only extends its tab set.
func (r *Registry) Connect(identity, tabID, transportID string) (string, int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.opts.Now()
	if identity == "" {
		identity = newAnonID(now)
	}
	r.attach(identity, tabID, transportID, now)
	r.logger.Debug().Str("identity", identity).Str("tab", tabID).Msg("connect")

	r.sweepLocked(now)
	return identity, r.countLocked()
}

// Heartbeat refreshes identity. Anonymous ids are swapped for a freshly
// minted id, which is returned; callers must use it from then on. Unknown
// identities are re-attached.
func (r *Registry) Heartbeat(identity, tabID, transportID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.opts.Now()
	if !IsAnonymous(identity) {
		r.attach(identity, tabID, transportID, now)
		return identity
	}

	s, ok := r.anonymous[identity]
	if !ok {
		s = newSession()
	}
	delete(r.anonymous, identity)
	fresh := newAnonID(now)
	r.anonymous[fresh] = s
	for tid := range s.transports {
		r.owners[tid] = fresh
	}
	if len(s.tabs) == 0 || tabID != "" || transportID != "" {
		s.add(s.tabFor(tabID, transportID), transportID)
		if transportID != "" {
			r.moveTransportLocked(transportID, fresh)
		}
	}
	return fresh
}

// Disconnect drops tabID from identity, or the identity itself when tabID
// is empty. removed reports whether the identity is gone afterwards.
func (r *Registry) Disconnect(identity, tabID string) (removed bool, count int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.lookup(identity)
	if s == nil {
		return false, r.countLocked()
	}
	if tabID == "" {
		r.removeLocked(identity, s)
		return true, r.countLocked()
	}

	delete(s.tabs, tabID)
	for tid, tab := range s.transports {
		if tab == tabID {
			r.releaseTransportLocked(s, tid)
		}
	}
	if len(s.tabs) == 0 {
		r.removeLocked(identity, s)
		return true, r.countLocked()
	}
	return false, r.countLocked()
}

// ReleaseTransport is the teardown path for a closed transport. The owning
// tab is dropped once no other transport serves it.
func (r *Registry) ReleaseTransport(transportID string) (identity string, removed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	identity, ok := r.owners[transportID]
	if !ok {
		r.leaver.LeaveAll(transportID)
		return "", false
	}
	s := r.lookup(identity)
	if s == nil {
		delete(r.owners, transportID)
		r.leaver.LeaveAll(transportID)
		return identity, false
	}

	tab := s.transports[transportID]
	r.releaseTransportLocked(s, transportID)
	stillUsed := false
	for _, t := range s.transports {
		if t == tab {
			stillUsed = true
			break
		}
	}
	if !stillUsed {
		delete(s.tabs, tab)
	}
	if len(s.tabs) == 0 {
		r.removeLocked(identity, s)
		return identity, true
	}
	return identity, false
}

// Touch refreshes the identity that owns transportID without re-minting
// anonymous ids. It reports the owner and whether the transport is known.
func (r *Registry) Touch(transportID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.owners[transportID]
	if !ok {
		return "", false
	}
	now := r.opts.Now()
	if s, anon := r.anonymous[id]; anon {
		s.touched = now
	} else if _, user := r.users[id]; user {
		r.seen[id] = now
	}
	return id, true
}

// Owner returns the identity a transport belongs to.
func (r *Registry) Owner(transportID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.owners[transportID]
	return id, ok
}

// Online reports whether identity is currently tracked.
func (r *Registry) Online(identity string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lookup(identity) != nil
}

// Tabs returns the open tab ids of identity.
func (r *Registry) Tabs(identity string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.lookup(identity)
	if s == nil {
		return nil, ErrUnknownIdentity
	}
	tabs := make([]string, 0, len(s.tabs))
	for t := range s.tabs {
		tabs = append(tabs, t)
	}
	return tabs, nil
}

// SweepStale removes identities silent for longer than maxAge.
func (r *Registry) SweepStale(maxAge time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sweepAgeLocked(r.opts.Now(), maxAge)
}

// Count sweeps stale entries and returns the online count. It never
// returns less than 1.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sweepLocked(r.opts.Now())
	return r.countLocked()
}

func (r *Registry) attach(identity, tabID, transportID string, now time.Time) {
	s := r.lookup(identity)
	if s == nil {
		s = newSession()
		if IsAnonymous(identity) {
			r.anonymous[identity] = s
		} else {
			r.users[identity] = s
		}
	}
	if len(s.tabs) == 0 || tabID != "" || transportID != "" {
		s.add(s.tabFor(tabID, transportID), transportID)
	}
	if transportID != "" {
		r.moveTransportLocked(transportID, identity)
	}
	if !IsAnonymous(identity) {
		r.seen[identity] = now
	}
}

// moveTransportLocked detaches a live transport from a previous owner, e.g.
// when an anonymous socket authenticates. Room membership is kept.
func (r *Registry) moveTransportLocked(transportID, identity string) {
	prev, ok := r.owners[transportID]
	r.owners[transportID] = identity
	if !ok || prev == identity {
		return
	}
	old := r.lookup(prev)
	if old == nil {
		return
	}
	tab := old.transports[transportID]
	delete(old.transports, transportID)
	for _, t := range old.transports {
		if t == tab {
			return
		}
	}
	delete(old.tabs, tab)
	if len(old.tabs) == 0 {
		delete(r.users, prev)
		delete(r.seen, prev)
		delete(r.anonymous, prev)
	}
}

func (r *Registry) lookup(identity string) *session {
	if IsAnonymous(identity) {
		return r.anonymous[identity]
	}
	return r.users[identity]
}

func (r *Registry) removeLocked(identity string, s *session) {
	for tid := range s.transports {
		r.releaseTransportLocked(s, tid)
	}
	delete(r.users, identity)
	delete(r.seen, identity)
	delete(r.anonymous, identity)
	r.logger.Debug().Str("identity", identity).Msg("identity removed")
}

func (r *Registry) releaseTransportLocked(s *session, transportID string) {
	r.leaver.LeaveAll(transportID)
	delete(s.transports, transportID)
	delete(r.owners, transportID)
}

func (r *Registry) sweepLocked(now time.Time) int {
	return r.sweepAgeLocked(now, r.opts.StaleAfter)
}

func (r *Registry) sweepAgeLocked(now time.Time, maxAge time.Duration) int {
	removed := r.reconcileLocked()
	for id, s := range r.users {
		if last, ok := r.seen[id]; ok && now.Sub(last) > maxAge {
			r.removeLocked(id, s)
			removed++
		}
	}
	for id, s := range r.anonymous {
		last, ok := anonMintedAt(id)
		if s.touched.After(last) {
			last = s.touched
		}
		if !ok || now.Sub(last) > maxAge {
			r.removeLocked(id, s)
			removed++
		}
	}
	if removed > 0 {
		r.logger.Debug().Int("removed", removed).Msg("swept stale identities")
	}
	return removed
}

// reconcileLocked drops users lacking a last-seen record when the two
// tables drift further apart than the configured threshold. It never
// clears the registry wholesale.
func (r *Registry) reconcileLocked() int {
	drift := len(r.users) - len(r.seen)
	if drift < 0 {
		drift = -drift
	}
	if drift <= r.opts.DriftThreshold {
		return 0
	}
	removed := 0
	for id, s := range r.users {
		if _, ok := r.seen[id]; !ok {
			r.removeLocked(id, s)
			removed++
		}
	}
	for id := range r.seen {
		if _, ok := r.users[id]; !ok {
			delete(r.seen, id)
		}
	}
	r.logger.Warn().
		Err(ErrRegistryInconsistency).
		Int("drift", drift).
		Int("removed", removed).
		Msg("reconciled presence tables")
	return removed
}

func (r *Registry) countLocked() int {
	n := len(r.users) + len(r.anonymous)
	if n < 1 {
		return 1
	}
	return n
}

func newSession() *session {
	return &session{
		tabs:       make(map[string]struct{}),
		transports: make(map[string]string),
	}
}

func (s *session) add(tabID, transportID string) {
	s.tabs[tabID] = struct{}{}
	if transportID != "" {
		s.transports[transportID] = tabID
	}
}

// tabFor picks the tab a call refers to: the explicit one, else the tab the
// transport already serves, else the transport itself.
func (s *session) tabFor(tabID, transportID string) string {
	if tabID != "" {
		return tabID
	}
	if transportID == "" {
		return "default"
	}
	if tab, ok := s.transports[transportID]; ok {
		return tab
	}
	return transportID
}
