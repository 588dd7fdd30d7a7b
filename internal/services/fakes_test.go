package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"diecast-trading/internal/domain"
)

type noopLogger struct{}

func (noopLogger) Info(msg string, keysAndValues ...interface{})  {}
func (noopLogger) Error(msg string, keysAndValues ...interface{}) {}
func (noopLogger) Debug(msg string, keysAndValues ...interface{}) {}
func (noopLogger) Warn(msg string, keysAndValues ...interface{})  {}
func (noopLogger) Fatal(msg string, keysAndValues ...interface{}) {}

type fakeListingStore struct {
	mu       sync.Mutex
	listings map[string]*domain.Listing

	closeCalls int
	closeErr   error
	dueErr     error
}

func newFakeListingStore(listings ...*domain.Listing) *fakeListingStore {
	s := &fakeListingStore{listings: make(map[string]*domain.Listing)}
	for _, l := range listings {
		cp := *l
		s.listings[l.ID] = &cp
	}
	return s
}

func (s *fakeListingStore) CreateListing(ctx context.Context, listing *domain.Listing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *listing
	s.listings[listing.ID] = &cp
	return nil
}

func (s *fakeListingStore) GetListing(ctx context.Context, listingID string) (*domain.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.listings[listingID]
	if !ok {
		return nil, domain.ErrListingNotFound
	}
	cp := *l
	return &cp, nil
}

func (s *fakeListingStore) GetOpenListingForItem(ctx context.Context, ownerID, itemID string) (*domain.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.listings {
		if l.OwnerID == ownerID && l.ItemID == itemID && l.Status == domain.StatusOpen {
			cp := *l
			return &cp, nil
		}
	}
	return nil, domain.ErrListingNotFound
}

func (s *fakeListingStore) UpdateListing(ctx context.Context, listing *domain.Listing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.listings[listing.ID]
	if !ok || existing.Status != domain.StatusOpen {
		return domain.ErrListingNotOpen
	}
	cp := *listing
	s.listings[listing.ID] = &cp
	return nil
}

func (s *fakeListingStore) ListOpenListings(ctx context.Context, kind domain.ListingKind, limit, offset int) ([]*domain.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Listing
	for _, l := range s.listings {
		if l.Status != domain.StatusOpen {
			continue
		}
		if kind != "" && l.Kind != kind {
			continue
		}
		cp := *l
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *fakeListingStore) GetDueAuctions(ctx context.Context, now time.Time) ([]*domain.Listing, error) {
	if s.dueErr != nil {
		return nil, s.dueErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Listing
	for _, l := range s.listings {
		if l.Kind == domain.KindAuction && l.Status == domain.StatusOpen &&
			l.EndTime != nil && !l.EndTime.After(now) {
			cp := *l
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *fakeListingStore) CloseListing(ctx context.Context, listingID string, to domain.ListingStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeCalls++
	if s.closeErr != nil {
		return false, s.closeErr
	}
	l, ok := s.listings[listingID]
	if !ok || l.Status != domain.StatusOpen {
		return false, nil
	}
	l.Status = to
	return true, nil
}

type fakeBidLedger struct {
	mu   sync.Mutex
	bids map[string][]*domain.Bid

	// appendHook runs before a bid is recorded; a non-nil return aborts
	// the append with that error.
	appendHook    func(bid *domain.Bid) error
	highestErr    error
	highestErrFor map[string]error
	countErr      error
}

func newFakeBidLedger() *fakeBidLedger {
	return &fakeBidLedger{bids: make(map[string][]*domain.Bid)}
}

func (l *fakeBidLedger) seed(bid *domain.Bid) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.bids[bid.ListingID] = append(l.bids[bid.ListingID], bid)
}

func (l *fakeBidLedger) AppendBid(ctx context.Context, bid *domain.Bid) error {
	if l.appendHook != nil {
		if err := l.appendHook(bid); err != nil {
			return err
		}
	}
	l.seed(bid)
	return nil
}

func (l *fakeBidLedger) HighestBid(ctx context.Context, listingID string) (*domain.Bid, error) {
	if l.highestErr != nil {
		return nil, l.highestErr
	}
	if err, ok := l.highestErrFor[listingID]; ok {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	bids := l.bids[listingID]
	if len(bids) == 0 {
		return nil, domain.ErrNoBids
	}
	best := bids[0]
	for _, b := range bids[1:] {
		if b.Amount > best.Amount {
			best = b
		}
	}
	cp := *best
	return &cp, nil
}

func (l *fakeBidLedger) CountBids(ctx context.Context, listingID string) (int, error) {
	if l.countErr != nil {
		return 0, l.countErr
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.bids[listingID]), nil
}

func (l *fakeBidLedger) ListBids(ctx context.Context, listingID string, before time.Time, limit int) ([]*domain.Bid, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*domain.Bid
	for _, b := range l.bids[listingID] {
		if b.PlacedAt.Before(before) {
			cp := *b
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PlacedAt.After(out[j].PlacedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeHighBidCache struct {
	mu          sync.Mutex
	initialized map[string]float64
	advanced    []string
	dropped     []string
	snapshot    *domain.CachedHighBid
}

func newFakeHighBidCache() *fakeHighBidCache {
	return &fakeHighBidCache{initialized: make(map[string]float64)}
}

func (c *fakeHighBidCache) InitializeListing(ctx context.Context, listingID string, startingPrice float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.initialized[listingID] = startingPrice
	return nil
}

func (c *fakeHighBidCache) AdvanceHighBid(ctx context.Context, listingID, bidderID string, amount float64) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.advanced = append(c.advanced, listingID)
	return true, nil
}

func (c *fakeHighBidCache) GetHighBid(ctx context.Context, listingID string) (*domain.CachedHighBid, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot, nil
}

func (c *fakeHighBidCache) DropListing(ctx context.Context, listingID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dropped = append(c.dropped, listingID)
	return nil
}

type fakeEventPublisher struct {
	mu     sync.Mutex
	events []*domain.ListingEvent
	err    error
}

func (p *fakeEventPublisher) PublishListingEvent(ctx context.Context, event *domain.ListingEvent) error {
	if p.err != nil {
		return p.err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *fakeEventPublisher) published() []*domain.ListingEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*domain.ListingEvent(nil), p.events...)
}

type fakeContactResolver struct {
	contacts map[string]*domain.Contact
	err      error
}

func (r *fakeContactResolver) ResolveContact(ctx context.Context, accountID string) (*domain.Contact, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.contacts[accountID], nil
}

type fakeNotifier struct {
	mu      sync.Mutex
	sent    []*domain.Outcome
	winners []*domain.Contact
	err     error
}

func (n *fakeNotifier) NotifyOutcome(ctx context.Context, seller, winner *domain.Contact, outcome *domain.Outcome) error {
	if n.err != nil {
		return n.err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, outcome)
	n.winners = append(n.winners, winner)
	return nil
}

type fakeFinalizeLock struct {
	mu       sync.Mutex
	denied   map[string]bool
	acquired []string
	released []string
	err      error
}

func (l *fakeFinalizeLock) Acquire(ctx context.Context, listingID string) (bool, error) {
	if l.err != nil {
		return false, l.err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.denied[listingID] {
		return false, nil
	}
	l.acquired = append(l.acquired, listingID)
	return true, nil
}

func (l *fakeFinalizeLock) Release(ctx context.Context, listingID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.released = append(l.released, listingID)
	return nil
}

type fakeLeaderElection struct {
	leader bool
}

func (f *fakeLeaderElection) BecomeLeader(ctx context.Context, instanceID string) (bool, error) {
	return f.leader, nil
}

func (f *fakeLeaderElection) IsLeader(ctx context.Context, instanceID string) (bool, error) {
	return f.leader, nil
}

func (f *fakeLeaderElection) ReleaseLeadership(ctx context.Context, instanceID string) error {
	f.leader = false
	return nil
}

func timePtr(t time.Time) *time.Time {
	return &t
}

func openAuction(id, ownerID string, startingPrice float64, allowCents bool, end time.Time) *domain.Listing {
	return &domain.Listing{
		ID:            id,
		OwnerID:       ownerID,
		ItemID:        "item-" + id,
		Kind:          domain.KindAuction,
		Status:        domain.StatusOpen,
		StartingPrice: startingPrice,
		AllowCents:    allowCents,
		EndTime:       timePtr(end),
		CreatedAt:     time.Now().UTC(),
		UpdatedAt:     time.Now().UTC(),
	}
}
