package command

import (
	"context"
	"sync"
	"time"

	"github.com/oqu-hub/oqu-progress-engine/internal/domain/dailygoal"
	"github.com/oqu-hub/oqu-progress-engine/internal/domain/progress"
	"github.com/oqu-hub/oqu-progress-engine/internal/domain/shared"
)

// In-memory fakes shared by the command handler tests.

type memLedgerRepo struct {
	mu      sync.Mutex
	ledgers map[progress.UserID]*progress.Ledger
	saveErr error
}

func newMemLedgerRepo() *memLedgerRepo {
	return &memLedgerRepo{ledgers: make(map[progress.UserID]*progress.Ledger)}
}

func (r *memLedgerRepo) FindByUserID(_ context.Context, userID progress.UserID) (*progress.Ledger, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.ledgers[userID]
	if !ok {
		return nil, shared.ErrLedgerNotFound
	}
	return l.Clone(), nil
}

func (r *memLedgerRepo) Save(_ context.Context, ledger *progress.Ledger) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ledgers[ledger.UserID] = ledger.Clone()
	return nil
}

func (r *memLedgerRepo) FindAll(_ context.Context) ([]*progress.Ledger, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*progress.Ledger, 0, len(r.ledgers))
	for _, l := range r.ledgers {
		out = append(out, l.Clone())
	}
	return out, nil
}

func (r *memLedgerRepo) Delete(_ context.Context, userID progress.UserID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.ledgers, userID)
	return nil
}

type memEventRepo struct {
	mu     sync.Mutex
	events []*progress.XPEvent
}

func newMemEventRepo() *memEventRepo {
	return &memEventRepo{}
}

func (r *memEventRepo) Append(_ context.Context, event *progress.XPEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *memEventRepo) FindByUserSince(_ context.Context, userID progress.UserID, since time.Time) ([]*progress.XPEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*progress.XPEvent
	for _, e := range r.events {
		if e.UserID == userID && !e.OccurredAt.Before(since) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *memEventRepo) CountBySource(_ context.Context, userID progress.UserID, source progress.XPSource) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.UserID == userID && e.Source == source {
			n++
		}
	}
	return n, nil
}

func (r *memEventRepo) DeleteByUser(_ context.Context, userID progress.UserID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.events[:0]
	for _, e := range r.events {
		if e.UserID != userID {
			kept = append(kept, e)
		}
	}
	r.events = kept
	return nil
}

type memGoalRepo struct {
	mu    sync.Mutex
	goals map[string]*dailygoal.Goal // userID + "|" + dayKey
}

func newMemGoalRepo() *memGoalRepo {
	return &memGoalRepo{goals: make(map[string]*dailygoal.Goal)}
}

func goalKey(userID progress.UserID, dayKey string) string {
	return userID.String() + "|" + dayKey
}

func (r *memGoalRepo) FindByDay(_ context.Context, userID progress.UserID, dayKey string) (*dailygoal.Goal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.goals[goalKey(userID, dayKey)]
	if !ok {
		return nil, shared.ErrGoalNotFound
	}
	return g.Clone(), nil
}

func (r *memGoalRepo) Save(_ context.Context, goal *dailygoal.Goal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.goals[goalKey(goal.UserID, goal.DayKey)] = goal.Clone()
	return nil
}

func (r *memGoalRepo) FindActiveByUser(_ context.Context, userID progress.UserID) (*dailygoal.Goal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, g := range r.goals {
		if g.UserID == userID && !g.Archived {
			return g.Clone(), nil
		}
	}
	return nil, shared.ErrGoalNotFound
}

func (r *memGoalRepo) ArchiveBefore(_ context.Context, dayKey string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, g := range r.goals {
		if !g.Archived && g.DayKey < dayKey {
			g.Archive()
			n++
		}
	}
	return n, nil
}

func (r *memGoalRepo) CountCompletedBeforeNoon(_ context.Context, userID progress.UserID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, g := range r.goals {
		if g.UserID == userID && g.CompletedBeforeNoon() {
			n++
		}
	}
	return n, nil
}

func (r *memGoalRepo) DeleteByUser(_ context.Context, userID progress.UserID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, g := range r.goals {
		if g.UserID == userID {
			delete(r.goals, k)
		}
	}
	return nil
}

type capturePublisher struct {
	mu     sync.Mutex
	events []shared.Event
}

func (p *capturePublisher) Publish(event shared.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *capturePublisher) PublishAll(events []shared.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return nil
}

func (p *capturePublisher) byType(t shared.EventType) []shared.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []shared.Event
	for _, e := range p.events {
		if e.EventType() == t {
			out = append(out, e)
		}
	}
	return out
}

type fakeRemote struct {
	mu          sync.Mutex
	remoteTotal progress.XP
	pushReturns progress.XP
	fetchErr    error
	pushErr     error
	pushCalls   int
	fetchCalls  int
	cohort      []progress.CohortMember
}

func (f *fakeRemote) FetchRemoteLedger(_ context.Context, userID progress.UserID) (*progress.RemoteLedger, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchCalls++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return &progress.RemoteLedger{UserID: userID, TotalXP: f.remoteTotal, UpdatedAt: time.Now().UTC()}, nil
}

func (f *fakeRemote) PushXPDelta(_ context.Context, _ progress.UserID, delta progress.XP) (progress.XP, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushCalls++
	if f.pushErr != nil {
		return 0, f.pushErr
	}
	if f.pushReturns > 0 {
		// Server recognizes the delta as already applied and answers with
		// its authoritative total.
		return f.pushReturns, nil
	}
	f.remoteTotal += delta
	return f.remoteTotal, nil
}

func (f *fakeRemote) FetchCohort(_ context.Context, _ progress.UserID) ([]progress.CohortMember, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cohort, nil
}
