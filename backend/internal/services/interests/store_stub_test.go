package interests

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ivankudzin/nikah/backend/internal/domain/enums"
	"github.com/ivankudzin/nikah/backend/internal/domain/model"
	pgrepo "github.com/ivankudzin/nikah/backend/internal/repo/postgres"
)

// memLedger serializes transactions with a mutex and restores a snapshot when the
// callback fails. Insert refuses a pair the current transaction has not locked, as
// Postgres needs the advisory lock for crossing sends to see each other.
type memLedger struct {
	mu       sync.Mutex
	locked   map[[2]int64]bool
	nextID   int64
	edges    []model.InterestEdge
	counters map[int64]model.QuotaCounter
	base     time.Time
}

func newMemLedger() *memLedger {
	return &memLedger{
		counters: map[int64]model.QuotaCounter{},
		base:     time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func (m *memLedger) WithTx(ctx context.Context, fn func(context.Context, pgx.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.locked = map[[2]int64]bool{}
	defer func() { m.locked = nil }()

	nextID := m.nextID
	edges := append([]model.InterestEdge(nil), m.edges...)
	counters := make(map[int64]model.QuotaCounter, len(m.counters))
	for k, v := range m.counters {
		counters[k] = v
	}

	if err := fn(ctx, nil); err != nil {
		m.nextID = nextID
		m.edges = edges
		m.counters = counters
		return err
	}
	return nil
}

func (m *memLedger) LockPair(_ context.Context, _ pgx.Tx, userA, userB int64) error {
	m.locked[orderedPair(userA, userB)] = true
	return nil
}

func orderedPair(a, b int64) [2]int64 {
	if a > b {
		a, b = b, a
	}
	return [2]int64{a, b}
}

func (m *memLedger) Exists(_ context.Context, _ pgx.Tx, sourceUserID, targetUserID int64) (bool, error) {
	_, ok := m.find(sourceUserID, targetUserID)
	return ok, nil
}

func (m *memLedger) Insert(_ context.Context, _ pgx.Tx, edge model.InterestEdge) (model.InterestEdge, error) {
	if !m.locked[orderedPair(edge.SourceUserID, edge.TargetUserID)] {
		return model.InterestEdge{}, errors.New("insert interest: pair is not locked")
	}
	if _, ok := m.find(edge.SourceUserID, edge.TargetUserID); ok {
		return model.InterestEdge{}, pgrepo.ErrInterestExists
	}
	m.nextID++
	edge.ID = m.nextID
	edge.Mutual = false
	edge.CreatedAt = m.base.Add(time.Duration(m.nextID) * time.Second)
	m.edges = append(m.edges, edge)
	return edge, nil
}

func (m *memLedger) GetDirectedForUpdate(_ context.Context, _ pgx.Tx, sourceUserID, targetUserID int64) (model.InterestEdge, error) {
	idx, ok := m.find(sourceUserID, targetUserID)
	if !ok {
		return model.InterestEdge{}, pgrepo.ErrInterestNotFound
	}
	return m.edges[idx], nil
}

func (m *memLedger) MarkMutual(_ context.Context, _ pgx.Tx, edgeID, reverseEdgeID int64) error {
	updated := 0
	for i := range m.edges {
		if m.edges[i].ID == edgeID || m.edges[i].ID == reverseEdgeID {
			m.edges[i].Mutual = true
			updated++
		}
	}
	if updated != 2 {
		return errors.New("mark mutual: expected 2 rows")
	}
	return nil
}

func (m *memLedger) DeleteBySource(_ context.Context, edgeID, sourceUserID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, edge := range m.edges {
		if edge.ID == edgeID && edge.SourceUserID == sourceUserID {
			m.edges = append(m.edges[:i], m.edges[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (m *memLedger) ListByTarget(_ context.Context, userID int64, limit int) ([]model.InterestEdge, error) {
	return m.list(limit, func(e model.InterestEdge) bool { return e.TargetUserID == userID }), nil
}

func (m *memLedger) ListBySource(_ context.Context, userID int64, limit int) ([]model.InterestEdge, error) {
	return m.list(limit, func(e model.InterestEdge) bool { return e.SourceUserID == userID }), nil
}

func (m *memLedger) ListMutualBySource(_ context.Context, userID int64, limit int) ([]model.InterestEdge, error) {
	return m.list(limit, func(e model.InterestEdge) bool { return e.SourceUserID == userID && e.Mutual }), nil
}

func (m *memLedger) LockCounter(_ context.Context, _ pgx.Tx, userID int64, now time.Time) (model.QuotaCounter, error) {
	counter, ok := m.counters[userID]
	if !ok {
		counter = model.QuotaCounter{UserID: userID, WindowStart: now}
		m.counters[userID] = counter
	}
	return counter, nil
}

func (m *memLedger) SaveCounter(_ context.Context, _ pgx.Tx, counter model.QuotaCounter) error {
	m.counters[counter.UserID] = counter
	return nil
}

func (m *memLedger) edge(sourceUserID, targetUserID int64) (model.InterestEdge, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx, ok := m.find(sourceUserID, targetUserID)
	if !ok {
		return model.InterestEdge{}, false
	}
	return m.edges[idx], true
}

func (m *memLedger) counter(userID int64) (model.QuotaCounter, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counter, ok := m.counters[userID]
	return counter, ok
}

func (m *memLedger) find(sourceUserID, targetUserID int64) (int, bool) {
	for i, edge := range m.edges {
		if edge.SourceUserID == sourceUserID && edge.TargetUserID == targetUserID {
			return i, true
		}
	}
	return -1, false
}

func (m *memLedger) list(limit int, keep func(model.InterestEdge) bool) []model.InterestEdge {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := make([]model.InterestEdge, 0)
	for _, edge := range m.edges {
		if keep(edge) {
			items = append(items, edge)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ID > items[j].ID
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items
}

type directoryStub map[int64]model.Identity

func (d directoryStub) GetIdentity(_ context.Context, userID int64) (model.Identity, error) {
	identity, ok := d[userID]
	if !ok {
		return model.Identity{}, pgrepo.ErrProfileNotFound
	}
	return identity, nil
}

func (d directoryStub) Exists(_ context.Context, userID int64) (bool, error) {
	_, ok := d[userID]
	return ok, nil
}

type entitlementStub map[int64]model.Entitlement

func (e entitlementStub) Get(_ context.Context, userID int64) (model.Entitlement, error) {
	ent, ok := e[userID]
	if !ok {
		return model.Entitlement{}, pgrepo.ErrEntitlementNotFound
	}
	return ent, nil
}

type queueStub struct {
	mu   sync.Mutex
	sent []model.Notification
	err  error
}

func (q *queueStub) Enqueue(n model.Notification) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.sent = append(q.sent, n)
	return nil
}

type recorderStub struct {
	mu       sync.Mutex
	sent     int
	matches  int
	rejected int
}

func (r *recorderStub) InterestSent(enums.InterestKind, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent++
}

func (r *recorderStub) MatchCreated() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.matches++
}

func (r *recorderStub) QuotaRejected() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rejected++
}
