package entitlements

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ivankudzin/nikah/backend/internal/domain/enums"
	"github.com/ivankudzin/nikah/backend/internal/domain/model"
	pgrepo "github.com/ivankudzin/nikah/backend/internal/repo/postgres"
)

type memStore struct {
	mu     sync.Mutex
	rows   map[int64]model.Entitlement
	writes int
}

func newMemStore() *memStore {
	return &memStore{rows: map[int64]model.Entitlement{}}
}

func (m *memStore) WithTx(ctx context.Context, fn func(context.Context, pgx.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := make(map[int64]model.Entitlement, len(m.rows))
	for k, v := range m.rows {
		snapshot[k] = v
	}
	if err := fn(ctx, nil); err != nil {
		m.rows = snapshot
		return err
	}
	return nil
}

func (m *memStore) Get(_ context.Context, userID int64) (model.Entitlement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ent, ok := m.rows[userID]
	if !ok {
		return model.Entitlement{}, pgrepo.ErrEntitlementNotFound
	}
	return ent, nil
}

func (m *memStore) InsertDefault(_ context.Context, ent model.Entitlement) (model.Entitlement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.rows[ent.UserID]; ok {
		return existing, nil
	}
	m.writes++
	m.rows[ent.UserID] = ent
	return ent, nil
}

func (m *memStore) Upsert(_ context.Context, ent model.Entitlement) (model.Entitlement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	m.rows[ent.UserID] = ent
	return ent, nil
}

func (m *memStore) LockByRef(_ context.Context, _ pgx.Tx, ref string) (model.Entitlement, error) {
	if userID, ok := m.byRef(ref); ok {
		return m.rows[userID], nil
	}
	return model.Entitlement{}, pgrepo.ErrEntitlementNotFound
}

func (m *memStore) Save(_ context.Context, _ pgx.Tx, ent model.Entitlement) error {
	if _, ok := m.rows[ent.UserID]; !ok {
		return errors.New("save: row missing")
	}
	m.writes++
	m.rows[ent.UserID] = ent
	return nil
}

func (m *memStore) UpdateWindowByRef(_ context.Context, ref string, validFrom, validUntil time.Time, status enums.EntitlementStatus) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	userID, ok := m.byRef(ref)
	if !ok {
		return 0, false, nil
	}
	ent := m.rows[userID]
	ent.ValidFrom = timePtr(validFrom)
	ent.ValidUntil = timePtr(validUntil)
	ent.Status = status
	m.writes++
	m.rows[userID] = ent
	return userID, true, nil
}

func (m *memStore) SetStatusByRef(_ context.Context, ref string, status enums.EntitlementStatus) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	userID, ok := m.byRef(ref)
	if !ok {
		return 0, false, nil
	}
	ent := m.rows[userID]
	ent.Status = status
	m.writes++
	m.rows[userID] = ent
	return userID, true, nil
}

func (m *memStore) SetStatus(_ context.Context, userID int64, status enums.EntitlementStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ent, ok := m.rows[userID]
	if !ok {
		return false, nil
	}
	ent.Status = status
	m.writes++
	m.rows[userID] = ent
	return true, nil
}

func (m *memStore) byRef(ref string) (int64, bool) {
	for userID, ent := range m.rows {
		if ent.ExternalSubscriptionRef != nil && *ent.ExternalSubscriptionRef == ref {
			return userID, true
		}
	}
	return 0, false
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

type directoryStub map[int64]model.Identity

func (d directoryStub) GetIdentity(_ context.Context, userID int64) (model.Identity, error) {
	identity, ok := d[userID]
	if !ok {
		return model.Identity{}, pgrepo.ErrProfileNotFound
	}
	return identity, nil
}

type providerStub struct {
	checkouts     []model.CheckoutRequest
	cancelled     []string
	cancelAtEnd   map[string]bool
	subscriptions map[string]model.ProviderSubscription
	err           error
}

func newProviderStub() *providerStub {
	return &providerStub{
		cancelAtEnd:   map[string]bool{},
		subscriptions: map[string]model.ProviderSubscription{},
	}
}

func (p *providerStub) CreateCheckoutSession(_ context.Context, req model.CheckoutRequest) (model.CheckoutSession, error) {
	if p.err != nil {
		return model.CheckoutSession{}, p.err
	}
	p.checkouts = append(p.checkouts, req)
	return model.CheckoutSession{SessionID: "cs_" + req.IdempotencyKey, URL: "https://pay.example/" + req.IdempotencyKey}, nil
}

func (p *providerStub) CancelSubscription(_ context.Context, ref string) error {
	if p.err != nil {
		return p.err
	}
	p.cancelled = append(p.cancelled, ref)
	return nil
}

func (p *providerStub) SetCancelAtPeriodEnd(_ context.Context, ref string, cancel bool) error {
	if p.err != nil {
		return p.err
	}
	p.cancelAtEnd[ref] = cancel
	return nil
}

func (p *providerStub) GetSubscription(_ context.Context, ref string) (model.ProviderSubscription, error) {
	if p.err != nil {
		return model.ProviderSubscription{}, p.err
	}
	sub, ok := p.subscriptions[ref]
	if !ok {
		return model.ProviderSubscription{}, errors.New("no such subscription")
	}
	return sub, nil
}

type queueStub struct {
	sent []model.Notification
}

func (q *queueStub) Enqueue(n model.Notification) error {
	q.sent = append(q.sent, n)
	return nil
}

type recorderStub struct {
	events map[string]int
}

func (r *recorderStub) BillingEvent(kind enums.BillingEventKind, outcome string) {
	if r.events == nil {
		r.events = map[string]int{}
	}
	r.events[string(kind)+"/"+outcome]++
}
