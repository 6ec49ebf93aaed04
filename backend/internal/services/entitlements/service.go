package entitlements

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/ivankudzin/nikah/backend/internal/domain/enums"
	"github.com/ivankudzin/nikah/backend/internal/domain/model"
	"github.com/ivankudzin/nikah/backend/internal/domain/rules"
	pgrepo "github.com/ivankudzin/nikah/backend/internal/repo/postgres"
)

const (
	OutcomeApplied = "applied"
	OutcomeIgnored = "ignored"
	OutcomeFailed  = "failed"

	defaultCheckoutKeyBucket = 10 * time.Minute
)

var (
	ErrValidation           = fmt.Errorf("%w: invalid entitlement input", model.ErrValidation)
	ErrUnsupportedTier      = fmt.Errorf("%w: tier cannot be purchased", model.ErrValidation)
	ErrIdentityNotFound     = fmt.Errorf("%w: identity", model.ErrNotFound)
	ErrNoSubscription       = fmt.Errorf("%w: subscription", model.ErrNotFound)
	ErrNoActiveSubscription = fmt.Errorf("%w: no active subscription", model.ErrConflict)
	ErrDependenciesNil      = errors.New("entitlement dependencies are not configured")

	errUnknownRef = errors.New("unknown subscription ref")
)

type ExternalProviderError struct {
	Op  string
	Err error
}

func (e ExternalProviderError) Error() string {
	return "billing provider " + e.Op + ": " + e.Err.Error()
}

func (e ExternalProviderError) Unwrap() error {
	return e.Err
}

func IsExternalProvider(err error) (*ExternalProviderError, bool) {
	var pe ExternalProviderError
	if errors.As(err, &pe) {
		return &pe, true
	}
	return nil, false
}

type TxRunner interface {
	WithTx(ctx context.Context, fn func(context.Context, pgx.Tx) error) error
}

type Store interface {
	Get(ctx context.Context, userID int64) (model.Entitlement, error)
	InsertDefault(ctx context.Context, ent model.Entitlement) (model.Entitlement, error)
	Upsert(ctx context.Context, ent model.Entitlement) (model.Entitlement, error)
	LockByRef(ctx context.Context, tx pgx.Tx, ref string) (model.Entitlement, error)
	Save(ctx context.Context, tx pgx.Tx, ent model.Entitlement) error
	UpdateWindowByRef(ctx context.Context, ref string, validFrom, validUntil time.Time, status enums.EntitlementStatus) (int64, bool, error)
	SetStatusByRef(ctx context.Context, ref string, status enums.EntitlementStatus) (int64, bool, error)
	SetStatus(ctx context.Context, userID int64, status enums.EntitlementStatus) (bool, error)
}

type IdentityDirectory interface {
	GetIdentity(ctx context.Context, userID int64) (model.Identity, error)
}

type BillingProvider interface {
	CreateCheckoutSession(ctx context.Context, req model.CheckoutRequest) (model.CheckoutSession, error)
	CancelSubscription(ctx context.Context, ref string) error
	SetCancelAtPeriodEnd(ctx context.Context, ref string, cancel bool) error
	GetSubscription(ctx context.Context, ref string) (model.ProviderSubscription, error)
}

type NotificationQueue interface {
	Enqueue(n model.Notification) error
}

type Recorder interface {
	BillingEvent(kind enums.BillingEventKind, outcome string)
}

type Config struct {
	DefaultSuccessURL string
	DefaultCancelURL  string
	CheckoutKeyBucket time.Duration
}

type Dependencies struct {
	Tx            TxRunner
	Store         Store
	Identities    IdentityDirectory
	Provider      BillingProvider
	Notifications NotificationQueue
	Recorder      Recorder
	Logger        *zap.Logger
}

// Service reconciles the local entitlement record with billing provider state.
// Local writes are single statements or a single row-locked transaction.
type Service struct {
	tx            TxRunner
	store         Store
	identities    IdentityDirectory
	provider      BillingProvider
	notifications NotificationQueue
	recorder      Recorder
	logger        *zap.Logger
	cfg           Config
	now           func() time.Time
}

type CheckoutInput struct {
	UserID         int64
	Tier           string
	SuccessURL     string
	CancelURL      string
	IdempotencyKey string
}

type CheckoutCompleted struct {
	UserID      int64
	Ref         string
	Tier        enums.Tier
	PeriodStart time.Time
	PeriodEnd   time.Time
}

type SubscriptionChange struct {
	Ref            string
	PeriodStart    time.Time
	PeriodEnd      time.Time
	ProviderStatus string
}

func NewService(deps Dependencies, cfg Config) *Service {
	if cfg.CheckoutKeyBucket <= 0 {
		cfg.CheckoutKeyBucket = defaultCheckoutKeyBucket
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		tx:            deps.Tx,
		store:         deps.Store,
		identities:    deps.Identities,
		provider:      deps.Provider,
		notifications: deps.Notifications,
		recorder:      deps.Recorder,
		logger:        logger,
		cfg:           cfg,
		now:           time.Now,
	}
}

// Get returns the identity's entitlement, creating the gender default on first read.
func (s *Service) Get(ctx context.Context, userID int64) (model.Entitlement, error) {
	if userID <= 0 {
		return model.Entitlement{}, ErrValidation
	}
	if s.store == nil || s.identities == nil {
		return model.Entitlement{}, ErrDependenciesNil
	}

	ent, err := s.store.Get(ctx, userID)
	if err == nil {
		return ent, nil
	}
	if !errors.Is(err, pgrepo.ErrEntitlementNotFound) {
		return model.Entitlement{}, err
	}

	identity, err := s.identity(ctx, userID)
	if err != nil {
		return model.Entitlement{}, err
	}

	created, err := s.store.InsertDefault(ctx, rules.DefaultEntitlement(userID, identity.GenderClass))
	if err != nil {
		return model.Entitlement{}, err
	}
	return created, nil
}

func (s *Service) CreateCheckoutSession(ctx context.Context, in CheckoutInput) (model.CheckoutSession, error) {
	if in.UserID <= 0 {
		return model.CheckoutSession{}, ErrValidation
	}
	tier, ok := enums.ParseTier(in.Tier)
	if !ok || !tier.Purchasable() {
		return model.CheckoutSession{}, ErrUnsupportedTier
	}
	successURL := firstNonEmpty(in.SuccessURL, s.cfg.DefaultSuccessURL)
	cancelURL := firstNonEmpty(in.CancelURL, s.cfg.DefaultCancelURL)
	if successURL == "" || cancelURL == "" {
		return model.CheckoutSession{}, fmt.Errorf("%w: success and cancel urls are required", ErrValidation)
	}
	if s.provider == nil || s.identities == nil {
		return model.CheckoutSession{}, ErrDependenciesNil
	}

	if _, err := s.identity(ctx, in.UserID); err != nil {
		return model.CheckoutSession{}, err
	}

	key := strings.TrimSpace(in.IdempotencyKey)
	if key == "" {
		key = checkoutIdempotencyKey(in.UserID, tier, s.now().UTC(), s.cfg.CheckoutKeyBucket)
	}

	session, err := s.provider.CreateCheckoutSession(ctx, model.CheckoutRequest{
		UserID:         in.UserID,
		Tier:           tier,
		SuccessURL:     successURL,
		CancelURL:      cancelURL,
		IdempotencyKey: key,
	})
	if err != nil {
		return model.CheckoutSession{}, ExternalProviderError{Op: "create_checkout_session", Err: err}
	}

	return session, nil
}

// CheckoutCompleted carries the full desired state, so replays converge on the same row.
func (s *Service) CheckoutCompleted(ctx context.Context, ev CheckoutCompleted) error {
	ref := strings.TrimSpace(ev.Ref)
	if ev.UserID <= 0 || ref == "" || !ev.Tier.Purchasable() {
		return ErrValidation
	}
	if s.store == nil || s.identities == nil {
		return ErrDependenciesNil
	}

	identity, err := s.identity(ctx, ev.UserID)
	if err != nil {
		if errors.Is(err, ErrIdentityNotFound) {
			s.ignored(enums.BillingCheckoutCompleted, zap.Int64("user_id", ev.UserID), zap.String("ref", ref))
			return nil
		}
		s.record(enums.BillingCheckoutCompleted, OutcomeFailed)
		return err
	}

	_, err = s.store.Upsert(ctx, model.Entitlement{
		UserID:                  ev.UserID,
		Tier:                    ev.Tier,
		Status:                  enums.EntitlementStatusActive,
		ExternalSubscriptionRef: &ref,
		ValidFrom:               timePtr(ev.PeriodStart),
		ValidUntil:              timePtr(ev.PeriodEnd),
		Flags:                   rules.Policy(ev.Tier, identity.GenderClass),
	})
	if err != nil {
		s.record(enums.BillingCheckoutCompleted, OutcomeFailed)
		return err
	}

	s.record(enums.BillingCheckoutCompleted, OutcomeApplied)
	return nil
}

// SubscriptionUpdated applies the provider window without comparing it to the stored
// one; an older event arriving late wins until the next event.
func (s *Service) SubscriptionUpdated(ctx context.Context, ev SubscriptionChange) error {
	return s.applySubscriptionChange(ctx, enums.BillingSubscriptionUpdated, ev)
}

func (s *Service) SubscriptionDeleted(ctx context.Context, ref string) error {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ErrValidation
	}
	if s.tx == nil || s.store == nil || s.identities == nil {
		return ErrDependenciesNil
	}

	var userID int64
	err := s.tx.WithTx(ctx, func(txCtx context.Context, tx pgx.Tx) error {
		current, err := s.store.LockByRef(txCtx, tx, ref)
		if err != nil {
			if errors.Is(err, pgrepo.ErrEntitlementNotFound) {
				return errUnknownRef
			}
			return err
		}

		identity, err := s.identity(txCtx, current.UserID)
		if err != nil {
			if errors.Is(err, ErrIdentityNotFound) {
				userID = current.UserID
			}
			return err
		}

		reverted := rules.DefaultEntitlement(current.UserID, identity.GenderClass)
		reverted.Status = enums.EntitlementStatusCancelled
		reverted.ValidFrom = current.ValidFrom
		reverted.ValidUntil = current.ValidUntil
		return s.store.Save(txCtx, tx, reverted)
	})
	if err != nil {
		if errors.Is(err, errUnknownRef) {
			s.ignored(enums.BillingSubscriptionDeleted, zap.String("ref", ref))
			return nil
		}
		if errors.Is(err, ErrIdentityNotFound) {
			s.ignored(enums.BillingSubscriptionDeleted, zap.String("ref", ref), zap.Int64("user_id", userID))
			return nil
		}
		s.record(enums.BillingSubscriptionDeleted, OutcomeFailed)
		return err
	}

	s.record(enums.BillingSubscriptionDeleted, OutcomeApplied)
	return nil
}

// PaymentFailed degrades the status only; tier and flags stay until the subscription
// is deleted.
func (s *Service) PaymentFailed(ctx context.Context, ref string) error {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ErrValidation
	}
	if s.store == nil {
		return ErrDependenciesNil
	}

	userID, found, err := s.store.SetStatusByRef(ctx, ref, enums.EntitlementStatusPaymentFailed)
	if err != nil {
		s.record(enums.BillingPaymentFailed, OutcomeFailed)
		return err
	}
	if !found {
		s.ignored(enums.BillingPaymentFailed, zap.String("ref", ref))
		return nil
	}

	s.record(enums.BillingPaymentFailed, OutcomeApplied)
	s.warnPaymentFailed(ctx, userID)
	return nil
}

func (s *Service) PaymentSucceeded(ctx context.Context, ref string) error {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ErrValidation
	}
	if s.provider == nil {
		return ErrDependenciesNil
	}

	sub, err := s.provider.GetSubscription(ctx, ref)
	if err != nil {
		s.record(enums.BillingPaymentSucceeded, OutcomeFailed)
		return ExternalProviderError{Op: "get_subscription", Err: err}
	}

	return s.applySubscriptionChange(ctx, enums.BillingPaymentSucceeded, SubscriptionChange{
		Ref:            ref,
		PeriodStart:    sub.PeriodStart,
		PeriodEnd:      sub.PeriodEnd,
		ProviderStatus: sub.Status,
	})
}

// Cancel only asks the provider; the local record changes when the provider reports
// the deletion back.
func (s *Service) Cancel(ctx context.Context, userID int64, immediate bool) error {
	if s.provider == nil {
		return ErrDependenciesNil
	}

	ent, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}
	if !ent.HasSubscription() {
		return ErrNoActiveSubscription
	}

	ref := *ent.ExternalSubscriptionRef
	if immediate {
		if err := s.provider.CancelSubscription(ctx, ref); err != nil {
			return ExternalProviderError{Op: "cancel_subscription", Err: err}
		}
	} else {
		if err := s.provider.SetCancelAtPeriodEnd(ctx, ref, true); err != nil {
			return ExternalProviderError{Op: "cancel_at_period_end", Err: err}
		}
	}

	s.logger.Info("subscription cancel requested",
		zap.Int64("user_id", userID),
		zap.String("ref", ref),
		zap.Bool("immediate", immediate),
	)
	return nil
}

func (s *Service) Reactivate(ctx context.Context, userID int64) (model.Entitlement, error) {
	if s.provider == nil {
		return model.Entitlement{}, ErrDependenciesNil
	}

	ent, err := s.Get(ctx, userID)
	if err != nil {
		return model.Entitlement{}, err
	}
	if !ent.HasSubscription() {
		return model.Entitlement{}, ErrNoSubscription
	}

	if err := s.provider.SetCancelAtPeriodEnd(ctx, *ent.ExternalSubscriptionRef, false); err != nil {
		return model.Entitlement{}, ExternalProviderError{Op: "reactivate", Err: err}
	}

	if _, err := s.store.SetStatus(ctx, userID, enums.EntitlementStatusActive); err != nil {
		return model.Entitlement{}, err
	}

	return s.store.Get(ctx, userID)
}

func (s *Service) applySubscriptionChange(ctx context.Context, event enums.BillingEventKind, ev SubscriptionChange) error {
	ref := strings.TrimSpace(ev.Ref)
	if ref == "" {
		return ErrValidation
	}
	if s.store == nil {
		return ErrDependenciesNil
	}

	status := enums.StatusFromProvider(ev.ProviderStatus)
	_, found, err := s.store.UpdateWindowByRef(ctx, ref, ev.PeriodStart, ev.PeriodEnd, status)
	if err != nil {
		s.record(event, OutcomeFailed)
		return err
	}
	if !found {
		s.ignored(event, zap.String("ref", ref), zap.String("provider_status", ev.ProviderStatus))
		return nil
	}

	s.record(event, OutcomeApplied)
	return nil
}

func (s *Service) warnPaymentFailed(ctx context.Context, userID int64) {
	if s.notifications == nil {
		return
	}

	recipient := model.NotificationRecipient{}
	if identity, err := s.identities.GetIdentity(ctx, userID); err == nil {
		recipient.TelegramChatID = identity.TelegramChatID
	} else {
		s.logger.Warn("load identity for payment warning", zap.Int64("user_id", userID), zap.Error(err))
	}

	err := s.notifications.Enqueue(model.Notification{
		Kind:      enums.NotificationPaymentFailed,
		UserID:    userID,
		Recipient: recipient,
	})
	if err != nil {
		s.logger.Warn("enqueue payment warning", zap.Int64("user_id", userID), zap.Error(err))
	}
}

func (s *Service) identity(ctx context.Context, userID int64) (model.Identity, error) {
	if s.identities == nil {
		return model.Identity{}, ErrDependenciesNil
	}
	identity, err := s.identities.GetIdentity(ctx, userID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrProfileNotFound) {
			return model.Identity{}, ErrIdentityNotFound
		}
		return model.Identity{}, fmt.Errorf("lookup identity: %w", err)
	}
	return identity, nil
}

func (s *Service) ignored(event enums.BillingEventKind, fields ...zap.Field) {
	s.record(event, OutcomeIgnored)
	s.logger.Warn("billing event for unknown subscription", append([]zap.Field{zap.String("event", string(event))}, fields...)...)
}

func (s *Service) record(event enums.BillingEventKind, outcome string) {
	if s.recorder != nil {
		s.recorder.BillingEvent(event, outcome)
	}
}

// checkoutIdempotencyKey is stable for one identity and tier within a time bucket, so
// client retries reuse the provider session.
func checkoutIdempotencyKey(userID int64, tier enums.Tier, now time.Time, bucket time.Duration) string {
	seconds := int64(bucket / time.Second)
	if seconds <= 0 {
		seconds = 1
	}
	slot := now.Unix() / seconds
	name := fmt.Sprintf("checkout:%d:%s:%d", userID, tier, slot)
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)).String()
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	utc := t.UTC()
	return &utc
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
