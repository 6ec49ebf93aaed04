package interests

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/ivankudzin/nikah/backend/internal/domain/enums"
	"github.com/ivankudzin/nikah/backend/internal/domain/model"
	"github.com/ivankudzin/nikah/backend/internal/domain/rules"
	pgrepo "github.com/ivankudzin/nikah/backend/internal/repo/postgres"
	ratesvc "github.com/ivankudzin/nikah/backend/internal/services/rate"
)

const (
	defaultListLimit = 100
	maxNoteLength    = 500
)

var (
	ErrValidation        = fmt.Errorf("%w: invalid interest input", model.ErrValidation)
	ErrSelfInterest      = fmt.Errorf("%w: cannot send interest to yourself", model.ErrConflict)
	ErrDuplicateInterest = fmt.Errorf("%w: interest already sent", model.ErrConflict)
	ErrTargetNotFound    = fmt.Errorf("%w: target identity", model.ErrNotFound)
	ErrInterestNotFound  = fmt.Errorf("%w: interest", model.ErrNotFound)
	ErrDependenciesNil   = errors.New("interest ledger dependencies are not configured")
)

type QuotaExceededError struct {
	Remaining int
	ResetIn   time.Duration
}

func (e QuotaExceededError) Error() string {
	return "daily interest quota exceeded"
}

func (e QuotaExceededError) ResetInSec() int64 {
	sec := int64(e.ResetIn / time.Second)
	if e.ResetIn%time.Second != 0 {
		sec++
	}
	return sec
}

func IsQuotaExceeded(err error) (*QuotaExceededError, bool) {
	var qe QuotaExceededError
	if errors.As(err, &qe) {
		return &qe, true
	}
	return nil, false
}

type TooFastError struct {
	RetryAfterSec int64
}

func (e TooFastError) Error() string {
	return "too fast"
}

func (e TooFastError) RetryAfter() int64 {
	if e.RetryAfterSec <= 0 {
		return 1
	}
	return e.RetryAfterSec
}

func IsTooFast(err error) (*TooFastError, bool) {
	var tf TooFastError
	if errors.As(err, &tf) {
		return &tf, true
	}
	return nil, false
}

type TxRunner interface {
	WithTx(ctx context.Context, fn func(context.Context, pgx.Tx) error) error
}

type EdgeStore interface {
	LockPair(ctx context.Context, tx pgx.Tx, userA, userB int64) error
	Exists(ctx context.Context, tx pgx.Tx, sourceUserID, targetUserID int64) (bool, error)
	Insert(ctx context.Context, tx pgx.Tx, edge model.InterestEdge) (model.InterestEdge, error)
	GetDirectedForUpdate(ctx context.Context, tx pgx.Tx, sourceUserID, targetUserID int64) (model.InterestEdge, error)
	MarkMutual(ctx context.Context, tx pgx.Tx, edgeID, reverseEdgeID int64) error
	DeleteBySource(ctx context.Context, edgeID, sourceUserID int64) (bool, error)
	ListByTarget(ctx context.Context, userID int64, limit int) ([]model.InterestEdge, error)
	ListBySource(ctx context.Context, userID int64, limit int) ([]model.InterestEdge, error)
	ListMutualBySource(ctx context.Context, userID int64, limit int) ([]model.InterestEdge, error)
}

type QuotaStore interface {
	LockCounter(ctx context.Context, tx pgx.Tx, userID int64, now time.Time) (model.QuotaCounter, error)
	SaveCounter(ctx context.Context, tx pgx.Tx, counter model.QuotaCounter) error
}

type IdentityDirectory interface {
	GetIdentity(ctx context.Context, userID int64) (model.Identity, error)
	Exists(ctx context.Context, userID int64) (bool, error)
}

// EntitlementReader is read-only: the ledger never writes entitlements.
type EntitlementReader interface {
	Get(ctx context.Context, userID int64) (model.Entitlement, error)
}

type NotificationQueue interface {
	Enqueue(n model.Notification) error
}

type Recorder interface {
	InterestSent(kind enums.InterestKind, exempt bool)
	MatchCreated()
	QuotaRejected()
}

type Config struct {
	DailyLimit int
	Window     time.Duration
	ListLimit  int
}

type Dependencies struct {
	Tx            TxRunner
	Edges         EdgeStore
	Quotas        QuotaStore
	Identities    IdentityDirectory
	Entitlements  EntitlementReader
	Notifications NotificationQueue
	RateLimiter   *ratesvc.Limiter
	Recorder      Recorder
	Logger        *zap.Logger
}

type Service struct {
	tx            TxRunner
	edges         EdgeStore
	quotas        QuotaStore
	identities    IdentityDirectory
	entitlements  EntitlementReader
	notifications NotificationQueue
	rateLimiter   *ratesvc.Limiter
	recorder      Recorder
	logger        *zap.Logger
	cfg           Config
	now           func() time.Time
}

type SendInput struct {
	SourceUserID int64
	TargetUserID int64
	Kind         string
	Note         string
}

// SendResult carries the stored edge. Remaining is -1 for quota-exempt senders.
type SendResult struct {
	Edge      model.InterestEdge
	Mutual    bool
	Exempt    bool
	Remaining int
	ResetAt   *time.Time
}

type QuotaSnapshot struct {
	Remaining int
	Limit     int
	Exempt    bool
	ResetAt   time.Time
}

func NewService(deps Dependencies, cfg Config) *Service {
	if cfg.DailyLimit <= 0 {
		cfg.DailyLimit = rules.DailyInterestLimit
	}
	if cfg.Window <= 0 {
		cfg.Window = rules.QuotaWindow
	}
	if cfg.ListLimit <= 0 {
		cfg.ListLimit = defaultListLimit
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		tx:            deps.Tx,
		edges:         deps.Edges,
		quotas:        deps.Quotas,
		identities:    deps.Identities,
		entitlements:  deps.Entitlements,
		notifications: deps.Notifications,
		rateLimiter:   deps.RateLimiter,
		recorder:      deps.Recorder,
		logger:        logger,
		cfg:           cfg,
		now:           time.Now,
	}
}

func (s *Service) SendInterest(ctx context.Context, in SendInput) (SendResult, error) {
	if in.SourceUserID <= 0 || in.TargetUserID <= 0 {
		return SendResult{}, ErrValidation
	}
	kind, ok := enums.ParseInterestKind(in.Kind)
	if !ok {
		return SendResult{}, fmt.Errorf("%w: unknown kind %q", ErrValidation, in.Kind)
	}
	note, err := normalizeNote(in.Note)
	if err != nil {
		return SendResult{}, err
	}
	if s.tx == nil || s.edges == nil || s.quotas == nil || s.identities == nil {
		return SendResult{}, ErrDependenciesNil
	}
	if in.SourceUserID == in.TargetUserID {
		return SendResult{}, ErrSelfInterest
	}

	exists, err := s.identities.Exists(ctx, in.TargetUserID)
	if err != nil {
		return SendResult{}, fmt.Errorf("lookup target identity: %w", err)
	}
	if !exists {
		return SendResult{}, ErrTargetNotFound
	}

	now := s.now().UTC()
	exempt, err := s.isExempt(ctx, in.SourceUserID, now)
	if err != nil {
		return SendResult{}, err
	}

	var result SendResult
	err = s.tx.WithTx(ctx, func(txCtx context.Context, tx pgx.Tx) error {
		result = SendResult{Exempt: exempt, Remaining: -1}

		if err := s.edges.LockPair(txCtx, tx, in.SourceUserID, in.TargetUserID); err != nil {
			return err
		}

		duplicate, err := s.edges.Exists(txCtx, tx, in.SourceUserID, in.TargetUserID)
		if err != nil {
			return err
		}
		if duplicate {
			return ErrDuplicateInterest
		}

		// Burst slots are charged only for sends that can still create an edge.
		if exempt && s.rateLimiter != nil {
			retryAfter, allowed, err := s.rateLimiter.AllowSend(txCtx, in.SourceUserID)
			if err != nil {
				return fmt.Errorf("consume interest burst limit: %w", err)
			}
			if !allowed {
				return TooFastError{RetryAfterSec: retryAfter}
			}
		}

		var counter model.QuotaCounter
		if !exempt {
			counter, err = s.quotas.LockCounter(txCtx, tx, in.SourceUserID, now)
			if err != nil {
				return err
			}
			counter, _ = rules.RollQuota(counter, now, s.cfg.Window)
			if counter.Count >= s.cfg.DailyLimit {
				return QuotaExceededError{
					Remaining: 0,
					ResetIn:   rules.QuotaResetIn(counter, now, s.cfg.Window),
				}
			}
		}

		edge, err := s.edges.Insert(txCtx, tx, model.InterestEdge{
			SourceUserID: in.SourceUserID,
			TargetUserID: in.TargetUserID,
			Kind:         kind,
			Note:         note,
			Status:       enums.InterestStatusPending,
		})
		if err != nil {
			if errors.Is(err, pgrepo.ErrInterestExists) {
				return ErrDuplicateInterest
			}
			return err
		}

		reverse, err := s.edges.GetDirectedForUpdate(txCtx, tx, in.TargetUserID, in.SourceUserID)
		switch {
		case err == nil:
			if err := s.edges.MarkMutual(txCtx, tx, edge.ID, reverse.ID); err != nil {
				return err
			}
			edge.Mutual = true
			result.Mutual = true
		case errors.Is(err, pgrepo.ErrInterestNotFound):
		default:
			return err
		}

		if !exempt {
			counter.Count++
			if err := s.quotas.SaveCounter(txCtx, tx, counter); err != nil {
				return err
			}
			resetAt := counter.WindowStart.Add(s.cfg.Window)
			result.Remaining = rules.RemainingQuota(counter.Count, s.cfg.DailyLimit)
			result.ResetAt = &resetAt
		}

		result.Edge = edge
		return nil
	})
	if err != nil {
		if _, ok := IsQuotaExceeded(err); ok && s.recorder != nil {
			s.recorder.QuotaRejected()
		}
		return SendResult{}, err
	}

	if s.recorder != nil {
		s.recorder.InterestSent(kind, exempt)
		if result.Mutual {
			s.recorder.MatchCreated()
		}
	}
	if result.Mutual {
		s.notifyGuardian(ctx, in.TargetUserID, in.SourceUserID)
	}

	return result, nil
}

func (s *Service) ListReceived(ctx context.Context, userID int64) ([]model.InterestEdge, error) {
	if userID <= 0 {
		return nil, ErrValidation
	}
	if s.edges == nil {
		return nil, ErrDependenciesNil
	}
	return s.edges.ListByTarget(ctx, userID, s.cfg.ListLimit)
}

func (s *Service) ListSent(ctx context.Context, userID int64) ([]model.InterestEdge, error) {
	if userID <= 0 {
		return nil, ErrValidation
	}
	if s.edges == nil {
		return nil, ErrDependenciesNil
	}
	return s.edges.ListBySource(ctx, userID, s.cfg.ListLimit)
}

func (s *Service) ListMatches(ctx context.Context, userID int64) ([]model.InterestEdge, error) {
	if userID <= 0 {
		return nil, ErrValidation
	}
	if s.edges == nil {
		return nil, ErrDependenciesNil
	}
	return s.edges.ListMutualBySource(ctx, userID, s.cfg.ListLimit)
}

// RemainingQuota only ever writes a due window roll; it never consumes quota.
func (s *Service) RemainingQuota(ctx context.Context, userID int64) (QuotaSnapshot, error) {
	if userID <= 0 {
		return QuotaSnapshot{}, ErrValidation
	}
	if s.tx == nil || s.quotas == nil {
		return QuotaSnapshot{}, ErrDependenciesNil
	}

	now := s.now().UTC()
	exempt, err := s.isExempt(ctx, userID, now)
	if err != nil {
		return QuotaSnapshot{}, err
	}

	var counter model.QuotaCounter
	err = s.tx.WithTx(ctx, func(txCtx context.Context, tx pgx.Tx) error {
		locked, err := s.quotas.LockCounter(txCtx, tx, userID, now)
		if err != nil {
			return err
		}
		rolled, due := rules.RollQuota(locked, now, s.cfg.Window)
		if due {
			if err := s.quotas.SaveCounter(txCtx, tx, rolled); err != nil {
				return err
			}
		}
		counter = rolled
		return nil
	})
	if err != nil {
		return QuotaSnapshot{}, err
	}

	return QuotaSnapshot{
		Remaining: rules.RemainingQuota(counter.Count, s.cfg.DailyLimit),
		Limit:     s.cfg.DailyLimit,
		Exempt:    exempt,
		ResetAt:   counter.WindowStart.Add(s.cfg.Window),
	}, nil
}

// Withdraw deletes an edge owned by userID. The reverse edge keeps its mutual flag and
// the spent quota is not refunded.
func (s *Service) Withdraw(ctx context.Context, userID, edgeID int64) error {
	if userID <= 0 || edgeID <= 0 {
		return ErrValidation
	}
	if s.edges == nil {
		return ErrDependenciesNil
	}

	deleted, err := s.edges.DeleteBySource(ctx, edgeID, userID)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrInterestNotFound
	}
	return nil
}

func (s *Service) isExempt(ctx context.Context, userID int64, now time.Time) (bool, error) {
	if s.entitlements == nil {
		return false, nil
	}

	ent, err := s.entitlements.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrEntitlementNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("resolve entitlement: %w", err)
	}

	return ent.ExemptFromQuota(now), nil
}

func (s *Service) notifyGuardian(ctx context.Context, targetUserID, counterpartID int64) {
	if s.notifications == nil {
		return
	}

	identity, err := s.identities.GetIdentity(ctx, targetUserID)
	if err != nil {
		s.logger.Warn("load identity for guardian notice", zap.Int64("user_id", targetUserID), zap.Error(err))
		return
	}
	if !identity.WantsGuardianMatchNotice() {
		return
	}

	err = s.notifications.Enqueue(model.Notification{
		Kind:          enums.NotificationMatchCreated,
		UserID:        targetUserID,
		CounterpartID: counterpartID,
		Recipient: model.NotificationRecipient{
			TelegramChatID: identity.Guardian.TelegramChatID,
			Email:          identity.Guardian.Email,
		},
	})
	if err != nil {
		s.logger.Warn("enqueue guardian match notice",
			zap.Int64("user_id", targetUserID),
			zap.Int64("counterpart_id", counterpartID),
			zap.Error(err),
		)
	}
}

func normalizeNote(raw string) (*string, error) {
	note := strings.TrimSpace(raw)
	if note == "" {
		return nil, nil
	}
	if utf8.RuneCountInString(note) > maxNoteLength {
		return nil, fmt.Errorf("%w: note is too long", ErrValidation)
	}
	return &note, nil
}
