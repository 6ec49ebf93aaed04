package payments

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ivankudzin/nikah/backend/internal/domain/enums"
	"github.com/ivankudzin/nikah/backend/internal/domain/model"
	entitlementsvc "github.com/ivankudzin/nikah/backend/internal/services/entitlements"
)

var (
	ErrValidation      = fmt.Errorf("%w: invalid webhook payload", model.ErrValidation)
	ErrDependenciesNil = errors.New("payments dependencies are not configured")
)

// EventParser verifies a provider webhook and reduces it to a BillingEvent.
type EventParser interface {
	ParseWebhook(ctx context.Context, payload []byte, signature string) (model.BillingEvent, error)
}

type Reconciler interface {
	CheckoutCompleted(ctx context.Context, ev entitlementsvc.CheckoutCompleted) error
	SubscriptionUpdated(ctx context.Context, ev entitlementsvc.SubscriptionChange) error
	SubscriptionDeleted(ctx context.Context, ref string) error
	PaymentFailed(ctx context.Context, ref string) error
	PaymentSucceeded(ctx context.Context, ref string) error
}

type Dependencies struct {
	Parser     EventParser
	Reconciler Reconciler
	Logger     *zap.Logger
}

type Service struct {
	parser     EventParser
	reconciler Reconciler
	logger     *zap.Logger
}

type WebhookResult struct {
	EventID string
	Kind    enums.BillingEventKind
	Handled bool
}

func NewService(deps Dependencies) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		parser:     deps.Parser,
		reconciler: deps.Reconciler,
		logger:     logger,
	}
}

// HandleWebhook routes one verified event to its reconciler transition. Events the
// reconciler has no transition for are acknowledged without side effects.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) (WebhookResult, error) {
	if len(payload) == 0 || signature == "" {
		return WebhookResult{}, ErrValidation
	}
	if s.parser == nil || s.reconciler == nil {
		return WebhookResult{}, ErrDependenciesNil
	}

	ev, err := s.parser.ParseWebhook(ctx, payload, signature)
	if err != nil {
		return WebhookResult{}, err
	}

	result := WebhookResult{EventID: ev.ID, Kind: ev.Kind, Handled: true}
	switch ev.Kind {
	case enums.BillingCheckoutCompleted:
		err = s.reconciler.CheckoutCompleted(ctx, entitlementsvc.CheckoutCompleted{
			UserID:      ev.UserID,
			Ref:         ev.Ref,
			Tier:        ev.Tier,
			PeriodStart: ev.PeriodStart,
			PeriodEnd:   ev.PeriodEnd,
		})
	case enums.BillingSubscriptionUpdated:
		err = s.reconciler.SubscriptionUpdated(ctx, entitlementsvc.SubscriptionChange{
			Ref:            ev.Ref,
			PeriodStart:    ev.PeriodStart,
			PeriodEnd:      ev.PeriodEnd,
			ProviderStatus: ev.ProviderStatus,
		})
	case enums.BillingSubscriptionDeleted:
		err = s.reconciler.SubscriptionDeleted(ctx, ev.Ref)
	case enums.BillingPaymentFailed:
		err = s.reconciler.PaymentFailed(ctx, ev.Ref)
	case enums.BillingPaymentSucceeded:
		err = s.reconciler.PaymentSucceeded(ctx, ev.Ref)
	default:
		result.Handled = false
		s.logger.Debug("billing webhook ignored",
			zap.String("event_id", ev.ID),
			zap.String("provider_type", ev.ProviderType),
		)
		return result, nil
	}
	if err != nil {
		s.logger.Error("billing webhook failed",
			zap.String("event_id", ev.ID),
			zap.String("kind", string(ev.Kind)),
			zap.String("ref", ev.Ref),
			zap.Error(err),
		)
		return WebhookResult{}, fmt.Errorf("reconcile %s: %w", ev.Kind, err)
	}

	s.logger.Info("billing webhook reconciled",
		zap.String("event_id", ev.ID),
		zap.String("kind", string(ev.Kind)),
		zap.String("ref", ev.Ref),
	)
	return result, nil
}
