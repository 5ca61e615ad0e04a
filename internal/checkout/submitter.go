package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"pos-terminal/internal/models"
	"pos-terminal/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// State of the order submission state machine
type State string

const (
	StateIdle         State = "idle"
	StateSubmitting   State = "submitting"
	StateReceiptReady State = "receipt_ready"
	StateFailed       State = "failed"
)

// Reasons an activation is ignored
const (
	IgnoredInFlight = "in_flight"
	IgnoredDisabled = "disabled"
	IgnoredCooldown = "cooldown"
	IgnoredLocked   = "locked"
)

// DefaultCooldown absorbs rapid repeated activation after a submission
const DefaultCooldown = 2 * time.Second

const defaultLockTTL = time.Minute

// Gateway is the server side of a submission
type Gateway interface {
	CreateOrder(ctx context.Context, req *models.OrderRequest, idempotencyKey string) (*models.CreatedOrder, error)
	FetchReceipt(ctx context.Context, orderID string) (string, error)
}

// Lock is an optional lock shared by every process serving the same terminal
type Lock interface {
	AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (token string, ok bool, err error)
	ReleaseLock(ctx context.Context, lockKey, token string) error
}

// CreateOrderError means the order was not created; the cart is still valid
type CreateOrderError struct {
	Err error
}

func (e *CreateOrderError) Error() string {
	return fmt.Sprintf("order creation failed: %v", e.Err)
}

func (e *CreateOrderError) Unwrap() error {
	return e.Err
}

// ReceiptError means the order exists server-side but its receipt could not
// be fetched. Nothing is rolled back.
type ReceiptError struct {
	OrderID string
	Err     error
}

func (e *ReceiptError) Error() string {
	return fmt.Sprintf("order %s was created but its receipt failed: %v", e.OrderID, e.Err)
}

func (e *ReceiptError) Unwrap() error {
	return e.Err
}

// UnconfirmedOrderError means the server accepted the order but its reply
// could not be read. The order may exist, so it must not be resubmitted blindly.
type UnconfirmedOrderError struct {
	Err error
}

func (e *UnconfirmedOrderError) Error() string {
	return fmt.Sprintf("order state unknown: %v", e.Err)
}

func (e *UnconfirmedOrderError) Unwrap() error {
	return e.Err
}

// orderAccepted is implemented by gateway errors raised after a 2xx reply
type orderAccepted interface {
	OrderAccepted() bool
}

// Outcome describes one activation of checkout
type Outcome struct {
	Ignored      bool
	IgnoreReason string
	State        State
	Order        *models.CreatedOrder
	ReceiptHTML  string
	Err          error
}

// OrderID returns the created order id, if any
func (o Outcome) OrderID() string {
	if o.Order != nil {
		return o.Order.ID.String()
	}
	var re *ReceiptError
	if errors.As(o.Err, &re) {
		return re.OrderID
	}
	return ""
}

// Options configure a Submitter
type Options struct {
	Cooldown time.Duration
	Lock     Lock
	LockKey  string
	LockTTL  time.Duration
	// OnTransition observes every state change
	OnTransition func(from, to State)
	Clock        func() time.Time
}

// Submitter runs the create-order then fetch-receipt sequence with at most
// one submission in flight.
type Submitter struct {
	gateway Gateway
	opts    Options
	now     func() time.Time
	logger  *zap.Logger

	mu            sync.Mutex
	state         State
	cooldownUntil time.Time
}

// NewSubmitter creates an idle submitter
func NewSubmitter(gateway Gateway, opts Options) *Submitter {
	if opts.Cooldown <= 0 {
		opts.Cooldown = DefaultCooldown
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = defaultLockTTL
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	return &Submitter{
		gateway: gateway,
		opts:    opts,
		now:     now,
		logger:  util.ComponentLogger("checkout"),
		state:   StateIdle,
	}
}

// State returns the current state
func (s *Submitter) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Submitter) transition(to State) {
	s.mu.Lock()
	from := s.state
	s.state = to
	if from == StateReceiptReady || from == StateFailed {
		s.cooldownUntil = s.now().Add(s.opts.Cooldown)
	}
	s.mu.Unlock()

	s.logger.Debug("Checkout state changed", zap.String("from", string(from)), zap.String("to", string(to)))
	if s.opts.OnTransition != nil {
		s.opts.OnTransition(from, to)
	}
}

// enter applies the entry guard and moves to Submitting
func (s *Submitter) enter(enabled bool) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.state != StateIdle:
		return IgnoredInFlight, false
	case !enabled:
		return IgnoredDisabled, false
	case s.now().Before(s.cooldownUntil):
		return IgnoredCooldown, false
	}
	s.state = StateSubmitting
	return "", true
}

// Submit sends req when the guard allows it. enabled is the checkout control
// state derived from the cart. settle runs while the machine is still in
// ReceiptReady or Failed, before it returns to Idle.
func (s *Submitter) Submit(ctx context.Context, req *models.OrderRequest, enabled bool, settle func(context.Context, Outcome)) Outcome {
	util.CheckoutAttemptsTotal.Inc()

	reason, ok := s.enter(enabled)
	if !ok {
		return s.ignore(reason)
	}
	if s.opts.OnTransition != nil {
		s.opts.OnTransition(StateIdle, StateSubmitting)
	}

	if s.opts.Lock != nil && s.opts.LockKey != "" {
		token, acquired, err := s.opts.Lock.AcquireLock(ctx, s.opts.LockKey, s.opts.LockTTL)
		if err != nil {
			s.logger.Warn("Submission lock unavailable, continuing with local guard", zap.Error(err))
		} else if !acquired {
			s.transition(StateIdle)
			return s.ignore(IgnoredLocked)
		} else {
			defer func() {
				if err := s.opts.Lock.ReleaseLock(context.Background(), s.opts.LockKey, token); err != nil {
					s.logger.Warn("Failed to release submission lock", zap.Error(err))
				}
			}()
		}
	}

	ctx, span := util.StartSpan(ctx, "OrderSubmitter.Submit")
	defer span.End()

	start := time.Now()
	outcome := s.run(ctx, req)
	util.CheckoutLatency.Observe(time.Since(start).Seconds())

	s.transition(outcome.State)
	if settle != nil {
		settle(ctx, outcome)
	}
	s.transition(StateIdle)

	return outcome
}

func (s *Submitter) ignore(reason string) Outcome {
	util.CheckoutIgnoredTotal.WithLabelValues(reason).Inc()
	s.logger.Info("Order already processing or checkout disabled, ignoring activation", zap.String("reason", reason))
	return Outcome{Ignored: true, IgnoreReason: reason, State: StateIdle}
}

func (s *Submitter) run(ctx context.Context, req *models.OrderRequest) Outcome {
	key := uuid.New().String()

	order, err := s.gateway.CreateOrder(ctx, req, key)
	var accepted orderAccepted
	if errors.As(err, &accepted) && accepted.OrderAccepted() {
		util.CheckoutOutcomesTotal.WithLabelValues("unconfirmed").Inc()
		s.logger.Error("Order accepted but unconfirmed", zap.String("idempotency_key", key), zap.Error(err))
		return Outcome{State: StateFailed, Err: &UnconfirmedOrderError{Err: err}}
	}
	if err != nil {
		util.CheckoutOutcomesTotal.WithLabelValues("create_failed").Inc()
		s.logger.Error("Order creation failed", zap.String("idempotency_key", key), zap.Error(err))
		return Outcome{State: StateFailed, Err: &CreateOrderError{Err: err}}
	}

	orderID := order.ID.String()
	html, err := s.gateway.FetchReceipt(ctx, orderID)
	if err != nil {
		util.CheckoutOutcomesTotal.WithLabelValues("receipt_failed").Inc()
		s.logger.Error("Receipt generation failed", zap.String("order_id", orderID), zap.Error(err))
		return Outcome{State: StateFailed, Order: order, Err: &ReceiptError{OrderID: orderID, Err: err}}
	}

	util.CheckoutOutcomesTotal.WithLabelValues("receipt_ready").Inc()
	s.logger.Info("Order completed", zap.String("order_id", orderID))
	return Outcome{State: StateReceiptReady, Order: order, ReceiptHTML: html}
}
