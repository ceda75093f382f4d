package inventory

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/farm-ledger/internal/metrics"
	"github.com/sells-group/farm-ledger/internal/resilience"
)

// Result is the outcome of a stock side effect. A failed Result is not an
// operation failure: callers record it as a note and carry on.
type Result struct {
	Transfer *Transfer
	Err      error
}

// OK reports whether the side effect completed.
func (r Result) OK() bool { return r.Err == nil }

// Gateway runs inventory side effects with retries and converts their
// failures into Results.
type Gateway struct {
	inv     Inventory
	retry   resilience.RetryConfig
	metrics *metrics.Metrics
}

// NewGateway wraps inv. m may be nil.
func NewGateway(inv Inventory, retry resilience.RetryConfig, m *metrics.Metrics) *Gateway {
	return &Gateway{inv: inv, retry: retry, metrics: m}
}

// Inventory returns the wrapped collaborator for read-only lookups.
func (g *Gateway) Inventory() Inventory { return g.inv }

func (g *Gateway) policy(op string) resilience.RetryConfig {
	cfg := g.retry
	cfg.OnRetry = resilience.RetryLogger("inventory", op)
	return cfg
}

func (g *Gateway) fail(op string, origin string, err error) Result {
	g.metrics.SoftFailure("inventory", op)
	zap.L().Warn("inventory side effect failed",
		zap.String("operation", op),
		zap.String("origin", origin),
		zap.Error(err),
	)
	return Result{Err: err}
}

// Move creates a transfer and validates it immediately.
func (g *Gateway) Move(ctx context.Context, req TransferRequest) Result {
	t, err := resilience.DoVal(ctx, g.policy("create_transfer"), func(ctx context.Context) (*Transfer, error) {
		return g.inv.CreateTransfer(ctx, req)
	})
	if err != nil {
		return g.fail("create_transfer", req.Origin, err)
	}
	res := g.Validate(ctx, t.ID)
	if !res.OK() {
		res.Transfer = t
	}
	return res
}

// Create creates a transfer without validating it.
func (g *Gateway) Create(ctx context.Context, req TransferRequest) Result {
	t, err := resilience.DoVal(ctx, g.policy("create_transfer"), func(ctx context.Context) (*Transfer, error) {
		return g.inv.CreateTransfer(ctx, req)
	})
	if err != nil {
		return g.fail("create_transfer", req.Origin, err)
	}
	return Result{Transfer: t}
}

// Validate completes an existing transfer.
func (g *Gateway) Validate(ctx context.Context, id string) Result {
	t, err := resilience.DoVal(ctx, g.policy("validate_transfer"), func(ctx context.Context) (*Transfer, error) {
		return g.inv.ValidateTransfer(ctx, id)
	})
	if err != nil {
		return g.fail("validate_transfer", id, err)
	}
	return Result{Transfer: t}
}

// Cancel cancels a transfer. Unlike the other calls its error is returned,
// since some callers must refuse to proceed when cancellation fails.
func (g *Gateway) Cancel(ctx context.Context, id string, force bool) error {
	err := resilience.Do(ctx, g.policy("cancel_transfer"), func(ctx context.Context) error {
		return g.inv.CancelTransfer(ctx, id, force)
	})
	if err != nil {
		g.fail("cancel_transfer", id, err)
	}
	return err
}
