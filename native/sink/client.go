package sink

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/stellarcarbon/sorocarbon/auth"
	"github.com/stellarcarbon/sorocarbon/core"
	"github.com/stellarcarbon/sorocarbon/crypto"
	"github.com/stellarcarbon/sorocarbon/observability"
)

// Client runs contract entry points as host invocations, one storage
// transaction each.
type Client struct {
	node     *core.Node
	contract *Contract
	tracer   trace.Tracer
	metrics  *observability.SinkMetrics
	logger   *slog.Logger
}

// NewClient binds contract to node.
func NewClient(node *core.Node, contract *Contract, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		node:     node,
		contract: contract,
		tracer:   otel.Tracer("github.com/stellarcarbon/sorocarbon/native/sink"),
		metrics:  observability.Sink(),
		logger:   logger,
	}
}

// Contract returns the contract address.
func (c *Client) Contract() crypto.Address { return c.contract.ID() }

// Node returns the execution host.
func (c *Client) Node() *core.Node { return c.node }

// At returns a client for the sink contract deployed at addr on the same host.
func (c *Client) At(addr crypto.Address) *Client {
	clone := *c
	clone.contract = New(addr, c.contract.assets, c.contract.logger)
	return &clone
}

func (c *Client) invoke(ctx context.Context, inv auth.Invocation, ac auth.Context, fn func(*core.Env) error) error {
	ctx, span := c.tracer.Start(ctx, "sink."+inv.Function, trace.WithAttributes(
		attribute.String("sink.contract", inv.Contract.String()),
	))
	defer span.End()

	start := time.Now()
	err := c.node.Invoke(ctx, inv, ac, fn)
	outcome := observability.OutcomeOK
	var code uint32
	switch typed, ok := AsError(err); {
	case err == nil:
	case ok && !core.IsAbort(err):
		outcome = observability.OutcomeTyped
		code = typed.ErrorCode()
		span.SetAttributes(attribute.Int64("sink.error_code", int64(code)))
		c.logger.Info("sink invocation rejected",
			slog.String("function", inv.Function),
			slog.String("error", typed.Name()))
	default:
		outcome = observability.OutcomeFatal
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	c.metrics.ObserveInvocation(inv.Function, outcome, code, time.Since(start))
	return err
}

// Initialize deploys the contract's policy. It needs no authorization.
func (c *Client) Initialize(ctx context.Context, admin, sourceAsset, certificateAsset crypto.Address) error {
	inv := AdminInvocation(c.Contract(), FnInitialize)
	return c.invoke(ctx, inv, auth.None{}, func(env *core.Env) error {
		return c.contract.Initialize(env, admin, sourceAsset, certificateAsset)
	})
}

// Sink retires req.Amount on behalf of req.Funder, who must be authorized by
// ac.
// Sink retires req and returns the ledger the retirement executed at.
func (c *Client) Sink(ctx context.Context, ac auth.Context, req SinkRequest) (uint32, error) {
	var ledger uint32
	err := c.invoke(ctx, SinkInvocation(c.Contract(), req), ac, func(env *core.Env) error {
		ledger = env.Ledger()
		return c.contract.Sink(env, req)
	})
	if err != nil {
		return 0, err
	}
	c.metrics.RecordRetirement(Quantize(req.Amount))
	return ledger, nil
}

func (c *Client) GetMinimum(ctx context.Context) (int64, error) {
	var minimum int64
	err := c.invoke(ctx, AdminInvocation(c.Contract(), FnGetMinimum), auth.None{}, func(env *core.Env) error {
		var err error
		minimum, err = c.contract.GetMinimum(env)
		return err
	})
	return minimum, err
}

func (c *Client) IsActive(ctx context.Context) (bool, error) {
	var active bool
	err := c.invoke(ctx, AdminInvocation(c.Contract(), FnIsActive), auth.None{}, func(env *core.Env) error {
		var err error
		active, err = c.contract.IsActive(env)
		return err
	})
	return active, err
}

func (c *Client) GetSuccessor(ctx context.Context) (crypto.Address, error) {
	var successor crypto.Address
	err := c.invoke(ctx, AdminInvocation(c.Contract(), FnGetSuccessor), auth.None{}, func(env *core.Env) error {
		var err error
		successor, err = c.contract.GetSuccessor(env)
		return err
	})
	return successor, err
}

func (c *Client) GetAdmin(ctx context.Context) (crypto.Address, error) {
	var admin crypto.Address
	err := c.invoke(ctx, AdminInvocation(c.Contract(), FnGetAdmin), auth.None{}, func(env *core.Env) error {
		var err error
		admin, err = c.contract.GetAdmin(env)
		return err
	})
	return admin, err
}

func (c *Client) SetMinimum(ctx context.Context, ac auth.Context, amount int64) error {
	return c.invoke(ctx, SetMinimumInvocation(c.Contract(), amount), ac, func(env *core.Env) error {
		return c.contract.SetMinimum(env, amount)
	})
}

func (c *Client) Activate(ctx context.Context, ac auth.Context) error {
	return c.invoke(ctx, AdminInvocation(c.Contract(), FnActivate), ac, c.contract.Activate)
}

func (c *Client) Deactivate(ctx context.Context, ac auth.Context) error {
	return c.invoke(ctx, AdminInvocation(c.Contract(), FnDeactivate), ac, c.contract.Deactivate)
}

func (c *Client) ResetAdmin(ctx context.Context, ac auth.Context) (crypto.Address, error) {
	var admin crypto.Address
	err := c.invoke(ctx, AdminInvocation(c.Contract(), FnResetAdmin), ac, func(env *core.Env) error {
		var err error
		admin, err = c.contract.ResetAdmin(env)
		return err
	})
	return admin, err
}

func (c *Client) SetSuccessor(ctx context.Context, ac auth.Context, successor crypto.Address) error {
	return c.invoke(ctx, SetSuccessorInvocation(c.Contract(), successor), ac, func(env *core.Env) error {
		return c.contract.SetSuccessor(env, successor)
	})
}
