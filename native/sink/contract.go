package sink

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"

	"lukechampine.com/blake3"

	"github.com/stellarcarbon/sorocarbon/core"
	"github.com/stellarcarbon/sorocarbon/core/events"
	"github.com/stellarcarbon/sorocarbon/core/state"
	"github.com/stellarcarbon/sorocarbon/crypto"
	"github.com/stellarcarbon/sorocarbon/observability/logging"
)

// SinkRequest is one retirement order.
type SinkRequest struct {
	Funder    crypto.Address
	Recipient crypto.Address
	Amount    int64
	ProjectID string
	MemoText  string
	Email     string
}

// Contract retires the source asset and issues the certificate asset in a
// single invocation. All methods expect to run inside core.Node.Invoke.
type Contract struct {
	id     crypto.Address
	assets AssetResolver
	logger *slog.Logger
}

// New returns the contract deployed at id. A nil resolver selects the
// in-process asset services.
func New(id crypto.Address, assets AssetResolver, logger *slog.Logger) *Contract {
	if assets == nil {
		assets = NativeAssets()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Contract{id: id, assets: assets, logger: logger.With(slog.String("component", "sink"))}
}

// ID returns the contract address.
func (c *Contract) ID() crypto.Address { return c.id }

func (c *Contract) frame(env *core.Env) *core.Env {
	if env.CurrentContract().Equal(c.id) {
		return env
	}
	return env.Frame(c.id)
}

// enter opens instance storage and refreshes its TTL. Every entry point but
// Initialize starts here.
func (c *Contract) enter(env *core.Env) (*core.Env, *PolicyStore, error) {
	env = c.frame(env)
	inst, err := env.Instance()
	if err != nil {
		return nil, nil, core.Abort(fmt.Errorf("sink: open instance: %w", err))
	}
	if err := extendInstanceTTL(inst); err != nil {
		return nil, nil, core.Abort(fmt.Errorf("sink: extend ttl: %w", err))
	}
	return env, NewPolicyStore(inst), nil
}

func (c *Contract) resolve(env *core.Env, id crypto.Address) (AssetService, error) {
	svc, err := c.assets.Resolve(env, id)
	if err != nil {
		return nil, core.Abort(fmt.Errorf("sink: resolve asset %s: %w", id, err))
	}
	return svc, nil
}

// Initialize creates the contract instance and writes the default policy.
// It may run once per contract address.
func (c *Contract) Initialize(env *core.Env, admin, sourceAsset, certificateAsset crypto.Address) error {
	env = c.frame(env)
	inst, err := env.State().CreateInstance(c.id, env.Ledger(), env.MinInstanceTTL())
	if errors.Is(err, state.ErrInstanceExists) {
		return core.Abort(ErrAlreadyInitialized)
	}
	if err != nil {
		return core.Abort(fmt.Errorf("sink: create instance: %w", err))
	}
	if err := NewPolicyStore(inst).Initialize(admin, sourceAsset, certificateAsset); err != nil {
		return core.Abort(err)
	}
	return nil
}

// Sink burns the quantized amount from the funder and mints the same amount
// of the certificate asset to the recipient.
func (c *Contract) Sink(env *core.Env, req SinkRequest) error {
	env, store, err := c.enter(env)
	if err != nil {
		return err
	}
	active, err := store.IsActive()
	if err != nil {
		return core.Abort(err)
	}
	if !active {
		return ErrContractDeactivated
	}

	amount := Quantize(req.Amount)
	minimum, err := store.Minimum()
	if err != nil {
		return core.Abort(err)
	}
	if amount < minimum {
		return ErrAmountTooLow
	}

	if err := env.RequireAuth(req.Funder); err != nil {
		return err
	}

	sourceID, err := store.SourceAsset()
	if err != nil {
		return core.Abort(err)
	}
	source, err := c.resolve(env, sourceID)
	if err != nil {
		return err
	}
	if err := c.classify(env, StepBurn, source.Burn(env, req.Funder, amount)); err != nil {
		return err
	}

	certificateID, err := store.CertificateAsset()
	if err != nil {
		return core.Abort(err)
	}
	certificate, err := c.resolve(env, certificateID)
	if err != nil {
		return err
	}
	if err := c.classify(env, StepAuthorize, certificate.SetAuthorized(env, req.Recipient, true)); err != nil {
		return err
	}
	if err := c.classify(env, StepMint, certificate.Mint(env, req.Recipient, amount)); err != nil {
		return err
	}
	if err := c.classify(env, StepDeauthorize, certificate.SetAuthorized(env, req.Recipient, false)); err != nil {
		return err
	}

	seq, err := store.NextRetirement()
	if err != nil {
		return core.Abort(err)
	}
	evt := events.SinkRetired{
		Contract:  c.id,
		Funder:    req.Funder,
		Recipient: req.Recipient,
		Requested: req.Amount,
		Amount:    amount,
		ProjectID: req.ProjectID,
		MemoText:  req.MemoText,
		Email:     req.Email,
		Ledger:    env.Ledger(),
		ReceiptID: ReceiptID(c.id, req.Funder, req.Recipient, amount, env.Ledger(), seq),
	}
	env.Emit(evt)
	c.logger.Info("carbon sunk",
		slog.String("funder", req.Funder.String()),
		slog.String("recipient", req.Recipient.String()),
		slog.Int64("amount", amount),
		slog.String("project", req.ProjectID),
		logging.MaskField("memo", req.MemoText),
		logging.MaskField("email", req.Email),
		slog.String("receipt", evt.ReceiptID))
	return nil
}

// ReceiptID derives the retirement receipt identifier.
func ReceiptID(contract, funder, recipient crypto.Address, amount int64, ledger uint32, seq uint64) string {
	buf := make([]byte, 0, 3*(1+crypto.AddressLength)+20)
	buf = append(buf, contract.Key()...)
	buf = append(buf, funder.Key()...)
	buf = append(buf, recipient.Key()...)
	buf = binary.BigEndian.AppendUint64(buf, uint64(amount))
	buf = binary.BigEndian.AppendUint32(buf, ledger)
	buf = binary.BigEndian.AppendUint64(buf, seq)
	sum := blake3.Sum256(buf)
	return hex.EncodeToString(sum[:])
}

// GetMinimum returns the smallest quantized amount Sink accepts.
func (c *Contract) GetMinimum(env *core.Env) (int64, error) {
	_, store, err := c.enter(env)
	if err != nil {
		return 0, err
	}
	minimum, err := store.Minimum()
	if err != nil {
		return 0, core.Abort(err)
	}
	return minimum, nil
}

// IsActive reports whether Sink accepts orders.
func (c *Contract) IsActive(env *core.Env) (bool, error) {
	_, store, err := c.enter(env)
	if err != nil {
		return false, err
	}
	active, err := store.IsActive()
	if err != nil {
		return false, core.Abort(err)
	}
	return active, nil
}

// GetSuccessor returns the successor pointer, or the contract's own address
// when none is set. It does not follow chains; see ResolveSuccessor.
func (c *Contract) GetSuccessor(env *core.Env) (crypto.Address, error) {
	_, store, err := c.enter(env)
	if err != nil {
		return crypto.Address{}, err
	}
	successor, ok, err := store.Successor()
	if err != nil {
		return crypto.Address{}, core.Abort(err)
	}
	if !ok {
		return c.id, nil
	}
	return successor, nil
}

// GetAdmin returns the current admin.
func (c *Contract) GetAdmin(env *core.Env) (crypto.Address, error) {
	_, store, err := c.enter(env)
	if err != nil {
		return crypto.Address{}, err
	}
	admin, err := store.Admin()
	if err != nil {
		return crypto.Address{}, core.Abort(err)
	}
	return admin, nil
}
