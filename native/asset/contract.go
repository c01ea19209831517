package asset

import (
	"fmt"
	"math"
	"math/big"
	"strings"

	"github.com/holiman/uint256"

	"github.com/stellarcarbon/sorocarbon/core"
	"github.com/stellarcarbon/sorocarbon/core/state"
	"github.com/stellarcarbon/sorocarbon/crypto"
)

var maxBalance = uint256.NewInt(math.MaxInt64)

// Contract is an in-process asset service bound to one asset address. Every
// method runs in its own frame so that the calling contract counts as the
// direct caller for authorization.
type Contract struct {
	id crypto.Address
}

// New returns a handle for the asset at id without checking that it exists.
func New(id crypto.Address) *Contract {
	return &Contract{id: id}
}

// Load returns a handle for the asset at id, failing with ErrUnknownAsset
// when it was never initialized.
func Load(env *core.Env, id crypto.Address) (*Contract, error) {
	record, err := env.State().Asset(id)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAsset, id)
	}
	return New(id), nil
}

// ID returns the asset address.
func (c *Contract) ID() crypto.Address { return c.id }

// Initialize registers the asset. When authRequired is set new trustlines
// start deauthorized.
func (c *Contract) Initialize(env *core.Env, code string, issuer, admin crypto.Address, authRequired bool) error {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return fail(InternalError, "asset code required")
	}
	if admin.IsZero() {
		return fail(InternalError, "admin required")
	}
	existing, err := env.State().Asset(c.id)
	if err != nil {
		return err
	}
	if existing != nil {
		return fail(AlreadyInitializedError, "%s", c.id)
	}
	return env.State().PutAsset(c.id, &state.AssetRecord{
		Code:         code,
		Issuer:       issuer.Key(),
		Admin:        admin.Key(),
		AuthRequired: authRequired,
	})
}

func (c *Contract) record(env *core.Env) (*state.AssetRecord, error) {
	record, err := env.State().Asset(c.id)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAsset, c.id)
	}
	return record, nil
}

// Code returns the asset code.
func (c *Contract) Code(env *core.Env) (string, error) {
	record, err := c.record(env)
	if err != nil {
		return "", err
	}
	return record.Code, nil
}

// Admin returns the address allowed to mint and manage authorization.
func (c *Contract) Admin(env *core.Env) (crypto.Address, error) {
	record, err := c.record(env)
	if err != nil {
		return crypto.Address{}, err
	}
	return crypto.AddressFromKey(record.Admin)
}

func (c *Contract) requireAdmin(env *core.Env) (*state.AssetRecord, error) {
	record, err := c.record(env)
	if err != nil {
		return nil, err
	}
	admin, err := crypto.AddressFromKey(record.Admin)
	if err != nil {
		return nil, err
	}
	if err := env.RequireAuth(admin); err != nil {
		return nil, err
	}
	return record, nil
}

// SetAdmin hands the admin role to newAdmin.
func (c *Contract) SetAdmin(env *core.Env, newAdmin crypto.Address) error {
	env = env.Frame(c.id)
	record, err := c.requireAdmin(env)
	if err != nil {
		return err
	}
	if newAdmin.IsZero() {
		return fail(InternalError, "admin required")
	}
	record.Admin = newAdmin.Key()
	return env.State().PutAsset(c.id, record)
}

// trustline loads holder's balance row. Contract holders get an implicit
// unlimited row; accounts need an explicit trustline.
func (c *Contract) trustline(env *core.Env, record *state.AssetRecord, holder crypto.Address) (*state.Trustline, error) {
	line, err := env.State().Trustline(c.id, holder)
	if err != nil {
		return nil, err
	}
	if line != nil {
		return line, nil
	}
	if holder.IsContract() {
		return &state.Trustline{
			Balance:    big.NewInt(0),
			Limit:      big.NewInt(math.MaxInt64),
			Authorized: !record.AuthRequired,
		}, nil
	}
	return nil, fail(TrustlineMissingError, "%s has no trustline for %s", holder, record.Code)
}

// CreateTrustline opens a trustline for an existing account holder.
func (c *Contract) CreateTrustline(env *core.Env, holder crypto.Address, limit int64) error {
	env = env.Frame(c.id)
	record, err := c.record(env)
	if err != nil {
		return err
	}
	if holder.IsContract() {
		return fail(AccountIsNotClassic, "%s", holder)
	}
	if err := env.RequireAuth(holder); err != nil {
		return err
	}
	if limit < 0 {
		return fail(NegativeAmountError, "limit %d", limit)
	}
	exists, err := env.State().AccountExists(holder)
	if err != nil {
		return err
	}
	if !exists {
		return fail(AccountMissingError, "%s", holder)
	}
	line, err := env.State().Trustline(c.id, holder)
	if err != nil {
		return err
	}
	if line == nil {
		line = &state.Trustline{Balance: big.NewInt(0), Authorized: !record.AuthRequired}
	}
	if line.Balance.Cmp(big.NewInt(limit)) > 0 {
		return fail(BalanceError, "limit %d below balance %s", limit, line.Balance)
	}
	line.Limit = big.NewInt(limit)
	return env.State().PutTrustline(c.id, holder, line)
}

// Balance returns holder's balance; a missing trustline reads as zero.
func (c *Contract) Balance(env *core.Env, holder crypto.Address) (int64, error) {
	line, err := env.State().Trustline(c.id, holder)
	if err != nil {
		return 0, err
	}
	if line == nil {
		if _, err := c.record(env); err != nil {
			return 0, err
		}
		return 0, nil
	}
	return line.Balance.Int64(), nil
}

// Authorized reports whether holder may currently hold and move the asset.
func (c *Contract) Authorized(env *core.Env, holder crypto.Address) (bool, error) {
	record, err := c.record(env)
	if err != nil {
		return false, err
	}
	line, err := c.trustline(env, record, holder)
	if err != nil {
		return false, err
	}
	return line.Authorized, nil
}

// SetAuthorized toggles holder's authorization flag.
func (c *Contract) SetAuthorized(env *core.Env, holder crypto.Address, authorize bool) error {
	env = env.Frame(c.id)
	record, err := c.requireAdmin(env)
	if err != nil {
		return err
	}
	line, err := c.trustline(env, record, holder)
	if err != nil {
		return err
	}
	line.Authorized = authorize
	return env.State().PutTrustline(c.id, holder, line)
}

// Mint issues amount to holder.
func (c *Contract) Mint(env *core.Env, to crypto.Address, amount int64) error {
	env = env.Frame(c.id)
	record, err := c.requireAdmin(env)
	if err != nil {
		return err
	}
	if amount < 0 {
		return fail(NegativeAmountError, "amount %d", amount)
	}
	line, err := c.trustline(env, record, to)
	if err != nil {
		return err
	}
	if !line.Authorized {
		return fail(BalanceDeauthorizedError, "%s is not authorized for %s", to, record.Code)
	}
	balance, overflow := uint256.FromBig(line.Balance)
	if overflow {
		return fail(OverflowError, "balance of %s", to)
	}
	next, overflow := new(uint256.Int).AddOverflow(balance, uint256.NewInt(uint64(amount)))
	if overflow || next.Gt(maxBalance) {
		return fail(OverflowError, "balance of %s", to)
	}
	limit, overflow := uint256.FromBig(line.Limit)
	if overflow {
		return fail(OverflowError, "limit of %s", to)
	}
	if next.Gt(limit) {
		return fail(BalanceError, "balance of %s would exceed limit %s", to, line.Limit)
	}
	line.Balance = next.ToBig()
	return env.State().PutTrustline(c.id, to, line)
}

// Burn destroys amount from holder's balance. The holder must authorize.
func (c *Contract) Burn(env *core.Env, from crypto.Address, amount int64) error {
	env = env.Frame(c.id)
	record, err := c.record(env)
	if err != nil {
		return err
	}
	if err := env.RequireAuth(from); err != nil {
		return err
	}
	if amount < 0 {
		return fail(NegativeAmountError, "amount %d", amount)
	}
	line, err := c.trustline(env, record, from)
	if err != nil {
		return err
	}
	if !line.Authorized {
		return fail(BalanceDeauthorizedError, "%s is not authorized for %s", from, record.Code)
	}
	balance, overflow := uint256.FromBig(line.Balance)
	if overflow {
		return fail(OverflowError, "balance of %s", from)
	}
	debit := uint256.NewInt(uint64(amount))
	if balance.Lt(debit) {
		return fail(BalanceError, "balance of %s is %s, need %d", from, line.Balance, amount)
	}
	line.Balance = new(uint256.Int).Sub(balance, debit).ToBig()
	return env.State().PutTrustline(c.id, from, line)
}

// CreateAccount opens a classic account for addr.
func CreateAccount(env *core.Env, addr crypto.Address) error {
	if addr.IsContract() {
		return fail(AccountIsNotClassic, "%s", addr)
	}
	return env.State().CreateAccount(addr)
}
