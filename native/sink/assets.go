package sink

import (
	"github.com/stellarcarbon/sorocarbon/core"
	"github.com/stellarcarbon/sorocarbon/crypto"
	"github.com/stellarcarbon/sorocarbon/native/asset"
)

// AssetService is the asset-service surface the swap consumes. Failures carry
// a numeric code through an ErrorCode() uint32 method; failures without one
// are treated as transport failures.
type AssetService interface {
	Burn(env *core.Env, from crypto.Address, amount int64) error
	Mint(env *core.Env, to crypto.Address, amount int64) error
	SetAuthorized(env *core.Env, holder crypto.Address, authorize bool) error
	Balance(env *core.Env, holder crypto.Address) (int64, error)
	SetAdmin(env *core.Env, newAdmin crypto.Address) error
}

// AssetResolver locates the asset service at an address.
type AssetResolver interface {
	Resolve(env *core.Env, id crypto.Address) (AssetService, error)
}

// AssetResolverFunc adapts a function to AssetResolver.
type AssetResolverFunc func(env *core.Env, id crypto.Address) (AssetService, error)

func (f AssetResolverFunc) Resolve(env *core.Env, id crypto.Address) (AssetService, error) {
	return f(env, id)
}

// NativeAssets resolves asset services hosted in the same state.
func NativeAssets() AssetResolver {
	return AssetResolverFunc(func(env *core.Env, id crypto.Address) (AssetService, error) {
		svc, err := asset.Load(env, id)
		if err != nil {
			return nil, err
		}
		return svc, nil
	})
}
