package events

import (
	"strconv"

	"github.com/stellarcarbon/sorocarbon/core/types"
	"github.com/stellarcarbon/sorocarbon/crypto"
)

const (
	TypeMinimumUpdated    = "sink.minimum_updated"
	TypeActivationChanged = "sink.activation_changed"
	TypeAdminReset        = "sink.admin_reset"
	TypeSuccessorSet      = "sink.successor_set"
)

type MinimumUpdated struct {
	Contract crypto.Address
	Minimum  int64
	Ledger   uint32
}

func (MinimumUpdated) EventType() string { return TypeMinimumUpdated }

func (e MinimumUpdated) Event() *types.Event {
	return &types.Event{
		Type:     TypeMinimumUpdated,
		Contract: e.Contract.String(),
		Ledger:   e.Ledger,
		Attributes: map[string]string{
			"minimum": strconv.FormatInt(e.Minimum, 10),
			"tonnes":  Tonnes(e.Minimum).StringFixed(AssetDecimals),
		},
	}
}

type ActivationChanged struct {
	Contract crypto.Address
	Active   bool
	Ledger   uint32
}

func (ActivationChanged) EventType() string { return TypeActivationChanged }

func (e ActivationChanged) Event() *types.Event {
	return &types.Event{
		Type:     TypeActivationChanged,
		Contract: e.Contract.String(),
		Ledger:   e.Ledger,
		Attributes: map[string]string{
			"active": strconv.FormatBool(e.Active),
		},
	}
}

// AdminReset records the certificate asset's admin role being handed back.
type AdminReset struct {
	Contract         crypto.Address
	CertificateAsset crypto.Address
	Admin            crypto.Address
	Ledger           uint32
}

func (AdminReset) EventType() string { return TypeAdminReset }

func (e AdminReset) Event() *types.Event {
	return &types.Event{
		Type:     TypeAdminReset,
		Contract: e.Contract.String(),
		Ledger:   e.Ledger,
		Attributes: map[string]string{
			"certificateAsset": e.CertificateAsset.String(),
			"admin":            e.Admin.String(),
		},
	}
}

type SuccessorSet struct {
	Contract  crypto.Address
	Successor crypto.Address
	Ledger    uint32
}

func (SuccessorSet) EventType() string { return TypeSuccessorSet }

func (e SuccessorSet) Event() *types.Event {
	return &types.Event{
		Type:     TypeSuccessorSet,
		Contract: e.Contract.String(),
		Ledger:   e.Ledger,
		Attributes: map[string]string{
			"successor": e.Successor.String(),
		},
	}
}
