// SPDX-License-Identifier: BUSL-1.1
//
// system_contracts.go implements the two system contracts every deploy can
// reach directly, bypassing wasm instantiation entirely (spec section 4.7):
// Mint (purse creation, balance, transfer, minting) and Proof-of-Stake
// (payment-purse handling and finalize_payment). Grounded on
// _examples/original_source/execution-engine (mint-install/src/main.rs installs
// the purse-balance layout at genesis; mint-token/src/lib.rs implements
// mint/create/balance/transfer as plain functions over the same Key/URef
// model used everywhere else in this package, rather than as a separate
// subsystem).
package core

import (
	"fmt"
	"math/big"
)

// MintContract owns the purse-balance sub-namespace of global state: every
// purse is a URef whose value is a CLU512 balance.
type MintContract struct{}

func NewMintContract() *MintContract { return &MintContract{} }

// CreatePurse mints a fresh, zero-balance purse.
func (m *MintContract) CreatePurse(rc *RuntimeContext) (URef, error) {
	u := rc.NewURef()
	if err := rc.Write(URefKey(u), NewCLValueStoredValue(CLU512(big.NewInt(0)))); err != nil {
		return URef{}, err
	}
	return u, nil
}

// Balance reads a purse's current balance. A purse that resolves to nothing
// (never created, or the caller lacks read access) reports ValueNotFound.
func (m *MintContract) Balance(rc *RuntimeContext, purse URef) (*big.Int, error) {
	sv, ok, err := rc.Read(URefKey(purse))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, Revert(ApiValueNotFound)
	}
	cl, err := sv.AsCLValue()
	if err != nil {
		return nil, err
	}
	return cl.AsU512()
}

// Mint credits amount onto an existing purse. Genesis installation calls
// this directly; guest code reaches it through the Mint contract's "mint"
// entry point (Call), which needs ADD access to the purse.
func (m *MintContract) Mint(rc *RuntimeContext, purse URef, amount *big.Int) error {
	return rc.AddU512(URefKey(purse), amount)
}

// TransferPurseToPurse debits src and credits dst by amount, failing with
// ApiTransfer (surfaced as a revert, not a fatal error — spec
// section 7's boundary between contract-observable and fatal conditions)
// if src's balance is too low. Reads-then-writes rather than a single
// signed Add so the check happens before any transform is recorded.
func (m *MintContract) TransferPurseToPurse(rc *RuntimeContext, src, dst URef, amount *big.Int) error {
	if src.SameAddress(dst) {
		return Revert(ApiInvalidPurse)
	}
	bal, err := m.Balance(rc, src)
	if err != nil {
		return err
	}
	if bal.Cmp(amount) < 0 {
		return Revert(ApiTransfer)
	}
	if err := rc.AddU512(URefKey(src), new(big.Int).Neg(amount)); err != nil {
		return err
	}
	return rc.AddU512(URefKey(dst), amount)
}

// TransferToAccount resolves dest's main purse (provisioning one if the
// account has none yet is out of scope here: the account must already
// exist, per spec section 3) and transfers from the caller's main purse.
func (m *MintContract) TransferToAccount(rc *RuntimeContext, dest Address, amount *big.Int) error {
	destSV, ok, err := rc.Read(AccountKey(dest))
	if err != nil {
		return err
	}
	if !ok || destSV.Tag != SVTagAccount {
		return Revert(ApiInvalidPurse)
	}
	callerKey := rc.BaseKey()
	if callerKey.Tag != KeyTagAccount {
		return ErrInvalidContext
	}
	callerSV, ok, err := rc.Read(callerKey)
	if err != nil {
		return err
	}
	if !ok || callerSV.Tag != SVTagAccount {
		return Revert(ApiInvalidPurse)
	}
	return m.TransferPurseToPurse(rc, callerSV.Account.MainPurse, destSV.Account.MainPurse, amount)
}

// Call dispatches one of the Mint entry points by name, for the executor's
// direct system-contract fast path. The deploy pipeline and finalize_payment
// call Balance and TransferPurseToPurse directly instead.
func (m *MintContract) Call(rc *RuntimeContext, entryPoint string, args map[string]CLValue) ([]byte, error) {
	switch entryPoint {
	case "create":
		u, err := m.CreatePurse(rc)
		if err != nil {
			return nil, err
		}
		return CLURef(u).ToBytes()
	case "balance":
		purseArg, ok := args["purse"]
		if !ok {
			return nil, Revert(ApiMissingArgument)
		}
		purse, err := purseArg.AsURef()
		if err != nil {
			return nil, err
		}
		bal, err := m.Balance(rc, purse)
		if err != nil {
			return nil, err
		}
		return CLU512(bal).ToBytes()
	case "mint":
		purseArg, ok := args["purse"]
		if !ok {
			return nil, Revert(ApiMissingArgument)
		}
		purse, err := purseArg.AsURef()
		if err != nil {
			return nil, err
		}
		amtArg, ok := args["amount"]
		if !ok {
			return nil, Revert(ApiMissingArgument)
		}
		amt, err := amtArg.AsU512()
		if err != nil {
			return nil, err
		}
		return nil, m.Mint(rc, purse, amt)
	case "transfer":
		srcArg, okS := args["source"]
		dstArg, okD := args["target"]
		amtArg, okA := args["amount"]
		if !okS || !okD || !okA {
			return nil, Revert(ApiMissingArgument)
		}
		src, err := srcArg.AsURef()
		if err != nil {
			return nil, err
		}
		dst, err := dstArg.AsURef()
		if err != nil {
			return nil, err
		}
		amt, err := amtArg.AsU512()
		if err != nil {
			return nil, err
		}
		return nil, m.TransferPurseToPurse(rc, src, dst, amt)
	default:
		return nil, Revert(ApiNoSuchMethod)
	}
}

// ProofOfStakeContract owns the payment-purse protocol of spec section 4.6:
// the payment phase deposits motes into a purse the engine controls, and
// finalize_payment sweeps the actually-consumed amount to the proposer's
// purse and refunds the remainder to the payer.
type ProofOfStakeContract struct {
	mint *MintContract

	// paymentPurse is the well-known purse the payment phase pays into; it is
	// set once at construction and shared by every deploy.
	paymentPurse URef
	refundPurse  *URef
}

func NewProofOfStakeContract(mint *MintContract, paymentPurse URef) *ProofOfStakeContract {
	return &ProofOfStakeContract{mint: mint, paymentPurse: paymentPurse}
}

// GetPaymentPurse returns the purse the payment phase should pay into.
func (p *ProofOfStakeContract) GetPaymentPurse(rc *RuntimeContext) (URef, error) {
	return p.paymentPurse, nil
}

// SetRefundPurse lets the payer designate where any payment-phase overpay is
// returned; defaults to the payer's main purse if never called.
func (p *ProofOfStakeContract) SetRefundPurse(purse URef) {
	p.refundPurse = &purse
}

// FinalizePayment sweeps gasSpentMotes from the payment purse to the block
// proposer's purse and refunds the remainder to the refund purse (or the
// payer's main purse if none was set), per spec section 4.6's finalize
// phase. This always runs as a direct system-contract call, never as wasm
// (spec section 4.7).
func (p *ProofOfStakeContract) FinalizePayment(rc *RuntimeContext, gasSpentMotes *big.Int, payer Address, proposer Address) error {
	total, err := p.mint.Balance(rc, p.paymentPurse)
	if err != nil {
		return err
	}
	if total.Cmp(gasSpentMotes) < 0 {
		return fmt.Errorf("%w: payment purse holds %s, spent %s", ErrInsufficientPayment, total, gasSpentMotes)
	}
	refundAmount := new(big.Int).Sub(total, gasSpentMotes)

	proposerSV, ok, err := rc.Read(AccountKey(proposer))
	if err != nil {
		return err
	}
	if !ok || proposerSV.Tag != SVTagAccount {
		return Revert(ApiInvalidPurse)
	}
	// finalize_payment always runs as a trusted system call, never as guest
	// wasm (spec section 4.7), so it grants itself access to whichever
	// purses it resolves here rather than requiring every phase's
	// RuntimeContext to have pre-granted the block proposer's purse.
	rc.GrantAccess(proposerSV.Account.MainPurse)
	if err := p.mint.TransferPurseToPurse(rc, p.paymentPurse, proposerSV.Account.MainPurse, gasSpentMotes); err != nil {
		return err
	}

	if refundAmount.Sign() == 0 {
		return nil
	}
	refundTo := p.refundPurse
	if refundTo == nil {
		payerSV, ok, err := rc.Read(AccountKey(payer))
		if err != nil {
			return err
		}
		if !ok || payerSV.Tag != SVTagAccount {
			return Revert(ApiInvalidPurse)
		}
		refundTo = &payerSV.Account.MainPurse
	}
	rc.GrantAccess(*refundTo)
	return p.mint.TransferPurseToPurse(rc, p.paymentPurse, *refundTo, refundAmount)
}

// Call dispatches one of the Proof-of-Stake entry points by name.
func (p *ProofOfStakeContract) Call(rc *RuntimeContext, entryPoint string, args map[string]CLValue) ([]byte, error) {
	switch entryPoint {
	case "get_payment_purse":
		u, err := p.GetPaymentPurse(rc)
		if err != nil {
			return nil, err
		}
		return CLURef(u).ToBytes()
	case "set_refund_purse":
		purseArg, ok := args["purse"]
		if !ok {
			return nil, Revert(ApiMissingArgument)
		}
		purse, err := purseArg.AsURef()
		if err != nil {
			return nil, err
		}
		p.SetRefundPurse(purse)
		return nil, nil
	default:
		return nil, Revert(ApiNoSuchMethod)
	}
	// finalize_payment is invoked by the deploy pipeline directly (it needs
	// the proposer/payer addresses, which are not guest-supplied arguments),
	// never through this name-dispatched surface.
}
