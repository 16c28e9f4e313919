// SPDX-License-Identifier: BUSL-1.1
//
// deploy_pipeline.go implements the EngineState orchestration of spec
// section 4.6: precondition checks, payment phase, an insufficient-payment
// check, session phase, finalize via Proof-of-Stake, and a single linear
// commit. Grounded on
// _examples/original_source/execution-engine/engine-core/src/execution/executor.rs's
// on_fail_charge pattern (precondition failures never reach a tracking
// copy; a failed session is still charged its gas, but its effects are
// rolled back to the post-payment snapshot) and
// on contracts.go's registry/ledger split, adapted from a single-shot
// "invoke one contract" model to the full multi-phase deploy.
package core

import (
	"fmt"
	"math/big"
)

// Deploy is the externally-submitted unit of work: a payment module and a
// session module, each with its own arguments, executed as one account's
// authorized action.
type Deploy struct {
	Hash            Hash
	Account         Address
	AuthorizationKeys map[Address]struct{}

	PaymentWasm []byte
	PaymentArgs map[string]CLValue
	GasPrice    uint64 // motes per unit of gas

	SessionWasm []byte
	SessionArgs map[string]CLValue

	Blocktime uint64
}

// DeployPipeline runs deploys against a single content-addressed trie,
// advancing its root on every successful commit.
type DeployPipeline struct {
	store    *TrieStore
	exec     *Executor
	root     Hash
	protocolVersion uint32
}

func NewDeployPipeline(store *TrieStore, exec *Executor, genesisRoot Hash, protocolVersion uint32) *DeployPipeline {
	return &DeployPipeline{store: store, exec: exec, root: genesisRoot, protocolVersion: protocolVersion}
}

func (dp *DeployPipeline) Root() Hash { return dp.root }

// DeployResult records what happened, separating effects that were actually
// committed from the higher-level outcome (a reverted session still commits
// its payment-phase and finalize-phase effects, per spec section 4.6).
type DeployResult struct {
	SessionReturn []byte
	SessionError  error // non-nil (and typically *Reverted) if the session failed
	GasConsumed   uint64
	NewRoot       Hash
}

// gasToMotes converts a gas amount to the motes a purse must hold to cover
// it, at the deploy's declared gas price.
func gasToMotes(gas uint64, gasPrice uint64) *big.Int {
	return new(big.Int).Mul(new(big.Int).SetUint64(gas), new(big.Int).SetUint64(gasPrice))
}

// Execute runs one deploy's precondition check, payment phase, session
// phase, and finalize phase, committing once at the end (spec section 4.6).
func (dp *DeployPipeline) Execute(d *Deploy, proposer Address, paymentGasLimit, sessionGasLimit uint64) (*DeployResult, error) {
	reader := NewTrieStateReader(dp.store, dp.root)

	// --- precondition checks: account must exist and authorize the deploy.
	rootTC := NewTrackingCopy(reader)
	acctSV, ok, err := rootTC.Read(AccountKey(d.Account))
	if err != nil {
		return nil, fmt.Errorf("deploy precondition: %w", err)
	}
	if !ok || acctSV.Tag != SVTagAccount {
		return nil, fmt.Errorf("deploy precondition: %w: account %s", ErrValueNotFound, d.Account)
	}
	account := acctSV.Account
	weight := account.WeightOf(d.AuthorizationKeys)
	if weight < account.ActionThreshold.Deployment {
		return nil, fmt.Errorf("deploy precondition: %w: weight %d below threshold %d",
			ErrAuthorizationFailure, weight, account.ActionThreshold.Deployment)
	}

	// --- payment phase: runs in its own tracking copy over the same reader.
	paymentTC := NewTrackingCopy(reader)
	paymentRC := NewRuntimeContext(
		paymentTC, AccountKey(d.Account), account.NamedKeys, d.PaymentArgs,
		d.AuthorizationKeys, paymentGasLimit, d.Blocktime, d.Hash, PhasePayment, dp.protocolVersion,
	)
	// Neither the account's own main purse nor the PoS payment purse is a
	// named key (spec section 3 gives named keys no special knowledge of
	// purses), so the payment phase needs both granted directly: it debits
	// its own purse and credits the payment purse (spec section 4.6).
	paymentRC.GrantAccess(account.MainPurse)
	paymentRC.GrantAccess(dp.exec.pos.paymentPurse)
	if _, err := dp.exec.Exec(paymentRC, d.PaymentWasm); err != nil {
		// A failed payment phase is fatal to the whole deploy: nothing commits.
		return nil, fmt.Errorf("payment phase: %w", err)
	}

	// --- insufficient-payment check: the payment purse must hold enough
	// motes to cover the session's worst-case gas cost before session code
	// ever runs (spec section 4.6).
	posPurseBal, err := dp.exec.mint.Balance(paymentRC, dp.exec.pos.paymentPurse)
	if err != nil {
		return nil, fmt.Errorf("insufficient-payment check: %w", err)
	}
	required := gasToMotes(sessionGasLimit, d.GasPrice)
	if posPurseBal.Cmp(required) < 0 {
		return nil, fmt.Errorf("insufficient-payment check: %w: have %s, need %s",
			ErrInsufficientPayment, posPurseBal, required)
	}

	// --- snapshot after payment, before session: a reverted/trapped session
	// rolls back to exactly this point (spec section 4.6).
	merged := NewTrackingCopy(reader)
	if err := merged.Merge(paymentTC); err != nil {
		return nil, fmt.Errorf("merging payment effects: %w", err)
	}
	postPaymentSnapshot := merged.TakeSnapshot()

	// --- session phase.
	sessionRC := NewRuntimeContext(
		merged, AccountKey(d.Account), account.NamedKeys, d.SessionArgs,
		d.AuthorizationKeys, sessionGasLimit, d.Blocktime, d.Hash, PhaseSession, dp.protocolVersion,
	)
	sessionRC.GrantAccess(account.MainPurse)
	sessionResult, sessionErr := dp.exec.Exec(sessionRC, d.SessionWasm)
	if sessionErr != nil {
		// A revert and a trap are handled alike: every effect the session
		// recorded is discarded by rolling back to the post-payment
		// snapshot, and finalize then runs against that base.
		merged.RestoreSnapshot(postPaymentSnapshot)
	}

	gasUsed := sessionRC.GasMeter().Used() + paymentRC.GasMeter().Used()
	gasSpentMotes := gasToMotes(gasUsed, d.GasPrice)

	// --- finalize phase: always runs, even when the session reverted,
	// sweeping actual consumption to the proposer and refunding the rest.
	finalizeRC := NewRuntimeContext(
		merged, AccountKey(d.Account), account.NamedKeys, nil,
		d.AuthorizationKeys, ^uint64(0), d.Blocktime, d.Hash, PhaseFinalize, dp.protocolVersion,
	)
	finalizeRC.GrantAccess(account.MainPurse)
	finalizeRC.GrantAccess(dp.exec.pos.paymentPurse)
	if err := dp.exec.pos.FinalizePayment(finalizeRC, gasSpentMotes, d.Account, proposer); err != nil {
		return nil, fmt.Errorf("finalize phase: %w", err)
	}

	newRoot, _, err := merged.Commit(dp.store, dp.root)
	if err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	dp.root = newRoot

	return &DeployResult{
		SessionReturn: sessionResult.ReturnValue,
		SessionError:  sessionErr,
		GasConsumed:   gasUsed,
		NewRoot:       newRoot,
	}, nil
}
