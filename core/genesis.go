// SPDX-License-Identifier: BUSL-1.1
//
// genesis.go bootstraps the pieces the CLI and the diagnostic HTTP surface
// need to actually drive a DeployPipeline: an empty trie, the two system
// contracts installed under well-known hashes, a funded genesis account and
// a proposer account. Grounded on
// _examples/original_source/execution-engine/contracts/system/mint-install/src/main.rs's
// "install" entry point (create_contract_package_at_hash under a
// HASH_KEY_NAME, then put_key the access uref) and mint-token's create/mint
// pair, reimplemented as plain Go over this package's own Key/URef model
// rather than as wasm installed at protocol start-up.
package core

import (
	"fmt"
	"math/big"

	"github.com/sirupsen/logrus"
)

// WellKnownMintHash and WellKnownProofOfStakeHash are the Hash keys the
// executor's direct system-contract fast path recognizes (spec section
// 4.5's "is_mint(base_key) / is_proof_of_stake(base_key)"). They are fixed
// constants rather than derived from a deploy hash because they must be
// identical across every node that boots from the same genesis.
var (
	WellKnownMintHash         = Hash{0x01}
	WellKnownProofOfStakeHash = BytesToHash([]byte("synnergy-proof-of-stake"))
)

// GenesisAccountBalance is the starting balance credited to the genesis
// account's main purse, matching spec section 8 scenario S1's
// 250_000_000+1000 transfer budget.
var GenesisAccountBalance = big.NewInt(1_000_000_000_000)

// Genesis bundles everything a caller needs to submit deploys against a
// freshly-bootstrapped chain of one.
type Genesis struct {
	Store    *TrieStore
	Pipeline *DeployPipeline
	Executor *Executor

	GenesisAccount Address
	Proposer       Address
}

// Bootstrap builds an empty trie, installs the Mint and Proof-of-Stake
// system contracts, and creates a genesis account (funded) and a proposer
// account (unfunded, receives block rewards via finalize_payment). It is
// the single entry point cmd/synnergy and the diagnostic HTTP server use to
// obtain a runnable engine instance; tests that need finer control build
// their own RuntimeContext directly instead (see executor_parity_test.go).
func Bootstrap(protocolVersion uint32) (*Genesis, error) {
	store := NewTrieStore()
	root := store.EmptyRoot()
	reader := NewTrieStateReader(store, root)
	tc := NewTrackingCopy(reader)

	genesisAddr := Address{0xA1}
	proposerAddr := Address{0xA2}

	sysRC := NewRuntimeContext(
		tc, HashKey(WellKnownMintHash), make(NamedKeys), nil,
		map[Address]struct{}{genesisAddr: {}}, ^uint64(0), 0, Hash{0xFF}, PhaseSystem, protocolVersion,
	)

	mint := NewMintContract()

	genesisPurse, err := mint.CreatePurse(sysRC)
	if err != nil {
		return nil, fmt.Errorf("genesis: create genesis purse: %w", err)
	}
	if err := mint.Mint(sysRC, genesisPurse, GenesisAccountBalance); err != nil {
		return nil, fmt.Errorf("genesis: fund genesis purse: %w", err)
	}
	proposerPurse, err := mint.CreatePurse(sysRC)
	if err != nil {
		return nil, fmt.Errorf("genesis: create proposer purse: %w", err)
	}
	paymentPurse, err := mint.CreatePurse(sysRC)
	if err != nil {
		return nil, fmt.Errorf("genesis: create payment purse: %w", err)
	}

	genesisAccount := NewAccount(genesisAddr, genesisPurse)
	if err := sysRC.Write(AccountKey(genesisAddr), NewAccountStoredValue(genesisAccount)); err != nil {
		return nil, fmt.Errorf("genesis: write genesis account: %w", err)
	}
	proposerAccount := NewAccount(proposerAddr, proposerPurse)
	if err := sysRC.Write(AccountKey(proposerAddr), NewAccountStoredValue(proposerAccount)); err != nil {
		return nil, fmt.Errorf("genesis: write proposer account: %w", err)
	}

	pos := NewProofOfStakeContract(mint, paymentPurse)

	newRoot, _, err := tc.Commit(store, root)
	if err != nil {
		return nil, fmt.Errorf("genesis: commit: %w", err)
	}

	exec := NewExecutor(mint, pos, WellKnownMintHash, WellKnownProofOfStakeHash)
	pipeline := NewDeployPipeline(store, exec, newRoot, protocolVersion)

	logrus.WithFields(logrus.Fields{
		"root":             newRoot.Hex(),
		"genesis_account":  genesisAddr.Hex(),
		"genesis_balance":  GenesisAccountBalance.String(),
	}).Info("genesis: bootstrap complete")

	return &Genesis{
		Store:          store,
		Pipeline:       pipeline,
		Executor:       exec,
		GenesisAccount: genesisAddr,
		Proposer:       proposerAddr,
	}, nil
}
