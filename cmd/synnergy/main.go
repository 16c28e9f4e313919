// Command synnergy is the execution engine's own diagnostic CLI: bootstrap
// a throwaway chain of one, submit a deploy against it, or inspect the
// host-function opcode catalogue. Grounded on the teacher's
// cmd/synnergy/main.go root-command-plus-subcommand-constructor-function
// style (testnetCmd/tokensCmd), repurposed from mock testnet/token
// subcommands into deployCmd/opcodesCmd/serveCmd for this engine.
package main

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	core "synnergy-network/core"
	config "synnergy-network/pkg/config"
)

func main() {
	rootCmd := &cobra.Command{Use: "synnergy"}
	rootCmd.AddCommand(deployCmd())
	rootCmd.AddCommand(opcodesCmd())
	rootCmd.AddCommand(serveCmd())
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// deployCmd bootstraps a fresh genesis and submits one deploy against it,
// printing the resulting post-state root and gas consumed. It exists so the
// engine can be exercised end-to-end without a surrounding node.
func deployCmd() *cobra.Command {
	var paymentPath, sessionPath string
	var paymentGasLimit, sessionGasLimit, gasPrice uint64

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "bootstrap a genesis and run one deploy against it",
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := core.Bootstrap(1)
			if err != nil {
				return fmt.Errorf("bootstrap: %w", err)
			}

			paymentWasm, err := loadWasm(paymentPath)
			if err != nil {
				return fmt.Errorf("payment wasm: %w", err)
			}
			sessionWasm, err := loadWasm(sessionPath)
			if err != nil {
				return fmt.Errorf("session wasm: %w", err)
			}

			deploy := &core.Deploy{
				Hash:              core.BytesToHash([]byte(paymentPath + sessionPath)),
				Account:           g.GenesisAccount,
				AuthorizationKeys: map[core.Address]struct{}{g.GenesisAccount: {}},
				PaymentWasm:       paymentWasm,
				SessionWasm:       sessionWasm,
				GasPrice:          gasPrice,
			}

			result, err := g.Pipeline.Execute(deploy, g.Proposer, paymentGasLimit, sessionGasLimit)
			if err != nil {
				return fmt.Errorf("deploy: %w", err)
			}

			fmt.Printf("new state root: %s\n", result.NewRoot.Hex())
			fmt.Printf("gas consumed:   %d\n", result.GasConsumed)
			if result.SessionReturn != nil {
				fmt.Printf("session return: %s\n", hex.EncodeToString(result.SessionReturn))
			}
			if result.SessionError != nil {
				fmt.Printf("session error:  %v\n", result.SessionError)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&paymentPath, "payment", "", "path to a compiled payment .wasm module")
	cmd.Flags().StringVar(&sessionPath, "session", "", "path to a compiled session .wasm module")
	cmd.Flags().Uint64Var(&paymentGasLimit, "payment-gas-limit", 1_000_000, "gas limit for the payment phase")
	cmd.Flags().Uint64Var(&sessionGasLimit, "session-gas-limit", 5_000_000, "gas limit for the session phase")
	cmd.Flags().Uint64Var(&gasPrice, "gas-price", 1, "motes per unit of gas")
	cmd.MarkFlagRequired("payment")
	cmd.MarkFlagRequired("session")
	return cmd
}

// opcodesCmd dumps the host-function opcode catalogue (core/opcode_dispatcher.go),
// the same audit surface cmd/opcode-lint enforces collision-freedom over.
func opcodesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "opcodes",
		Short: "list the host-function opcode catalogue",
		Run: func(cmd *cobra.Command, args []string) {
			for _, line := range core.DebugDump() {
				fmt.Println(line)
			}
		},
	}
}

// serveCmd runs the diagnostic HTTP surface (core/httpserver.go) over a
// freshly bootstrapped genesis.
func serveCmd() *cobra.Command {
	var env, listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "serve the diagnostic HTTP execute endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(env)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			addr := listen
			if addr == "" {
				addr = cfg.Engine.ListenAddr
			}

			g, err := core.Bootstrap(cfg.Engine.ProtocolVersion)
			if err != nil {
				return fmt.Errorf("bootstrap: %w", err)
			}
			srv := core.NewServer(g.Pipeline)
			return srv.ListenAndServe(addr)
		},
	}
	cmd.Flags().StringVar(&env, "env", "", "config environment to merge over default.yaml")
	cmd.Flags().StringVar(&listen, "listen", "", "listen address (overrides config)")
	return cmd
}

func loadWasm(path string) ([]byte, error) {
	if path == "" {
		return nil, fmt.Errorf("empty path")
	}
	return os.ReadFile(path)
}
