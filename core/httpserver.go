// SPDX-License-Identifier: BUSL-1.1
//
// httpserver.go is the engine's diagnostic HTTP surface: a POST /execute
// endpoint that accepts a JSON-rendered deploy and runs it through a
// DeployPipeline, returning the resulting receipt, plus GET /opcodes for the
// host-function opcode catalogue. Grounded directly on
// virtual_machine.go's "HTTP API + rate limiter" section (gorilla/mux
// router, golang.org/x/time/rate token-bucket limiter wrapped as
// middleware, http.Server with the same Read/Write/Idle timeouts), widened
// from that file's single-VM raw-bytecode body to a full payment+session
// DeployItem (spec section 6). This is intentionally out of the engine's
// core scope (section 1 places "the RPC/IPC transport" among external
// collaborators) — it exists only so the engine can be exercised without a
// surrounding node, the same role the teacher's endpoint plays for its VM.
package core

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// executeRequest is the wire shape accepted by POST /execute: hex-encoded
// wasm modules for payment and session, plus the deploy's bookkeeping
// fields. Arguments are intentionally omitted from the diagnostic surface —
// a real transport would carry bytesrepr-encoded RuntimeArgs (section 6);
// exercising that wire format is left to bytesrepr's own round-trip tests.
type executeRequest struct {
	Account         string `json:"account"`
	Proposer        string `json:"proposer"`
	PaymentWasm     string `json:"payment_wasm"`
	SessionWasm     string `json:"session_wasm"`
	GasPrice        uint64 `json:"gas_price"`
	PaymentGasLimit uint64 `json:"payment_gas_limit"`
	SessionGasLimit uint64 `json:"session_gas_limit"`
	Blocktime       uint64 `json:"blocktime"`
}

// executeResponse reports the outcome of one deploy, distinguishing a
// session-level revert/trap (still a 200: the deploy was processed and
// charged gas) from a precondition or storage failure (the deploy never
// ran, surfaced as 4xx/5xx).
type executeResponse struct {
	NewRoot       string `json:"new_state_root"`
	GasConsumed   uint64 `json:"gas_consumed"`
	SessionReturn string `json:"session_return,omitempty"`
	SessionError  string `json:"session_error,omitempty"`
}

// Server wraps a DeployPipeline with the HTTP router and rate limiter that
// expose it for diagnostics.
type Server struct {
	pipeline *DeployPipeline
	limiter  *rate.Limiter
	log      *logrus.Entry
}

// NewServer wires a DeployPipeline behind a 200req/s, burst-100 limiter,
// matching the teacher's "200 req/s, burst 100" constant verbatim — the
// engine's diagnostic surface carries the same load-shedding posture as the
// VM demo it's grounded on.
func NewServer(pipeline *DeployPipeline) *Server {
	return &Server{
		pipeline: pipeline,
		limiter:  rate.NewLimiter(200, 100),
		log:      logrus.WithField("component", "httpserver"),
	}
}

// limit rejects requests once the token bucket is empty, before they reach
// the handler.
func (s *Server) limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			http.Error(w, "rate limit", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Router builds the mux.Router exposing this server's routes.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.limit)
	r.HandleFunc("/execute", s.handleExecute).Methods(http.MethodPost)
	r.HandleFunc("/opcodes", s.handleOpcodes).Methods(http.MethodGet)
	return r
}

// ListenAndServe builds the router and runs a configured http.Server,
// mirroring the teacher's Read/Write/Idle timeout choices.
func (s *Server) ListenAndServe(addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  30 * time.Second,
	}
	s.log.WithField("addr", addr).Info("httpserver: listening")
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	paymentWasm, err := hex.DecodeString(req.PaymentWasm)
	if err != nil {
		http.Error(w, "payment_wasm: "+err.Error(), http.StatusBadRequest)
		return
	}
	sessionWasm, err := hex.DecodeString(req.SessionWasm)
	if err != nil {
		http.Error(w, "session_wasm: "+err.Error(), http.StatusBadRequest)
		return
	}
	account, err := decodeAddress(req.Account)
	if err != nil {
		http.Error(w, "account: "+err.Error(), http.StatusBadRequest)
		return
	}
	proposer, err := decodeAddress(req.Proposer)
	if err != nil {
		http.Error(w, "proposer: "+err.Error(), http.StatusBadRequest)
		return
	}

	deploy := &Deploy{
		Hash:              BytesToHash([]byte(req.Account + req.SessionWasm)),
		Account:           account,
		AuthorizationKeys: map[Address]struct{}{account: {}},
		PaymentWasm:       paymentWasm,
		PaymentArgs:       nil,
		GasPrice:          req.GasPrice,
		SessionWasm:       sessionWasm,
		SessionArgs:       nil,
		Blocktime:         req.Blocktime,
	}

	result, err := s.pipeline.Execute(deploy, proposer, req.PaymentGasLimit, req.SessionGasLimit)
	if err != nil {
		s.log.WithError(err).Warn("httpserver: deploy failed precondition/storage check")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	resp := executeResponse{
		NewRoot:       result.NewRoot.Hex(),
		GasConsumed:   result.GasConsumed,
		SessionReturn: hex.EncodeToString(result.SessionReturn),
	}
	if result.SessionError != nil {
		resp.SessionError = result.SessionError.Error()
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (s *Server) handleOpcodes(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(DebugDump())
}

// decodeAddress parses a "0x"-prefixed or bare hex string into an Address,
// left-padding short inputs the same way BytesToAddress does.
func decodeAddress(s string) (Address, error) {
	if len(s) >= 2 && s[0:2] == "0x" {
		s = s[2:]
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return Address{}, err
	}
	return BytesToAddress(b), nil
}
