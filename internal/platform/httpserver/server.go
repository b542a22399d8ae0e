package httpserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	builderservice "merkledrop/contexts/commitment/builder-service"
	buildererrors "merkledrop/contexts/commitment/builder-service/domain/errors"
	builderhttp "merkledrop/contexts/commitment/builder-service/transport/http"
	vaultservice "merkledrop/contexts/settlement/vault-service"

	httpSwagger "github.com/swaggo/http-swagger"
	_ "merkledrop/internal/platform/httpserver/docs"
)

type Server struct {
	mux     *http.ServeMux
	logger  *slog.Logger
	addr    string
	builder builderservice.Module
	vault   vaultservice.Module
}

func New(
	builder builderservice.Module,
	vault vaultservice.Module,
	logger *slog.Logger,
	addr string,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		mux:     http.NewServeMux(),
		logger:  logger,
		addr:    addr,
		builder: builder,
		vault:   vault,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	return http.ListenAndServe(s.addr, s.mux)
}

// Handler exposes the routed mux, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) registerRoutes() {
	s.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	s.mux.HandleFunc("GET /healthz", s.handleHealthz)

	s.mux.HandleFunc("POST /v1/commitments", s.handleBuildCommitment)
	s.mux.HandleFunc("GET /v1/commitments/{root}", s.handleGetArtifact)

	s.mux.HandleFunc("POST /v1/vault/deposits", s.handleCreateDeposit)
	s.mux.HandleFunc("GET /v1/vault/deposits/{root}", s.handleGetDeposit)
	s.mux.HandleFunc("GET /v1/vault/deposits/{root}/withdrawn", s.handleHasWithdrawn)
	s.mux.HandleFunc("POST /v1/vault/eligibility", s.handleCheckEligibility)
	s.mux.HandleFunc("POST /v1/vault/withdrawals", s.handleExecuteWithdrawal)
	s.mux.HandleFunc("POST /v1/vault/deposits/{root}/emergency-withdraw", s.handleEmergencyWithdraw)
	s.mux.HandleFunc("DELETE /v1/vault/deposits/{root}", s.handleDeleteDeposit)
	s.mux.HandleFunc("GET /v1/vault/config", s.handleGetConfig)
	s.mux.HandleFunc("PUT /v1/vault/config/fee-rate", s.handleSetFeeRate)
	s.mux.HandleFunc("PUT /v1/vault/config/fee-recipient", s.handleSetFeeRecipient)
	s.mux.HandleFunc("PUT /v1/vault/config/paused", s.handleSetPaused)
	s.mux.HandleFunc("POST /v1/vault/roles/grant", s.handleGrantRole)
	s.mux.HandleFunc("POST /v1/vault/roles/revoke", s.handleRevokeRole)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleBuildCommitment(w http.ResponseWriter, r *http.Request) {
	var req builderhttp.BuildCommitmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBuilderError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.builder.Handler.BuildCommitmentHandler(r.Context(), req)
	if err != nil {
		writeBuilderDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleGetArtifact(w http.ResponseWriter, r *http.Request) {
	root := r.PathValue("root")
	resp, err := s.builder.Handler.GetArtifactHandler(r.Context(), root)
	if err != nil {
		writeBuilderDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeBuilderDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, buildererrors.ErrEmptyRecipientList):
		writeBuilderError(w, http.StatusBadRequest, "empty_recipient_list", err.Error())
	case errors.Is(err, buildererrors.ErrInvalidRecipient):
		writeBuilderError(w, http.StatusBadRequest, "invalid_recipient", err.Error())
	case errors.Is(err, buildererrors.ErrDuplicateCommitment):
		writeBuilderError(w, http.StatusConflict, "duplicate_commitment", err.Error())
	case errors.Is(err, buildererrors.ErrArtifactNotFound):
		writeBuilderError(w, http.StatusNotFound, "artifact_not_found", err.Error())
	default:
		writeBuilderError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeBuilderError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, builderhttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
