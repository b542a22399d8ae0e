package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	vaulterrors "merkledrop/contexts/settlement/vault-service/domain/errors"
	vaulthttp "merkledrop/contexts/settlement/vault-service/transport/http"
)

// callerAddress identifies the principal for role-gated operations.
// There is no session layer; upstream infrastructure is trusted to set it.
func callerAddress(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-Caller-Address"))
}

func (s *Server) handleCreateDeposit(w http.ResponseWriter, r *http.Request) {
	var req vaulthttp.CreateDepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeVaultError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.vault.Handler.CreateDepositHandler(r.Context(), req)
	if err != nil {
		writeVaultDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleGetDeposit(w http.ResponseWriter, r *http.Request) {
	resp, err := s.vault.Handler.GetDepositHandler(r.Context(), r.PathValue("root"))
	if err != nil {
		writeVaultDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHasWithdrawn(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	releaseTime, err := strconv.ParseUint(query.Get("release_time"), 10, 64)
	if err != nil {
		writeVaultError(w, http.StatusBadRequest, "invalid_release_time", "release_time must be a unix timestamp")
		return
	}

	resp, err := s.vault.Handler.HasWithdrawnHandler(
		r.Context(),
		r.PathValue("root"),
		query.Get("recipient"),
		releaseTime,
	)
	if err != nil {
		writeVaultDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCheckEligibility(w http.ResponseWriter, r *http.Request) {
	var req vaulthttp.EligibilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeVaultError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.vault.Handler.CheckEligibilityHandler(r.Context(), req)
	if err != nil {
		writeVaultDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleExecuteWithdrawal(w http.ResponseWriter, r *http.Request) {
	var req vaulthttp.ExecuteWithdrawalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeVaultError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	if err := s.vault.Handler.ExecuteWithdrawalHandler(r.Context(), callerAddress(r), req); err != nil {
		writeVaultDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "withdrawn"})
}

func (s *Server) handleEmergencyWithdraw(w http.ResponseWriter, r *http.Request) {
	err := s.vault.Handler.EmergencyWithdrawHandler(r.Context(), callerAddress(r), r.PathValue("root"))
	if err != nil {
		writeVaultDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "emergency_withdrawn"})
}

func (s *Server) handleDeleteDeposit(w http.ResponseWriter, r *http.Request) {
	err := s.vault.Handler.DeleteDepositHandler(r.Context(), callerAddress(r), r.PathValue("root"))
	if err != nil {
		writeVaultDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	resp, err := s.vault.Handler.GetConfigHandler(r.Context())
	if err != nil {
		writeVaultDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSetFeeRate(w http.ResponseWriter, r *http.Request) {
	var req vaulthttp.SetFeeRateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeVaultError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	if err := s.vault.Handler.SetFeeRateHandler(r.Context(), callerAddress(r), req); err != nil {
		writeVaultDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (s *Server) handleSetFeeRecipient(w http.ResponseWriter, r *http.Request) {
	var req vaulthttp.SetFeeRecipientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeVaultError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	if err := s.vault.Handler.SetFeeRecipientHandler(r.Context(), callerAddress(r), req); err != nil {
		writeVaultDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (s *Server) handleSetPaused(w http.ResponseWriter, r *http.Request) {
	var req vaulthttp.SetPausedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeVaultError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	if err := s.vault.Handler.SetPausedHandler(r.Context(), callerAddress(r), req); err != nil {
		writeVaultDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (s *Server) handleGrantRole(w http.ResponseWriter, r *http.Request) {
	var req vaulthttp.RoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeVaultError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	if err := s.vault.Handler.GrantRoleHandler(r.Context(), callerAddress(r), req); err != nil {
		writeVaultDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "granted"})
}

func (s *Server) handleRevokeRole(w http.ResponseWriter, r *http.Request) {
	var req vaulthttp.RoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeVaultError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	if err := s.vault.Handler.RevokeRoleHandler(r.Context(), callerAddress(r), req); err != nil {
		writeVaultDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "revoked"})
}

func writeVaultDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, vaulterrors.ErrInvalidInput):
		writeVaultError(w, http.StatusBadRequest, "invalid_input", err.Error())
	case errors.Is(err, vaulterrors.ErrInvalidFeeRate):
		writeVaultError(w, http.StatusUnprocessableEntity, "invalid_fee_rate", err.Error())
	case errors.Is(err, vaulterrors.ErrUnauthorized):
		writeVaultError(w, http.StatusForbidden, "unauthorized", err.Error())
	case errors.Is(err, vaulterrors.ErrVaultPaused):
		writeVaultError(w, http.StatusConflict, "vault_paused", err.Error())
	case errors.Is(err, vaulterrors.ErrDepositNotFound):
		writeVaultError(w, http.StatusNotFound, "deposit_not_found", err.Error())
	case errors.Is(err, vaulterrors.ErrDuplicateDeposit):
		writeVaultError(w, http.StatusConflict, "duplicate_deposit", err.Error())
	case errors.Is(err, vaulterrors.ErrAlreadyClaimed):
		writeVaultError(w, http.StatusConflict, "already_claimed", err.Error())
	case errors.Is(err, vaulterrors.ErrProofInvalid):
		writeVaultError(w, http.StatusUnprocessableEntity, "proof_invalid", err.Error())
	case errors.Is(err, vaulterrors.ErrNotYetReleasable):
		writeVaultError(w, http.StatusConflict, "not_yet_releasable", err.Error())
	case errors.Is(err, vaulterrors.ErrInsufficientBalance):
		writeVaultError(w, http.StatusConflict, "insufficient_balance", err.Error())
	case errors.Is(err, vaulterrors.ErrTransferFailed):
		writeVaultError(w, http.StatusBadGateway, "transfer_failed", err.Error())
	default:
		writeVaultError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeVaultError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, vaulthttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}
