package api

import (
	"encoding/json"
	"net/http"

	"github.com/org/vaultadmin/internal/verify"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

// HealthHandler reports liveness.
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// VerifyHandler checks the core table set and reports what is missing.
func (s *Server) VerifyHandler(w http.ResponseWriter, r *http.Request) {
	result, err := verify.Check(r.Context(), s.store)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	if result.Valid {
		coreSchemaValid.Set(1)
	} else {
		coreSchemaValid.Set(0)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"valid":   result.Valid,
		"missing": result.Missing,
	})
}

// StatusHandler reports record counts.
func (s *Server) StatusHandler(w http.ResponseWriter, r *http.Request) {
	secrets, err := s.store.CountSecretRecords(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	credentials, err := s.store.CountCredentials(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	secretRecordsTotal.Set(float64(secrets))
	credentialsTotal.Set(float64(credentials))
	writeJSON(w, http.StatusOK, map[string]any{
		"secret_records": secrets,
		"credentials":    credentials,
	})
}
