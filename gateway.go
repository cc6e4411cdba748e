package agentmesh

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/habiliai/agentmesh/internal/mylog"
	"github.com/habiliai/agentmesh/network"
)

type gatewayRequest struct {
	UserInput string `json:"user_input"`
}

type gatewayResponse struct {
	Message any `json:"message"`
}

// NewGatewayHandler lets plain HTTP clients hand a request to one agent.
// The answer is embedded as JSON when it parses as JSON and as text otherwise.
func NewGatewayHandler(client *network.RemoteAgentClient, agentURL string, logger *mylog.Logger) http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, gatewayResponse{Message: "OK"})
	}).Methods(http.MethodGet)

	router.HandleFunc("/agent/orchestration/create_task", func(w http.ResponseWriter, r *http.Request) {
		var req gatewayRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.UserInput) == "" {
			writeJSON(w, http.StatusBadRequest, gatewayResponse{Message: "user_input is required"})
			return
		}

		res := client.CreateTask(r.Context(), agentURL, req.UserInput)
		if !res.OK() {
			logger.Warn("gateway dispatch failed", mylog.Err(res.Err))
			writeJSON(w, http.StatusOK, gatewayResponse{Message: "Error communicating with agent: " + res.Err.Error()})
			return
		}

		text := res.Text()
		if strings.TrimSpace(text) == "" {
			writeJSON(w, http.StatusOK, gatewayResponse{Message: "No response received from agent"})
			return
		}

		var parsed any
		if err := json.Unmarshal([]byte(text), &parsed); err == nil {
			writeJSON(w, http.StatusOK, gatewayResponse{Message: parsed})
			return
		}
		writeJSON(w, http.StatusOK, gatewayResponse{Message: text})
	}).Methods(http.MethodPost)

	return router
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
