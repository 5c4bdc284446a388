package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/remyhfb/delight-desk-v2-sub006/logger"
	"github.com/remyhfb/delight-desk-v2-sub006/model"
	"go.uber.org/zap"
)

// HandleTestTrigger lets an operator run the whole state machine
// against stubbed backends to verify their setup. Notifications go out
// for real to the addresses supplied in the request.
func (s *Server) HandleTestTrigger(w http.ResponseWriter, r *http.Request) {
	var req model.TestRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	defer r.Body.Close()
	if req.CustomerAddress == "" {
		respondWithError(w, http.StatusBadRequest, "customerAddress is required")
		return
	}
	wf, err := s.workflowService.RunTestWorkflow(r.Context(), req)
	if err != nil {
		var lowConfidence model.LowConfidenceError
		if errors.As(err, &lowConfidence) {
			respondWithError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		logger.Error("error running test workflow", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "error running test workflow")
		return
	}
	respondWithJSON(w, http.StatusCreated, wf)
}
