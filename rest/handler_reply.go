package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/remyhfb/delight-desk-v2-sub006/logger"
	"github.com/remyhfb/delight-desk-v2-sub006/model"
	"github.com/remyhfb/delight-desk-v2-sub006/persistence"
	"go.uber.org/zap"
)

// HandleWarehouseReply accepts the warehouse operator's emailed answer,
// relayed by the mail pipeline as a webhook. A reply for a workflow
// that is no longer awaiting confirmation gets a clear stale outcome
// instead of mutating anything.
func (s *Server) HandleWarehouseReply(w http.ResponseWriter, r *http.Request) {
	var req model.WarehouseReplyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	defer r.Body.Close()
	wf, err := s.workflowService.HandleWarehouseReply(r.Context(), req)
	if err != nil {
		var stale model.StaleReplyError
		var notFound persistence.NotFoundError
		switch {
		case errors.As(err, &stale):
			respondWithJSON(w, http.StatusConflict, map[string]string{
				"outcome": "stale_reply",
				"status":  string(stale.Status),
			})
		case errors.As(err, &notFound):
			respondWithError(w, http.StatusNotFound, "no awaiting workflow matches this reply")
		default:
			logger.Error("error handling warehouse reply", zap.Error(err))
			respondWithError(w, http.StatusInternalServerError, "error handling warehouse reply")
		}
		return
	}
	respondWithJSON(w, http.StatusOK, wf)
}
