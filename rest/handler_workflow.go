package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/remyhfb/delight-desk-v2-sub006/logger"
	"github.com/remyhfb/delight-desk-v2-sub006/model"
	"github.com/remyhfb/delight-desk-v2-sub006/persistence"
	"go.uber.org/zap"
)

func (s *Server) HandleInboundEmail(w http.ResponseWriter, r *http.Request) {
	var req model.InboundEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	defer r.Body.Close()
	wf, err := s.workflowService.HandleInboundEmail(r.Context(), req)
	if err != nil {
		var active model.WorkflowActiveError
		var lowConfidence model.LowConfidenceError
		switch {
		case errors.As(err, &active):
			respondWithJSON(w, http.StatusConflict, map[string]string{
				"error":      "an active workflow already exists for this order",
				"workflowId": active.ExistingId,
			})
		case errors.As(err, &lowConfidence):
			respondWithJSON(w, http.StatusAccepted, map[string]string{
				"message": "classification confidence too low, left for manual triage",
			})
		default:
			logger.Error("error processing inbound email", zap.Error(err))
			respondWithError(w, http.StatusInternalServerError, "error processing inbound email")
		}
		return
	}
	respondWithJSON(w, http.StatusCreated, wf)
}

func (s *Server) HandleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	wf, err := s.workflowService.Get(id)
	if err != nil {
		var notFound persistence.NotFoundError
		if errors.As(err, &notFound) {
			respondWithError(w, http.StatusNotFound, "workflow not found")
			return
		}
		logger.Error("error loading workflow", zap.String("id", id), zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "error loading workflow")
		return
	}
	respondWithJSON(w, http.StatusOK, wf)
}

func (s *Server) HandleListWorkflows(w http.ResponseWriter, r *http.Request) {
	status := model.WorkflowStatus(r.URL.Query().Get("status"))
	if status == "" {
		respondWithError(w, http.StatusBadRequest, "status query parameter is required")
		return
	}
	list, err := s.workflowService.ListByStatus(status)
	if err != nil {
		logger.Error("error listing workflows", zap.String("status", string(status)), zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "error listing workflows")
		return
	}
	respondWithJSON(w, http.StatusOK, list)
}

func (s *Server) HandleCancelWorkflow(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	wf, err := s.workflowService.CancelByUser(r.Context(), id)
	if err != nil {
		var notFound persistence.NotFoundError
		var terminal model.TerminalWorkflowError
		switch {
		case errors.As(err, &notFound):
			respondWithError(w, http.StatusNotFound, "workflow not found")
		case errors.As(err, &terminal):
			respondWithError(w, http.StatusConflict, err.Error())
		default:
			respondWithError(w, http.StatusConflict, err.Error())
		}
		return
	}
	respondWithJSON(w, http.StatusOK, wf)
}

func (s *Server) HandleResumeWorkflow(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	wf, err := s.workflowService.Resume(r.Context(), id)
	if err != nil {
		var notFound persistence.NotFoundError
		var terminal model.TerminalWorkflowError
		switch {
		case errors.As(err, &notFound):
			respondWithError(w, http.StatusNotFound, "workflow not found")
		case errors.As(err, &terminal):
			respondWithError(w, http.StatusConflict, err.Error())
		default:
			logger.Error("error resuming workflow", zap.String("id", id), zap.Error(err))
			respondWithError(w, http.StatusInternalServerError, "error resuming workflow")
		}
		return
	}
	respondWithJSON(w, http.StatusOK, wf)
}
