package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/vsinha/tandas/pkg/application/services/lifecycle"
	"github.com/vsinha/tandas/pkg/domain/entities"
	"github.com/vsinha/tandas/pkg/infrastructure/events"
	"github.com/vsinha/tandas/pkg/interfaces/cli/output"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type transitionResponse struct {
	LineID      entities.LineID     `json:"line_id"`
	From        entities.BatchState `json:"from"`
	To          entities.BatchState `json:"to"`
	BatchIDs    []entities.BatchID  `json:"batch_ids"`
	ReloadError string              `json:"reload_error,omitempty"`
}

func stateParam(c *gin.Context) (entities.BatchState, bool) {
	state, err := entities.ParseBatchState(c.Param("state"))
	if err != nil {
		abortWithError(c, err)
		return "", false
	}
	return state, true
}

func lineParam(c *gin.Context) (entities.LineID, bool) {
	id, err := strconv.ParseInt(c.Param("line"), 10, 64)
	if err != nil || id <= 0 {
		abortBadRequest(c, "line must be a positive integer")
		return 0, false
	}
	return entities.LineID(id), true
}

// loadedController returns the controller for the request's state after
// refreshing it from the backend
func (s *Server) loadedController(c *gin.Context) (*lifecycle.Controller, entities.BatchState, bool) {
	state, ok := stateParam(c)
	if !ok {
		return nil, "", false
	}
	ctl := s.controller(state)
	if err := ctl.LoadState(c.Request.Context(), state); err != nil {
		abortWithError(c, err)
		return nil, "", false
	}
	return ctl, state, true
}

func (s *Server) listBatches(c *gin.Context) {
	ctl, state, ok := s.loadedController(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"state": state,
		"lines": ctl.Groups(),
	})
}

func (s *Server) exportBatches(c *gin.Context) {
	ctl, state, ok := s.loadedController(c)
	if !ok {
		return
	}

	c.Header("Content-Type", xlsxContentType)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=batches_%s.xlsx", state))
	if err := output.WriteBatchesXLSX(c.Writer, state, ctl.Groups(), s.now()); err != nil {
		_ = c.Error(err)
		c.Status(http.StatusInternalServerError)
	}
}

func (s *Server) requestTransition(c *gin.Context) {
	lineID, ok := lineParam(c)
	if !ok {
		return
	}
	ctl, _, ok := s.loadedController(c)
	if !ok {
		return
	}

	plan, err := ctl.RequestTransition(lineID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, plan)
}

func (s *Server) cancelTransition(c *gin.Context) {
	lineID, ok := lineParam(c)
	if !ok {
		return
	}
	state, ok := stateParam(c)
	if !ok {
		return
	}

	if !s.controller(state).CancelTransition(lineID) {
		abortWithError(c, fmt.Errorf("line %d: %w", lineID, entities.ErrNotConfirmable))
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) confirmTransition(c *gin.Context) {
	lineID, ok := lineParam(c)
	if !ok {
		return
	}
	state, ok := stateParam(c)
	if !ok {
		return
	}

	result, err := s.controller(state).ConfirmTransition(c.Request.Context(), lineID)
	if err != nil {
		abortWithError(c, err)
		return
	}

	resp := transitionResponse{
		LineID:   result.LineID,
		From:     result.From,
		To:       result.To,
		BatchIDs: result.BatchIDs,
	}
	if result.ReloadErr != nil {
		resp.ReloadError = entities.UserMessage(result.ReloadErr)
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) listEvents(c *gin.Context) {
	from, err := strconv.Atoi(c.DefaultQuery("from", "0"))
	if err != nil || from < 0 {
		abortBadRequest(c, "from must be a non-negative integer")
		return
	}
	evts, err := s.events.ReadAllEvents(from)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": evts})
}

func (s *Server) lineEvents(c *gin.Context) {
	lineID, ok := lineParam(c)
	if !ok {
		return
	}
	evts, err := s.events.ReadEvents(events.LineStream(int64(lineID)), 0)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": evts})
}
