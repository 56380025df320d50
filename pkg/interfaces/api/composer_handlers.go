package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vsinha/tandas/pkg/application/services/composer"
	"github.com/vsinha/tandas/pkg/domain/entities"
)

type selectLineRequest struct {
	LineID int64 `json:"line_id" binding:"required,gt=0"`
}

type toggleRequest struct {
	OrderID int64 `json:"order_id" binding:"required,gt=0"`
}

func (s *Server) newComposer() *composer.Composer {
	return composer.NewComposerWithConfig(composer.Config{
		EventStore: s.events,
		Logger:     s.entry(),
	}, s.orders, s.batches)
}

func (s *Server) session(c *gin.Context) (*composer.Composer, bool) {
	session, err := s.sessions.Get(c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return nil, false
	}
	return session, true
}

func (s *Server) listLines(c *gin.Context) {
	lines, err := s.orders.ListLines(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"lines": lines})
}

func (s *Server) createSession(c *gin.Context) {
	id, session, err := s.sessions.Create(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"session_id": id.String(),
		"lines":      session.Lines(),
	})
}

func (s *Server) getSession(c *gin.Context) {
	session, ok := s.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, session.View())
}

func (s *Server) deleteSession(c *gin.Context) {
	if !s.sessions.Delete(c.Param("id")) {
		abortWithError(c, ErrSessionNotFound)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) reloadSession(c *gin.Context) {
	session, ok := s.session(c)
	if !ok {
		return
	}
	if err := session.Load(c.Request.Context()); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, session.View())
}

func (s *Server) selectLine(c *gin.Context) {
	session, ok := s.session(c)
	if !ok {
		return
	}

	var req selectLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortBadRequest(c, "line_id is required")
		return
	}
	if !session.SelectLine(entities.LineID(req.LineID)) {
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"error": "That production line is not available."})
		return
	}
	c.JSON(http.StatusOK, session.View())
}

func (s *Server) toggleOrder(c *gin.Context) {
	session, ok := s.session(c)
	if !ok {
		return
	}

	var req toggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortBadRequest(c, "order_id is required")
		return
	}
	result, err := session.ToggleOrder(entities.OrderID(req.OrderID))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) clearSelection(c *gin.Context) {
	session, ok := s.session(c)
	if !ok {
		return
	}
	session.ClearSelection()
	c.JSON(http.StatusOK, session.View())
}

func (s *Server) submitBatch(c *gin.Context) {
	session, ok := s.session(c)
	if !ok {
		return
	}
	result, err := session.Submit(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}
