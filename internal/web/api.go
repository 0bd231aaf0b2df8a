package web

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"attendance-tracker/internal/attendance"
)

func (s *Server) registerAPI(g *gin.RouterGroup) {
	// Preflight requests need a route for the group's CORS handler to run.
	g.OPTIONS("/*path", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	g.GET("/attendance", s.apiList)
	g.POST("/attendance", s.apiCreate)
	g.PATCH("/attendance/:id", s.apiUpdate)
	g.DELETE("/attendance/:id", s.apiDelete)
	g.GET("/summary", s.apiSummary)
	g.POST("/sync", s.apiSync)
}

func (s *Server) apiList(c *gin.Context) {
	status := attendance.Status(c.Query("status"))
	if status != "" && !status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
		return
	}
	records, err := s.store.List(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	filtered := attendance.Filter(records, c.Query("q"), status)
	c.JSON(http.StatusOK, gin.H{"records": filtered, "total": len(records)})
}

func (s *Server) apiCreate(c *gin.Context) {
	var in attendance.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rec, err := s.store.Create(c.Request.Context(), in)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rec)
}

func (s *Server) apiUpdate(c *gin.Context) {
	var p attendance.Patch
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rec, err := s.store.Update(c.Request.Context(), c.Param("id"), p)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *Server) apiDelete(c *gin.Context) {
	if err := s.store.Delete(c.Request.Context(), c.Param("id")); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) apiSummary(c *gin.Context) {
	records, err := s.store.List(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	today := s.store.Today()
	c.JSON(http.StatusOK, gin.H{
		"date":         today,
		"today":        attendance.SummarizeDay(records, today),
		"distribution": attendance.Distribution(records),
	})
}

func (s *Server) apiSync(c *gin.Context) {
	c.JSON(http.StatusOK, s.store.TrySync(c.Request.Context()))
}

func (s *Server) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, attendance.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, attendance.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		s.logger.Error("api request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
