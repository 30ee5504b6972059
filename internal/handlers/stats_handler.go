package handlers

import (
	"context"
	"net/http"
	"strconv"

	"mcq-service/internal/service"

	"github.com/gin-gonic/gin"
)

type StatsHandler struct {
	Service *service.SessionService
}

func NewStatsHandler(s *service.SessionService) *StatsHandler {
	return &StatsHandler{Service: s}
}

// GetStats aggregates counts over the live session store.
func (h *StatsHandler) GetStats(c *gin.Context) {
	stats, err := h.Service.Stats(context.Background())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to load session statistics",
			"details": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// GetCompletedQuizzes lists a student's archived quizzes, newest first.
func (h *StatsHandler) GetCompletedQuizzes(c *gin.Context) {
	student := c.Param("student_id")
	if student == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Student ID is required"})
		return
	}

	skip, _ := strconv.ParseInt(c.DefaultQuery("skip", "0"), 10, 64)
	limit, _ := strconv.ParseInt(c.DefaultQuery("limit", "20"), 10, 64)
	if skip < 0 {
		skip = 0
	}

	quizzes, err := h.Service.CompletedQuizzes(context.Background(), student, skip, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to load completed quizzes",
			"details": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"student_id": student,
		"count":      len(quizzes),
		"quizzes":    quizzes,
	})
}
