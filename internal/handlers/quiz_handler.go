package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"mcq-service/internal/quiz"
	"mcq-service/internal/service"

	"github.com/gin-gonic/gin"
)

type QuizHandler struct {
	Service *service.SessionService
}

func NewQuizHandler(s *service.SessionService) *QuizHandler {
	return &QuizHandler{Service: s}
}

// statusFor maps the quiz error taxonomy onto HTTP statuses. Phase and
// answer violations are the caller's fault; source failures are upstream
// problems.
func statusFor(err error) int {
	switch {
	case errors.Is(err, quiz.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, quiz.ErrInvalidPhase), errors.Is(err, quiz.ErrInvalidAnswer):
		return http.StatusBadRequest
	case errors.Is(err, quiz.ErrWriteConflict):
		return http.StatusConflict
	case errors.Is(err, quiz.ErrFeedbackGeneration):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// studentID resolves the acting student from the explicit field when given,
// falling back to the X-User-ID header set by the auth middleware.
func studentID(c *gin.Context, explicit string) string {
	if explicit != "" {
		return explicit
	}
	return c.GetHeader("X-User-ID")
}

// StartQuiz starts a new session or resumes an existing one and returns the
// next question. The correct answer never leaves the server.
func (h *QuizHandler) StartQuiz(c *gin.Context) {
	var req struct {
		Course            string `json:"course" binding:"required"`
		Topic             string `json:"topic" binding:"required"`
		StudentID         string `json:"student_id"`
		SessionID         string `json:"session_id"`
		InitialDifficulty int    `json:"initial_difficulty"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request format",
			"details": err.Error(),
		})
		return
	}

	student := studentID(c, req.StudentID)
	if student == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Student ID is required"})
		return
	}
	if req.InitialDifficulty != 0 &&
		(req.InitialDifficulty < quiz.MinDifficulty || req.InitialDifficulty > quiz.MaxDifficulty) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "initial_difficulty must be between 1 and 5"})
		return
	}

	result, err := h.Service.StartOrResume(context.Background(), service.StartRequest{
		StudentID:         student,
		Course:            req.Course,
		Topic:             req.Topic,
		InitialDifficulty: req.InitialDifficulty,
		SessionID:         req.SessionID,
	})
	if err != nil {
		c.JSON(statusFor(err), gin.H{
			"error":   "Failed to start quiz session",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"session_id":      result.SessionID,
		"course":          result.Course,
		"topic":           result.Topic,
		"difficulty":      result.Difficulty,
		"question":        result.Question,
		"options":         result.Options,
		"question_number": result.QuestionNumber,
		"message":         "Quiz session started successfully",
	})
}

// SubmitAnswer grades the active question. When the feedback source fails the
// scoring fields in the body are still authoritative; the 502 only means the
// feedback text is missing.
func (h *QuizHandler) SubmitAnswer(c *gin.Context) {
	var req struct {
		SessionID string `json:"session_id" binding:"required"`
		StudentID string `json:"student_id"`
		Answer    string `json:"answer" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid answer format",
			"details": err.Error(),
		})
		return
	}

	student := studentID(c, req.StudentID)
	if student == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Student ID is required"})
		return
	}

	result, err := h.Service.SubmitAnswer(context.Background(), student, req.SessionID, req.Answer)
	if err != nil && !errors.Is(err, quiz.ErrFeedbackGeneration) {
		c.JSON(statusFor(err), gin.H{
			"error":   "Failed to process answer",
			"details": err.Error(),
		})
		return
	}

	response := gin.H{
		"session_id":      req.SessionID,
		"is_correct":      result.IsCorrect,
		"feedback":        result.Feedback,
		"score":           result.Score,
		"total_questions": result.TotalQuestions,
		"new_difficulty":  result.Difficulty,
	}
	if err != nil {
		response["warning"] = "Feedback generation failed; score and difficulty are final"
		response["details"] = err.Error()
		c.JSON(http.StatusBadGateway, response)
		return
	}
	c.JSON(http.StatusOK, response)
}

// GetStatus returns the read-only session projection.
func (h *QuizHandler) GetStatus(c *gin.Context) {
	sessionID := c.Param("session_id")
	student := studentID(c, c.Query("student_id"))
	if student == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Student ID is required"})
		return
	}

	status, err := h.Service.GetStatus(context.Background(), student, sessionID)
	if err != nil {
		c.JSON(statusFor(err), gin.H{
			"error":   "Quiz session not found or expired",
			"details": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, status)
}

// EndQuiz finalizes the session, archives it and returns the final results.
func (h *QuizHandler) EndQuiz(c *gin.Context) {
	sessionID := c.Param("session_id")
	student := studentID(c, c.Query("student_id"))
	if student == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Student ID is required"})
		return
	}

	summary, err := h.Service.End(context.Background(), student, sessionID)
	if err != nil {
		c.JSON(statusFor(err), gin.H{
			"error":   "Failed to end quiz session",
			"details": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":       "Quiz session ended successfully",
		"final_results": summary,
	})
}

// HealthCheck reports service health and the live-session count.
func (h *QuizHandler) HealthCheck(c *gin.Context) {
	stats, err := h.Service.Stats(context.Background())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "degraded",
			"details": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":                "healthy",
		"active_sessions_count": stats.TotalSessions,
		"timestamp":             time.Now(),
	})
}
