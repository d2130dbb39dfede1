package handlers

import (
	"errors"
	"net/http"

	"elementduel/services"

	"github.com/gin-gonic/gin"
)

type MatchHandler struct {
	sessions *services.SessionManager
	reporter *services.ResultReporter
}

func NewMatchHandler(sessions *services.SessionManager, reporter *services.ResultReporter) *MatchHandler {
	return &MatchHandler{sessions: sessions, reporter: reporter}
}

type AnswerRequest struct {
	Symbol string `json:"symbol" binding:"required"`
}

func (h *MatchHandler) FindGame(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}
	uid := userID.(uint)

	coord := h.sessions.Coordinator(uid)
	match, err := coord.FindGame(uid)
	if err != nil {
		if errors.Is(err, services.ErrMatchUnavailable) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Cannot find or create a match"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, match)
}

func (h *MatchHandler) AnswerQuestion(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}
	uid := userID.(uint)

	var req AnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.sessions.Coordinator(uid).AnswerQuestion(req.Symbol, uid)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Failed to submit answer"})
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *MatchHandler) LeaveGame(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}
	uid := userID.(uint)

	if err := h.sessions.Coordinator(uid).LeaveGame(uid); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Failed to leave match"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Left match"})
}

func (h *MatchHandler) GetCurrentMatch(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}
	uid := userID.(uint)

	match := h.sessions.Coordinator(uid).CurrentMatch()
	if match == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No current match"})
		return
	}

	c.JSON(http.StatusOK, match)
}

func (h *MatchHandler) GetCurrentQuestion(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}
	uid := userID.(uint)

	question := h.sessions.Coordinator(uid).GetCurrentQuestion()
	if question == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No active question"})
		return
	}

	// Never reveal the answer field to the asking client.
	c.JSON(http.StatusOK, gin.H{
		"prompt":  question.Prompt,
		"options": question.Options,
	})
}

func (h *MatchHandler) GetHistory(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}
	uid := userID.(uint)

	records, err := h.reporter.History(uid, 20)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load history"})
		return
	}

	c.JSON(http.StatusOK, records)
}
