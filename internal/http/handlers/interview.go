package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/cognivue/cognivue-backend/internal/http/response"
	"github.com/cognivue/cognivue-backend/internal/platform/apierr"
	"github.com/cognivue/cognivue-backend/internal/platform/dbctx"
	"github.com/cognivue/cognivue-backend/internal/services"
)

type InterviewHandler struct {
	interviewService services.InterviewService
}

func NewInterviewHandler(interviewService services.InterviewService) *InterviewHandler {
	return &InterviewHandler{interviewService: interviewService}
}

func invalidJSON(c *gin.Context) {
	response.RespondAPIError(c, apierr.Validation("Invalid JSON body"), "")
}

// POST /api/generate-questions/
func (h *InterviewHandler) GenerateQuestions(c *gin.Context) {
	var req struct {
		Mode       string                   `json:"mode"`
		Difficulty string                   `json:"difficulty"`
		Role       string                   `json:"role"`
		Keywords   []string                 `json:"keywords"`
		Filename   string                   `json:"filename"`
		Analysis   *services.ResumeAnalysis `json:"analysis"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidJSON(c)
		return
	}
	session, err := h.interviewService.Start(dbctx.Context{Ctx: c.Request.Context()}, services.StartInput{
		Mode:           req.Mode,
		Difficulty:     req.Difficulty,
		Role:           req.Role,
		Keywords:       req.Keywords,
		ResumeFilename: req.Filename,
		Analysis:       req.Analysis,
	})
	if err != nil {
		response.RespondAPIError(c, err, "An error occurred while generating questions. Please try again.")
		return
	}
	questions, err := session.QuestionSet()
	if err != nil {
		response.RespondAPIError(c, err, "An error occurred while generating questions. Please try again.")
		return
	}
	response.RespondOK(c, gin.H{"session_id": session.ID, "questions": questions})
}

// POST /api/submit-answer/
func (h *InterviewHandler) SubmitAnswer(c *gin.Context) {
	var req struct {
		SessionID     uint64 `json:"session_id"`
		QuestionIndex *int   `json:"question_index"`
		Answer        string `json:"answer"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidJSON(c)
		return
	}
	if req.QuestionIndex == nil {
		response.RespondAPIError(c, apierr.Validation("question_index is required"), "")
		return
	}
	err := h.interviewService.RecordAnswer(dbctx.Context{Ctx: c.Request.Context()}, req.SessionID, *req.QuestionIndex, req.Answer)
	if err != nil {
		response.RespondAPIError(c, err, "Failed to save answer")
		return
	}
	response.RespondOK(c, gin.H{"message": "Answer submitted successfully"})
}

// POST /api/complete-interview/
func (h *InterviewHandler) CompleteInterview(c *gin.Context) {
	var req struct {
		SessionID uint64 `json:"session_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidJSON(c)
		return
	}
	fb, err := h.interviewService.Complete(dbctx.Context{Ctx: c.Request.Context()}, req.SessionID)
	if err != nil {
		response.RespondAPIError(c, err, "An error occurred while completing the interview. Please try again.")
		return
	}
	response.RespondOK(c, gin.H{"message": "Interview completed successfully", "feedback": fb})
}

// GET /api/session-history/
func (h *InterviewHandler) SessionHistory(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			response.RespondAPIError(c, apierr.Validation("limit must be a positive integer"), "")
			return
		}
		limit = n
	}
	items, err := h.interviewService.History(dbctx.Context{Ctx: c.Request.Context()}, limit)
	if err != nil {
		response.RespondAPIError(c, err, "Failed to load session history")
		return
	}
	response.RespondOK(c, gin.H{"sessions": items})
}

// GET /api/session/:id/
func (h *InterviewHandler) SessionDetail(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		response.RespondAPIError(c, apierr.NotFound("Session not found"), "")
		return
	}
	detail, err := h.interviewService.Detail(dbctx.Context{Ctx: c.Request.Context()}, id)
	if err != nil {
		if apierr.Is(err, apierr.CodeNotFound) {
			err = apierr.NotFound("Session not found")
		}
		response.RespondAPIError(c, err, "Failed to load session")
		return
	}
	c.JSON(http.StatusOK, detail)
}

// GET /api/analytics/
func (h *InterviewHandler) Analytics(c *gin.Context) {
	stats, err := h.interviewService.Analytics(dbctx.Context{Ctx: c.Request.Context()})
	if err != nil {
		response.RespondAPIError(c, err, "Failed to load analytics")
		return
	}
	c.JSON(http.StatusOK, stats)
}
