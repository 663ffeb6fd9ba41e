package rest

import (
	"strings"

	"github.com/gin-gonic/gin"

	"agora/internal/market/app"
	"agora/internal/market/domain"
)

type taskHandler struct {
	tasks *app.TaskService
}

func newTaskHandler(tasks *app.TaskService) *taskHandler {
	return &taskHandler{tasks: tasks}
}

type createTaskRequest struct {
	RequesterID string `json:"requesterId" binding:"required"`
	Description string `json:"description" binding:"required"`
	ServiceType string `json:"serviceType"`
}

func (h *taskHandler) Create(c *gin.Context) {
	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request: "+err.Error())
		return
	}
	task, err := h.tasks.Create(c.Request.Context(), req.RequesterID, req.Description, req.ServiceType)
	if err != nil {
		respondError(c, err)
		return
	}
	respondCreated(c, task)
}

func (h *taskHandler) Get(c *gin.Context) {
	task, err := h.tasks.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, task)
}

func (h *taskHandler) ListByRequester(c *gin.Context) {
	requester := strings.TrimSpace(c.Query("requester"))
	if requester == "" {
		respondBadRequest(c, "requester query parameter is required")
		return
	}
	tasks, err := h.tasks.ListByRequester(c.Request.Context(), requester)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, tasks)
}

type assignRequest struct {
	AgentID string `json:"agentId" binding:"required"`
}

func (h *taskHandler) Assign(c *gin.Context) {
	var req assignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request: "+err.Error())
		return
	}
	task, err := h.tasks.Assign(c.Request.Context(), c.Param("id"), req.AgentID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, task)
}

type recordPaymentRequest struct {
	TxHash string `json:"txHash" binding:"required"`
	Status string `json:"status" binding:"required"`
}

func (h *taskHandler) RecordPayment(c *gin.Context) {
	var req recordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request: "+err.Error())
		return
	}
	task, err := h.tasks.RecordPayment(c.Request.Context(), c.Param("id"), req.TxHash, domain.PaymentStatus(strings.ToUpper(req.Status)))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, task)
}

type reviewRequest struct {
	Score   int    `json:"score" binding:"required"`
	Comment string `json:"comment"`
}

func (h *taskHandler) SubmitReview(c *gin.Context) {
	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request: "+err.Error())
		return
	}
	task, err := h.tasks.SubmitReview(c.Request.Context(), c.Param("id"), req.Score, req.Comment)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, task)
}
