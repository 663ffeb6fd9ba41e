package rest

import (
	"github.com/gin-gonic/gin"

	"agora/internal/market/app"
)

type feedbackHandler struct {
	reputation *app.ReputationService
}

func newFeedbackHandler(reputation *app.ReputationService) *feedbackHandler {
	return &feedbackHandler{reputation: reputation}
}

type submitFeedbackRequest struct {
	AgentID      string `json:"agentId" binding:"required"`
	Reviewer     string `json:"reviewer" binding:"required"`
	Score        int    `json:"score" binding:"required"`
	Comment      string `json:"comment"`
	PaymentProof string `json:"paymentProof" binding:"required"`
}

func (h *feedbackHandler) Submit(c *gin.Context) {
	var req submitFeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request: "+err.Error())
		return
	}
	result, err := h.reputation.SubmitFeedback(c.Request.Context(), app.FeedbackRequest{
		AgentID:      req.AgentID,
		Reviewer:     req.Reviewer,
		Score:        req.Score,
		Comment:      req.Comment,
		PaymentProof: req.PaymentProof,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondCreated(c, result)
}

type disputeHandler struct {
	disputes *app.DisputeService
}

func newDisputeHandler(disputes *app.DisputeService) *disputeHandler {
	return &disputeHandler{disputes: disputes}
}

type createDisputeRequest struct {
	TaskID   string `json:"taskId" binding:"required"`
	RaisedBy string `json:"raisedBy" binding:"required"`
	Reason   string `json:"reason" binding:"required"`
}

func (h *disputeHandler) Create(c *gin.Context) {
	var req createDisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request: "+err.Error())
		return
	}
	d, err := h.disputes.Create(c.Request.Context(), req.TaskID, req.RaisedBy, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	respondCreated(c, d)
}

func (h *disputeHandler) Get(c *gin.Context) {
	d, votes, err := h.disputes.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"dispute": d, "votes": votes})
}

func (h *disputeHandler) ListOpen(c *gin.Context) {
	open, err := h.disputes.ListOpen(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, open)
}

type voteRequest struct {
	Validator     string `json:"validator" binding:"required"`
	ApproveRefund *bool  `json:"approveRefund" binding:"required"`
	Comment       string `json:"comment"`
}

func (h *disputeHandler) SubmitVote(c *gin.Context) {
	var req voteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request: "+err.Error())
		return
	}
	d, err := h.disputes.SubmitVote(c.Request.Context(), c.Param("id"), req.Validator, *req.ApproveRefund, req.Comment)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, d)
}
