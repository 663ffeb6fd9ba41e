package rest

import (
	"github.com/gin-gonic/gin"

	"agora/internal/market/app"
)

type agentHandler struct {
	agents     *app.AgentService
	reputation *app.ReputationService
}

func newAgentHandler(agents *app.AgentService, reputation *app.ReputationService) *agentHandler {
	return &agentHandler{agents: agents, reputation: reputation}
}

type registerAgentRequest struct {
	Name            string `json:"name" binding:"required"`
	WalletAddress   string `json:"walletAddress" binding:"required"`
	Endpoint        string `json:"endpoint" binding:"required"`
	PricePerRequest string `json:"pricePerRequest"`
	MinimumStake    string `json:"minimumStake"`
}

func (h *agentHandler) Register(c *gin.Context) {
	var req registerAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request: "+err.Error())
		return
	}
	agent, err := h.agents.Register(c.Request.Context(), app.RegisterRequest{
		Name:            req.Name,
		WalletAddress:   req.WalletAddress,
		Endpoint:        req.Endpoint,
		PricePerRequest: req.PricePerRequest,
		MinimumStake:    req.MinimumStake,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondCreated(c, agent)
}

func (h *agentHandler) List(c *gin.Context) {
	activeOnly := c.Query("active") == "true"
	agents, err := h.agents.List(c.Request.Context(), activeOnly)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, agents)
}

func (h *agentHandler) Get(c *gin.Context) {
	agent, err := h.agents.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, agent)
}

type stakeRequest struct {
	Amount string `json:"amount" binding:"required"`
}

func (h *agentHandler) ConfirmStake(c *gin.Context) {
	var req stakeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request: "+err.Error())
		return
	}
	agent, err := h.agents.ConfirmStake(c.Request.Context(), c.Param("id"), req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, agent)
}

func (h *agentHandler) SyncStake(c *gin.Context) {
	agent, err := h.agents.SyncStakeFromChain(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, agent)
}

func (h *agentHandler) Feedback(c *gin.Context) {
	history, err := h.reputation.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, history)
}
