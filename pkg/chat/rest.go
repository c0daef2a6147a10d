package chat

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"hackmate/pkg/response"
	"hackmate/pkg/wire"
)

// RegisterRoutes mounts the websocket endpoint and the chat REST API.
func (h *Handler) RegisterRoutes(router gin.IRouter) {
	router.GET("/ws/chat", h.HandleWebSocketGin)
	router.GET("/chat/status", h.GetStatusGin)
	router.GET("/messages", h.GetMessagesGin)
	router.PUT("/messages/read", h.MarkReadGin)
	router.GET("/teams/:teamId/messages", h.GetTeamMessagesGin)
	router.PUT("/teams/:teamId/messages/read", h.MarkTeamReadGin)
}

// GetStatusGin godoc
// @Summary Get online users
// @Description Returns list of currently connected users
// @Tags chat
// @Produce json
// @Success 200 {object} response.APIResponse
// @Router /chat/status [get]
func (h *Handler) GetStatusGin(c *gin.Context) {
	users := h.manager.GetOnlineUsers()
	response.SendAPIResponse(c, http.StatusOK, true, "online status", gin.H{
		"online_users": users,
		"count":        len(users),
	})
}

// parsePage reads limit and before (epoch seconds) from the query string.
func (h *Handler) parsePage(c *gin.Context) (int, time.Time, bool) {
	limit := h.limits.HistoryLimit
	if ls := c.Query("limit"); ls != "" {
		n, err := strconv.Atoi(ls)
		if err != nil || n <= 0 {
			response.SendError(c, http.StatusBadRequest, "invalid limit parameter")
			return 0, time.Time{}, false
		}
		limit = n
	}
	before := h.now().Add(time.Second)
	if bs := c.Query("before"); bs != "" {
		epoch, err := strconv.ParseInt(bs, 10, 64)
		if err != nil {
			response.SendError(c, http.StatusBadRequest, "invalid before parameter")
			return 0, time.Time{}, false
		}
		before = time.Unix(epoch, 0).UTC()
	}
	return limit, before, true
}

func (h *Handler) requireRepo(c *gin.Context) bool {
	if h.repo == nil {
		response.SendError(c, http.StatusServiceUnavailable, "message history not available")
		return false
	}
	return true
}

func validUUID(c *gin.Context, value, name string) bool {
	if _, err := uuid.Parse(value); err != nil {
		response.SendError(c, http.StatusBadRequest, "invalid "+name+", must be UUID")
		return false
	}
	return true
}

// GetMessagesGin godoc
// @Summary Get conversation history
// @Description Fetch chat messages between the requesting user and a peer, oldest first
// @Tags chat
// @Param user_id query string true "Requesting user UUID"
// @Param peer_id query string true "Peer user UUID"
// @Param limit query int false "Maximum messages to return (max 100)"
// @Param before query int false "Epoch seconds cursor for pagination"
// @Produce json
// @Success 200 {object} response.APIResponse
// @Failure 400 {object} response.APIResponse
// @Failure 500 {object} response.APIResponse
// @Router /messages [get]
func (h *Handler) GetMessagesGin(c *gin.Context) {
	if !h.requireRepo(c) {
		return
	}
	userID, peerID := c.Query("user_id"), c.Query("peer_id")
	if !validUUID(c, userID, "user_id") || !validUUID(c, peerID, "peer_id") {
		return
	}
	limit, before, ok := h.parsePage(c)
	if !ok {
		return
	}

	messages, err := h.repo.GetConversationHistory(c.Request.Context(), userID, peerID, limit, before)
	if err != nil {
		h.logger.Error("history query failed", "user_id", userID, "peer_id", peerID, "error", err)
		response.SendError(c, http.StatusInternalServerError, "failed to fetch messages")
		return
	}
	response.SendAPIResponse(c, http.StatusOK, true, "messages", gin.H{
		"messages": messages,
		"count":    len(messages),
	})
}

// GetTeamMessagesGin godoc
// @Summary Get team chat history
// @Description Fetch the team's group chat, oldest first. The requester must be a team member.
// @Tags chat
// @Param teamId path string true "Team UUID"
// @Param user_id query string true "Requesting user UUID"
// @Param limit query int false "Maximum messages to return (max 100)"
// @Param before query int false "Epoch seconds cursor for pagination"
// @Produce json
// @Success 200 {object} response.APIResponse
// @Failure 400 {object} response.APIResponse
// @Failure 403 {object} response.APIResponse
// @Failure 500 {object} response.APIResponse
// @Router /teams/{teamId}/messages [get]
func (h *Handler) GetTeamMessagesGin(c *gin.Context) {
	if !h.requireRepo(c) {
		return
	}
	teamID, userID := c.Param("teamId"), c.Query("user_id")
	if !validUUID(c, teamID, "teamId") || !validUUID(c, userID, "user_id") {
		return
	}
	if !h.requireMember(c, teamID, userID) {
		return
	}
	limit, before, ok := h.parsePage(c)
	if !ok {
		return
	}

	messages, err := h.repo.GetTeamHistory(c.Request.Context(), teamID, limit, before)
	if err != nil {
		h.logger.Error("team history query failed", "team_id", teamID, "error", err)
		response.SendError(c, http.StatusInternalServerError, "failed to fetch messages")
		return
	}
	response.SendAPIResponse(c, http.StatusOK, true, "messages", gin.H{
		"messages": messages,
		"count":    len(messages),
	})
}

func (h *Handler) requireMember(c *gin.Context, teamID, userID string) bool {
	if h.teams == nil {
		return true
	}
	ok, err := h.teams.IsMember(c.Request.Context(), teamID, userID)
	if err != nil {
		h.logger.Error("team membership lookup failed", "team_id", teamID, "user_id", userID, "error", err)
		response.SendError(c, http.StatusInternalServerError, "failed to verify team membership")
		return false
	}
	if !ok {
		response.SendError(c, http.StatusForbidden, "forbidden: not a member of this team")
		return false
	}
	return true
}

// MarkReadGin godoc
// @Summary Mark a conversation read
// @Description Marks every unread message from sender to receiver as read and notifies the sender
// @Tags chat
// @Accept json
// @Produce json
// @Param request body MarkReadRequest true "Conversation to mark"
// @Success 200 {object} response.APIResponse
// @Failure 400 {object} response.APIResponse
// @Failure 500 {object} response.APIResponse
// @Router /messages/read [put]
func (h *Handler) MarkReadGin(c *gin.Context) {
	if !h.requireRepo(c) {
		return
	}
	var req MarkReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.SendError(c, http.StatusBadRequest, "invalid request payload")
		return
	}
	if !validUUID(c, req.SenderID, "senderId") || !validUUID(c, req.ReceiverID, "receiverId") {
		return
	}

	updated, err := h.repo.MarkConversationRead(c.Request.Context(), req.ReceiverID, req.SenderID)
	if err != nil {
		h.logger.Error("mark read failed", "sender_id", req.SenderID, "receiver_id", req.ReceiverID, "error", err)
		response.SendError(c, http.StatusInternalServerError, "failed to mark messages as read")
		return
	}
	if updated > 0 && h.manager.IsOnline(req.SenderID) {
		notice := h.envelope(wire.EventMessagesRead, wire.MessagesRead{ReaderID: req.ReceiverID, PeerID: req.SenderID})
		if err := h.manager.BroadcastToUser(req.SenderID, notice); err != nil {
			h.logger.Debug("read receipt not delivered", "sender_id", req.SenderID, "error", err)
		}
	}
	response.SendAPIResponse(c, http.StatusOK, true, "messages marked as read", gin.H{"updated": updated})
}

// MarkTeamReadGin godoc
// @Summary Mark team chat read
// @Description Records the user's read position in the team chat
// @Tags chat
// @Accept json
// @Produce json
// @Param teamId path string true "Team UUID"
// @Param request body MarkTeamReadRequest true "Reader"
// @Success 200 {object} response.APIResponse
// @Failure 400 {object} response.APIResponse
// @Failure 403 {object} response.APIResponse
// @Failure 404 {object} response.APIResponse
// @Router /teams/{teamId}/messages/read [put]
func (h *Handler) MarkTeamReadGin(c *gin.Context) {
	if !h.requireRepo(c) {
		return
	}
	teamID := c.Param("teamId")
	var req MarkTeamReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.SendError(c, http.StatusBadRequest, "invalid request payload")
		return
	}
	if !validUUID(c, teamID, "teamId") || !validUUID(c, req.UserID, "userId") {
		return
	}
	if !h.requireMember(c, teamID, req.UserID) {
		return
	}

	if err := h.repo.MarkTeamRead(c.Request.Context(), teamID, req.UserID, h.now()); err != nil {
		if errors.Is(err, ErrUnknownParticipant) {
			response.SendError(c, http.StatusNotFound, "team or user not found")
			return
		}
		h.logger.Error("mark team read failed", "team_id", teamID, "user_id", req.UserID, "error", err)
		response.SendError(c, http.StatusInternalServerError, "failed to mark messages as read")
		return
	}
	notice := h.envelope(wire.EventMessagesRead, wire.MessagesRead{ReaderID: req.UserID, TeamID: teamID})
	h.manager.BroadcastToRoom(teamID, req.UserID, notice)
	response.SendAPIResponse(c, http.StatusOK, true, "messages marked as read", nil)
}
