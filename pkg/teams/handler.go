package teams

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"hackmate/pkg/response"
)

type TeamHandler struct {
	service TeamService
}

func NewTeamHandler(service TeamService) *TeamHandler {
	return &TeamHandler{service: service}
}

func (h *TeamHandler) RegisterRoutes(router gin.IRouter) {
	router.POST("/teams", h.createTeam)
	router.GET("/teams", h.listTeams)
	router.GET("/teams/:teamId", h.getTeam)
	router.GET("/teams/:teamId/members", h.listMembers)
	router.PUT("/teams/:teamId/members/:userId", h.addMember)
	router.DELETE("/teams/:teamId/members/:userId", h.removeMember)
	router.GET("/users/:uuid/teams", h.listTeamsByUser)
}

type createTeamRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Hackathon   string `json:"hackathon"`
}

type addMemberRequest struct {
	Role string `json:"role"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrTeamNotFound), errors.Is(err, ErrMemberNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidUUID), errors.Is(err, ErrInvalidRole), errors.Is(err, ErrInvalidTeam):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// @Summary      Create team
// @Tags         teams
// @Accept       json
// @Produce      json
// @Param        request body createTeamRequest true "Create team request"
// @Success      201 {object} response.APIResponse{data=Team}
// @Failure      400 {object} response.APIResponse
// @Router       /teams [post]
func (h *TeamHandler) createTeam(c *gin.Context) {
	var req createTeamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.SendError(c, http.StatusBadRequest, "invalid request payload")
		return
	}

	team, err := h.service.CreateTeam(c.Request.Context(), Team{
		Name:        req.Name,
		Description: req.Description,
		Hackathon:   req.Hackathon,
	})
	if err != nil {
		response.SendError(c, statusFor(err), err.Error())
		return
	}
	response.SendAPIResponse(c, http.StatusCreated, true, "team created", team)
}

// @Summary      List teams
// @Tags         teams
// @Produce      json
// @Param        hackathon query string false "Filter by hackathon"
// @Param        page      query int false "Page number" default(1)
// @Param        limit     query int false "Items per page" default(10)
// @Success      200 {object} response.APIResponse{data=TeamList}
// @Failure      500 {object} response.APIResponse
// @Router       /teams [get]
func (h *TeamHandler) listTeams(c *gin.Context) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if err != nil || limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}

	items, total, err := h.service.ListTeams(c.Request.Context(), c.Query("hackathon"), page, limit)
	if err != nil {
		response.SendError(c, statusFor(err), err.Error())
		return
	}
	response.SendAPIResponse(c, http.StatusOK, true, "teams listed", TeamList{Items: items, Total: total, Page: page, Limit: limit})
}

// @Summary      Get team
// @Tags         teams
// @Produce      json
// @Param        teamId path string true "Team UUID"
// @Success      200 {object} response.APIResponse{data=Team}
// @Failure      400 {object} response.APIResponse
// @Failure      404 {object} response.APIResponse
// @Router       /teams/{teamId} [get]
func (h *TeamHandler) getTeam(c *gin.Context) {
	team, err := h.service.GetTeam(c.Request.Context(), c.Param("teamId"))
	if err != nil {
		response.SendError(c, statusFor(err), err.Error())
		return
	}
	response.SendAPIResponse(c, http.StatusOK, true, "team fetched", team)
}

// @Summary      List team members
// @Tags         teams
// @Produce      json
// @Param        teamId path string true "Team UUID"
// @Success      200 {object} response.APIResponse{data=[]Member}
// @Failure      404 {object} response.APIResponse
// @Router       /teams/{teamId}/members [get]
func (h *TeamHandler) listMembers(c *gin.Context) {
	members, err := h.service.ListMembers(c.Request.Context(), c.Param("teamId"))
	if err != nil {
		response.SendError(c, statusFor(err), err.Error())
		return
	}
	response.SendAPIResponse(c, http.StatusOK, true, "members listed", members)
}

// @Summary      Add or update a team member
// @Tags         teams
// @Accept       json
// @Produce      json
// @Param        teamId  path string true "Team UUID"
// @Param        userId  path string true "User UUID"
// @Param        request body addMemberRequest false "Member role"
// @Success      200 {object} response.APIResponse{data=Member}
// @Failure      400 {object} response.APIResponse
// @Failure      404 {object} response.APIResponse
// @Router       /teams/{teamId}/members/{userId} [put]
func (h *TeamHandler) addMember(c *gin.Context) {
	var req addMemberRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.SendError(c, http.StatusBadRequest, "invalid request payload")
			return
		}
	}

	m, err := h.service.AddMember(c.Request.Context(), c.Param("teamId"), c.Param("userId"), req.Role)
	if err != nil {
		response.SendError(c, statusFor(err), err.Error())
		return
	}
	response.SendAPIResponse(c, http.StatusOK, true, "member saved", m)
}

// @Summary      Remove a team member
// @Tags         teams
// @Produce      json
// @Param        teamId path string true "Team UUID"
// @Param        userId path string true "User UUID"
// @Success      200 {object} response.APIResponse
// @Failure      404 {object} response.APIResponse
// @Router       /teams/{teamId}/members/{userId} [delete]
func (h *TeamHandler) removeMember(c *gin.Context) {
	if err := h.service.RemoveMember(c.Request.Context(), c.Param("teamId"), c.Param("userId")); err != nil {
		response.SendError(c, statusFor(err), err.Error())
		return
	}
	response.SendAPIResponse(c, http.StatusOK, true, "member removed", nil)
}

// @Summary      List a participant's teams
// @Tags         teams
// @Produce      json
// @Param        uuid path string true "User UUID"
// @Success      200 {object} response.APIResponse{data=[]Team}
// @Failure      400 {object} response.APIResponse
// @Router       /users/{uuid}/teams [get]
func (h *TeamHandler) listTeamsByUser(c *gin.Context) {
	list, err := h.service.ListTeamsByUser(c.Request.Context(), c.Param("uuid"))
	if err != nil {
		response.SendError(c, statusFor(err), err.Error())
		return
	}
	response.SendAPIResponse(c, http.StatusOK, true, "teams listed", list)
}
