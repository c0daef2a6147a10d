package users

import (
	"errors"
	"net/http"
	"strconv"

	"hackmate/pkg/response"

	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	service UserService
}

func NewUserHandler(service UserService) *UserHandler {
	return &UserHandler{service: service}
}

func (h *UserHandler) RegisterRoutes(router gin.IRouter) {
	router.POST("/users", h.createUser)
	router.PUT("/users/:uuid", h.updateUser)
	router.GET("/users", h.listUsers)
	router.GET("/users/:uuid", h.getUserByUUID)
}

type createUserRequest struct {
	Name          string `json:"name" binding:"required"`
	Email         string `json:"email" binding:"required,email"`
	Role          string `json:"role"`
	ProfilePicURL string `json:"profile_pic_url"`
}

type updateUserRequest struct {
	Name          string `json:"name" binding:"required"`
	Role          string `json:"role"`
	ProfilePicURL string `json:"profile_pic_url"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrEmailTaken):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidRole), errors.Is(err, ErrInvalidUUID):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// @Summary      Register participant
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        request body createUserRequest true "Create user request"
// @Success      201 {object} response.APIResponse{data=User}
// @Failure      400 {object} response.APIResponse
// @Failure      409 {object} response.APIResponse
// @Router       /users [post]
func (h *UserHandler) createUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.SendError(c, http.StatusBadRequest, "invalid request payload")
		return
	}

	u, err := h.service.CreateUser(c.Request.Context(), req.Name, req.Email, req.Role, req.ProfilePicURL)
	if err != nil {
		response.SendError(c, statusFor(err), err.Error())
		return
	}
	response.SendAPIResponse(c, http.StatusCreated, true, "user created", u)
}

// @Summary      Update participant
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        uuid path string true "User UUID"
// @Param        request body updateUserRequest true "Update user request"
// @Success      200 {object} response.APIResponse{data=User}
// @Failure      400 {object} response.APIResponse
// @Failure      404 {object} response.APIResponse
// @Router       /users/{uuid} [put]
func (h *UserHandler) updateUser(c *gin.Context) {
	var req updateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.SendError(c, http.StatusBadRequest, "invalid request payload")
		return
	}

	u, err := h.service.UpdateUserByUUID(c.Request.Context(), c.Param("uuid"), User{
		Name:          req.Name,
		Role:          req.Role,
		ProfilePicURL: req.ProfilePicURL,
	})
	if err != nil {
		response.SendError(c, statusFor(err), err.Error())
		return
	}
	response.SendAPIResponse(c, http.StatusOK, true, "user updated", u)
}

// @Summary      Get participant by UUID
// @Tags         users
// @Produce      json
// @Param        uuid path string true "User UUID"
// @Success      200 {object} response.APIResponse{data=User}
// @Failure      400 {object} response.APIResponse
// @Failure      404 {object} response.APIResponse
// @Router       /users/{uuid} [get]
func (h *UserHandler) getUserByUUID(c *gin.Context) {
	u, err := h.service.GetUserByUUID(c.Request.Context(), c.Param("uuid"))
	if err != nil {
		response.SendError(c, statusFor(err), err.Error())
		return
	}
	response.SendAPIResponse(c, http.StatusOK, true, "user fetched", u)
}

// @Summary      List participants
// @Tags         users
// @Produce      json
// @Param        role  query string false "student, mentor or moderator"
// @Param        page  query int false "Page number" default(1)
// @Param        limit query int false "Items per page" default(10)
// @Success      200 {object} response.APIResponse{data=UserList}
// @Failure      400 {object} response.APIResponse
// @Failure      500 {object} response.APIResponse
// @Router       /users [get]
func (h *UserHandler) listUsers(c *gin.Context) {
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

	items, total, err := h.service.ListUsers(c.Request.Context(), c.Query("role"), page, limit)
	if err != nil {
		response.SendError(c, statusFor(err), err.Error())
		return
	}
	data := UserList{Items: items, Total: total, Page: page, Limit: limit}
	response.SendAPIResponse(c, http.StatusOK, true, "users listed", data)
}
