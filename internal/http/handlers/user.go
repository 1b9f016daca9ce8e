package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cognivue/cognivue-backend/internal/http/response"
	"github.com/cognivue/cognivue-backend/internal/platform/dbctx"
	"github.com/cognivue/cognivue-backend/internal/services"
)

type UserHandler struct {
	userService services.UserService
}

func NewUserHandler(userService services.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// GET /api/user-info/
func (uh *UserHandler) GetMe(c *gin.Context) {
	me, err := uh.userService.GetMe(dbctx.Context{Ctx: c.Request.Context()})
	if err != nil {
		response.RespondAPIError(c, err, "Failed to load user")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":         me.ID,
		"username":   me.DisplayName(),
		"email":      me.Email,
		"avatar_url": me.AvatarURL,
	})
}
