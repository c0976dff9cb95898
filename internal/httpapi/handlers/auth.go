package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/suPer8Hu/medirec/internal/common"
)

type signUpReq struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Username string `json:"username"`
}

func (h *Handler) SignUp(c *gin.Context) {
	var req signUpReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	u, err := h.App.SignUp(c.Request.Context(), req.Email, req.Password, req.Username)
	if err != nil {
		h.fail(c, "sign up", err)
		return
	}
	common.OK(c, gin.H{"user_id": u.ID, "email": u.Email})
}

type loginReq struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login signs in with the provider. Tokens stay in this process; the browser
// only learns who it is.
func (h *Handler) Login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	s, err := h.App.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(c, "sign in", err)
		return
	}
	common.OK(c, gin.H{"user_id": s.UserID, "email": s.Email, "expires_at": s.ExpiresAt})
}

func (h *Handler) Logout(c *gin.Context) {
	if err := h.App.SignOut(c.Request.Context()); err != nil {
		h.fail(c, "sign out", err)
		return
	}
	common.OK(c, nil)
}
