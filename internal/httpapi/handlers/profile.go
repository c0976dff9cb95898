package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/suPer8Hu/medirec/internal/common"
)

const maxAvatarBytes = 5 << 20

func (h *Handler) GetProfile(c *gin.Context) {
	page, err := h.App.ProfilePage(c.Request.Context())
	if err != nil {
		h.fail(c, "load profile", err)
		return
	}
	resp := gin.H{"profile": page.Profile, "predictions": page.Predictions}
	if page.HistoryErr != nil {
		h.Log.Warn("history unavailable", "err", page.HistoryErr)
		resp["history_error"] = "error fetching predictions"
	}
	common.OK(c, resp)
}

type updateProfileReq struct {
	Username string `json:"username" binding:"required"`
}

func (h *Handler) UpdateProfile(c *gin.Context) {
	var req updateProfileReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	if err := h.App.UpdateUsername(c.Request.Context(), req.Username); err != nil {
		h.fail(c, "update profile", err)
		return
	}
	common.OK(c, viewOf(h.Session.Snapshot()).Profile)
}

func (h *Handler) UploadAvatar(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxAvatarBytes)
	fh, err := c.FormFile("avatar")
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 10013, "you must select an image to upload")
		return
	}
	f, err := fh.Open()
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 10013, "unreadable upload")
		return
	}
	defer f.Close()

	u, err := h.App.UploadAvatar(c.Request.Context(), fh.Filename, f, fh.Header.Get("Content-Type"))
	if err != nil {
		h.fail(c, "upload avatar", err)
		return
	}
	common.OK(c, gin.H{"avatar_url": u})
}
