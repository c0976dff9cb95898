package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/suPer8Hu/medirec/internal/common"
	"github.com/suPer8Hu/medirec/internal/symptoms"
)

type symptomItem struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

func (h *Handler) ListSymptoms(c *gin.Context) {
	all := symptoms.All()
	out := make([]symptomItem, 0, len(all))
	for _, id := range all {
		out = append(out, symptomItem{ID: id, Label: symptoms.Label(id)})
	}
	common.OK(c, gin.H{"symptoms": out})
}

type predictReq struct {
	Symptoms []string `json:"symptoms"`
}

func (h *Handler) Predict(c *gin.Context) {
	var req predictReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	out, err := h.App.Predict(c.Request.Context(), req.Symptoms)
	if err != nil {
		h.fail(c, "predict", err)
		return
	}
	resp := gin.H{"prediction": out.Prediction, "saved": out.Saved}
	if out.SaveErr != nil {
		resp["save_error"] = "prediction could not be saved to history"
	}
	common.OK(c, resp)
}

func (h *Handler) History(c *gin.Context) {
	rows, err := h.App.History(c.Request.Context())
	if err != nil {
		h.fail(c, "list history", err)
		return
	}
	common.OK(c, gin.H{"predictions": rows})
}
