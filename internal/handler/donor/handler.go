package donor

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/lifeflow-api/internal/middleware"
	"github.com/jwalitptl/lifeflow-api/internal/model"
	"github.com/jwalitptl/lifeflow-api/internal/service/donor"
	"github.com/jwalitptl/lifeflow-api/pkg/httputil"
)

type Handler struct {
	service *donor.Service
}

func NewHandler(service *donor.Service) *Handler {
	return &Handler{service: service}
}

// Me returns the authenticated donor's profile.
func (h *Handler) Me(c *gin.Context) {
	d, ok := h.resolve(c)
	if !ok {
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, d)
}

func (h *Handler) Update(c *gin.Context) {
	d, ok := h.resolve(c)
	if !ok {
		return
	}

	var req model.UpdateDonorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
		return
	}

	updated, err := h.service.Update(c.Request.Context(), d.ID, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, updated)
}

// Eligibility reports the authenticated donor's cooldown state.
func (h *Handler) Eligibility(c *gin.Context) {
	d, ok := h.resolve(c)
	if !ok {
		return
	}

	elig, err := h.service.Eligibility(c.Request.Context(), d.ID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, elig)
}

// History returns the authenticated donor's opt-in history.
func (h *Handler) History(c *gin.Context) {
	d, ok := h.resolve(c)
	if !ok {
		return
	}

	history, err := h.service.History(c.Request.Context(), d.ID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, history)
}

func (h *Handler) resolve(c *gin.Context) (*model.Donor, bool) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"status": "error", "message": "invalid user"})
		return nil, false
	}

	d, err := h.service.GetByUserID(c.Request.Context(), userID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return nil, false
	}
	return d, true
}
