package certificate

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/lifeflow-api/internal/middleware"
	"github.com/jwalitptl/lifeflow-api/internal/service/certificate"
	"github.com/jwalitptl/lifeflow-api/internal/service/donor"
	"github.com/jwalitptl/lifeflow-api/pkg/httputil"
)

type Handler struct {
	service *certificate.Service
	donors  *donor.Service
}

func NewHandler(service *certificate.Service, donors *donor.Service) *Handler {
	return &Handler{service: service, donors: donors}
}

// ListMine returns the authenticated donor's certificates.
func (h *Handler) ListMine(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"status": "error", "message": "invalid user"})
		return
	}

	d, err := h.donors.GetByUserID(c.Request.Context(), userID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	certs, err := h.service.ListByDonor(c.Request.Context(), d.ID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, certs)
}

func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "invalid certificate ID"})
		return
	}

	cert, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, cert)
}

func (h *Handler) ListPending(c *gin.Context) {
	certs, err := h.service.ListPending(c.Request.Context())
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, certs)
}

func (h *Handler) Approve(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "invalid certificate ID"})
		return
	}

	cert, err := h.service.Approve(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, cert)
}

func (h *Handler) Generate(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "invalid certificate ID"})
		return
	}

	cert, err := h.service.Generate(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, cert)
}

// ApproveAndGenerate is the single-step admin action.
func (h *Handler) ApproveAndGenerate(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "invalid certificate ID"})
		return
	}

	cert, err := h.service.ApproveAndGenerate(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, cert)
}
