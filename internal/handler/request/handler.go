package request

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/lifeflow-api/internal/middleware"
	"github.com/jwalitptl/lifeflow-api/internal/model"
	"github.com/jwalitptl/lifeflow-api/internal/service/assignment"
	"github.com/jwalitptl/lifeflow-api/internal/service/donor"
	"github.com/jwalitptl/lifeflow-api/internal/service/optin"
	"github.com/jwalitptl/lifeflow-api/internal/service/request"
	"github.com/jwalitptl/lifeflow-api/internal/storage"
	"github.com/jwalitptl/lifeflow-api/pkg/httputil"
)

// maxPhotoSize bounds proof photo uploads.
const maxPhotoSize = 10 << 20

type Handler struct {
	requests    *request.Service
	optIns      *optin.Service
	assignments *assignment.Service
	donors      *donor.Service
	photos      storage.PhotoStore
}

func NewHandler(
	requests *request.Service,
	optIns *optin.Service,
	assignments *assignment.Service,
	donors *donor.Service,
	photos storage.PhotoStore,
) *Handler {
	return &Handler{
		requests:    requests,
		optIns:      optIns,
		assignments: assignments,
		donors:      donors,
		photos:      photos,
	}
}

func (h *Handler) Create(c *gin.Context) {
	var req model.CreateBloodRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
		return
	}

	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"status": "error", "message": "invalid user"})
		return
	}

	created, err := h.requests.Submit(c.Request.Context(), userID, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusCreated, created)
}

func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "invalid request ID"})
		return
	}

	req, err := h.requests.Get(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, req)
}

func (h *Handler) List(c *gin.Context) {
	filters := &model.BloodRequestFilters{}
	if s := c.Query("status"); s != "" {
		status := model.RequestStatus(s)
		filters.Status = &status
	}
	if u := c.Query("urgency"); u != "" {
		urgency := model.Urgency(u)
		if !urgency.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "invalid urgency"})
			return
		}
		filters.Urgency = &urgency
	}
	if g := c.Query("blood_group"); g != "" {
		group := model.BloodGroup(g)
		if !group.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "invalid blood group"})
			return
		}
		filters.BloodGroup = &group
	}

	var page model.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
		return
	}

	requests, err := h.requests.List(c.Request.Context(), filters, &page)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, requests)
}

// ListOpen returns approved requests the authenticated donor can opt into.
func (h *Handler) ListOpen(c *gin.Context) {
	d, ok := h.resolveDonor(c)
	if !ok {
		return
	}

	requests, err := h.requests.ListOpenForDonor(c.Request.Context(), d.ID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, requests)
}

func (h *Handler) Approve(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "invalid request ID"})
		return
	}

	req, err := h.requests.Approve(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, req)
}

func (h *Handler) Reject(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "invalid request ID"})
		return
	}

	var body model.RejectRequestRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
		return
	}

	req, err := h.requests.Reject(c.Request.Context(), id, body.Reason)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, req)
}

func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "invalid request ID"})
		return
	}

	if err := h.requests.Delete(c.Request.Context(), id); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, nil)
}

// OptIn adds the authenticated donor to the request's candidate pool.
func (h *Handler) OptIn(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "invalid request ID"})
		return
	}

	d, ok := h.resolveDonor(c)
	if !ok {
		return
	}

	created, err := h.optIns.OptIn(c.Request.Context(), d.ID, id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusCreated, created)
}

// Candidates returns the opt-in pool in the order donors opted in.
func (h *Handler) Candidates(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "invalid request ID"})
		return
	}

	candidates, err := h.assignments.Candidates(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, candidates)
}

func (h *Handler) Assign(c *gin.Context) {
	h.assign(c, h.assignments.Assign)
}

func (h *Handler) Reassign(c *gin.Context) {
	h.assign(c, h.assignments.Reassign)
}

// MarkDonated accepts the proof photo as multipart form data and completes
// the donation.
func (h *Handler) MarkDonated(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "invalid request ID"})
		return
	}

	file, err := c.FormFile("photo")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "proof photo is required"})
		return
	}
	if file.Size > maxPhotoSize {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "photo too large"})
		return
	}

	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "failed to read photo"})
		return
	}
	defer src.Close()

	ref, err := h.photos.Save(c.Request.Context(), src, file.Header.Get("Content-Type"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
		return
	}

	req, err := h.requests.MarkDonated(c.Request.Context(), id, ref)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, req)
}

// Photo streams the stored proof photo.
func (h *Handler) Photo(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "invalid request ID"})
		return
	}

	req, err := h.requests.Get(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	if req.ProofPhotoRef == nil {
		c.JSON(http.StatusNotFound, gin.H{"status": "error", "message": "no proof photo"})
		return
	}

	photo, contentType, err := h.photos.Open(c.Request.Context(), *req.ProofPhotoRef)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"status": "error", "message": "photo not found"})
		return
	}
	defer photo.Close()

	c.DataFromReader(http.StatusOK, -1, contentType, photo, nil)
}

func (h *Handler) assign(c *gin.Context, op func(ctx context.Context, requestID, donorID uuid.UUID) (*model.BloodRequest, error)) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "invalid request ID"})
		return
	}

	var body model.AssignDonorRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
		return
	}

	req, err := op(c.Request.Context(), id, body.DonorID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, req)
}

func (h *Handler) resolveDonor(c *gin.Context) (*model.Donor, bool) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"status": "error", "message": "invalid user"})
		return nil, false
	}

	d, err := h.donors.GetByUserID(c.Request.Context(), userID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return nil, false
	}
	return d, true
}
