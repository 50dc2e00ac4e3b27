package brokerhttp

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/uniedit/mediaupload/internal/domain/broker"
	"github.com/uniedit/mediaupload/internal/port/inbound"
	"github.com/uniedit/mediaupload/internal/shared/response"
	"github.com/uniedit/mediaupload/internal/utils/logger"
)

// Handler serves the storage authorization broker API.
type Handler struct {
	domain inbound.BrokerDomain
}

// NewHandler creates a new broker handler.
func NewHandler(domain inbound.BrokerDomain) *Handler {
	return &Handler{domain: domain}
}

// RegisterRoutes registers broker routes under r, which is normally /api.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/upload-url", h.UploadURL)

	multipart := r.Group("/multipart")
	{
		multipart.POST("/start", h.StartMultipart)
		multipart.POST("/part-url", h.PartURL)
		multipart.POST("/complete", h.CompleteMultipart)
		multipart.POST("/abort", h.AbortMultipart)
	}

	media := r.Group("/media")
	{
		media.GET("/list", h.ListMedia)
		media.DELETE("/delete", h.DeleteMedia)
	}
}

const (
	msgFileRequired     = "fileName and fileType are required"
	msgPartRequired     = "key, uploadId and partNumber are required"
	msgCompleteRequired = "key, uploadId and parts are required"
	msgAbortRequired    = "key and uploadId are required"
	msgKeyRequired      = "key is required"
)

// UploadURL issues a presigned single-shot PUT.
//
//	@Summary		Create upload URL
//	@Description	Presign a single PUT for a new object. The key is assigned by the server.
//	@Tags			Upload
//	@Accept			json
//	@Produce		json
//	@Param			request	body		inbound.UploadURLInput	true	"File to upload"
//	@Success		200		{object}	inbound.UploadURLOutput
//	@Failure		400		{object}	response.ErrorResponse
//	@Failure		429		{object}	response.ErrorResponse
//	@Failure		500		{object}	response.ErrorResponse
//	@Router			/upload-url [post]
func (h *Handler) UploadURL(c *gin.Context) {
	var input inbound.UploadURLInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.BadRequest(c, msgFileRequired)
		return
	}

	output, err := h.domain.IssueUploadURL(c.Request.Context(), &input)
	if err != nil {
		h.fail(c, err, fileErrorMappings(msgFileRequired), "Failed to create upload URL")
		return
	}

	c.JSON(http.StatusOK, output)
}

// StartMultipart opens a multipart session.
//
//	@Summary		Start multipart upload
//	@Tags			Upload
//	@Accept			json
//	@Produce		json
//	@Param			request	body		inbound.MultipartStartInput	true	"File to upload"
//	@Success		200		{object}	inbound.MultipartStartOutput
//	@Failure		400		{object}	response.ErrorResponse
//	@Failure		500		{object}	response.ErrorResponse
//	@Router			/multipart/start [post]
func (h *Handler) StartMultipart(c *gin.Context) {
	var input inbound.MultipartStartInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.BadRequest(c, msgFileRequired)
		return
	}

	output, err := h.domain.StartMultipart(c.Request.Context(), &input)
	if err != nil {
		mappings := append(fileErrorMappings(msgFileRequired), response.ErrorMapping{
			Err: broker.ErrMissingUploadID, Status: http.StatusInternalServerError, Message: "No uploadId returned from S3",
		})
		h.fail(c, err, mappings, "Failed to start multipart upload")
		return
	}

	c.JSON(http.StatusOK, output)
}

// PartURL presigns one part of an open session.
//
//	@Summary		Create part upload URL
//	@Tags			Upload
//	@Accept			json
//	@Produce		json
//	@Param			request	body		inbound.PartURLInput	true	"Part to upload"
//	@Success		200		{object}	inbound.PartURLOutput
//	@Failure		400		{object}	response.ErrorResponse
//	@Failure		500		{object}	response.ErrorResponse
//	@Router			/multipart/part-url [post]
func (h *Handler) PartURL(c *gin.Context) {
	var input inbound.PartURLInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.BadRequest(c, msgPartRequired)
		return
	}

	output, err := h.domain.IssuePartURL(c.Request.Context(), &input)
	if err != nil {
		mappings := []response.ErrorMapping{
			{Err: broker.ErrInvalidInput, Status: http.StatusBadRequest, Message: msgPartRequired},
		}
		h.fail(c, err, mappings, "Failed to create part upload URL")
		return
	}

	c.JSON(http.StatusOK, output)
}

// CompleteMultipart finalizes a session.
//
//	@Summary		Complete multipart upload
//	@Tags			Upload
//	@Accept			json
//	@Produce		json
//	@Param			request	body		inbound.MultipartCompleteInput	true	"Session and parts"
//	@Success		200		{object}	inbound.OKOutput
//	@Failure		400		{object}	response.ErrorResponse
//	@Failure		500		{object}	response.ErrorResponse
//	@Router			/multipart/complete [post]
func (h *Handler) CompleteMultipart(c *gin.Context) {
	var input inbound.MultipartCompleteInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.BadRequest(c, msgCompleteRequired)
		return
	}

	if err := h.domain.CompleteMultipart(c.Request.Context(), &input); err != nil {
		mappings := []response.ErrorMapping{
			{Err: broker.ErrInvalidInput, Status: http.StatusBadRequest, Message: msgCompleteRequired},
			{Err: broker.ErrInvalidPartList, Status: http.StatusBadRequest},
		}
		h.fail(c, err, mappings, "Failed to complete multipart upload")
		return
	}

	c.JSON(http.StatusOK, inbound.OKOutput{OK: true})
}

// AbortMultipart discards a session.
//
//	@Summary		Abort multipart upload
//	@Tags			Upload
//	@Accept			json
//	@Produce		json
//	@Param			request	body		inbound.MultipartAbortInput	true	"Session"
//	@Success		200		{object}	inbound.OKOutput
//	@Failure		400		{object}	response.ErrorResponse
//	@Failure		500		{object}	response.ErrorResponse
//	@Router			/multipart/abort [post]
func (h *Handler) AbortMultipart(c *gin.Context) {
	var input inbound.MultipartAbortInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.BadRequest(c, msgAbortRequired)
		return
	}

	if err := h.domain.AbortMultipart(c.Request.Context(), &input); err != nil {
		mappings := []response.ErrorMapping{
			{Err: broker.ErrInvalidInput, Status: http.StatusBadRequest, Message: msgAbortRequired},
		}
		h.fail(c, err, mappings, "Failed to abort multipart upload")
		return
	}

	c.JSON(http.StatusOK, inbound.OKOutput{OK: true})
}

// ListMedia lists stored media.
//
//	@Summary		List media
//	@Tags			Media
//	@Produce		json
//	@Success		200	{object}	inbound.MediaListOutput
//	@Failure		500	{object}	response.ErrorResponse
//	@Router			/media/list [get]
func (h *Handler) ListMedia(c *gin.Context) {
	output, err := h.domain.ListMedia(c.Request.Context())
	if err != nil {
		h.fail(c, err, nil, "Failed to list media")
		return
	}

	c.JSON(http.StatusOK, output)
}

// DeleteMedia deletes one stored object. The key is read from the JSON body,
// or from the key query parameter when there is no body.
//
//	@Summary		Delete media
//	@Tags			Media
//	@Accept			json
//	@Produce		json
//	@Param			request	body		inbound.MediaDeleteInput	false	"Object to delete"
//	@Param			key		query		string						false	"Object key"
//	@Success		200		{object}	inbound.OKOutput
//	@Failure		400		{object}	response.ErrorResponse
//	@Failure		404		{object}	response.ErrorResponse
//	@Failure		500		{object}	response.ErrorResponse
//	@Router			/media/delete [delete]
func (h *Handler) DeleteMedia(c *gin.Context) {
	var input inbound.MediaDeleteInput
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&input); err != nil {
			response.BadRequest(c, msgKeyRequired)
			return
		}
	} else {
		input.Key = c.Query("key")
	}

	if err := h.domain.DeleteMedia(c.Request.Context(), &input); err != nil {
		mappings := []response.ErrorMapping{
			{Err: broker.ErrInvalidInput, Status: http.StatusBadRequest, Message: msgKeyRequired},
			{Err: broker.ErrObjectNotFound, Status: http.StatusNotFound},
		}
		h.fail(c, err, mappings, "Failed to delete object")
		return
	}

	c.JSON(http.StatusOK, inbound.OKOutput{OK: true})
}

// fail answers err through mappings. Unmapped errors become a 500 with
// fallback and are logged on the request's logger.
func (h *Handler) fail(c *gin.Context, err error, mappings []response.ErrorMapping, fallback string) {
	if response.HandleError(c, err, mappings) {
		return
	}
	logger.FromContext(c.Request.Context()).Error(fallback,
		logger.String("route", c.FullPath()),
		logger.Err(err),
	)
	response.HandleErrorWithDefault(c, err, nil, fallback)
}

func fileErrorMappings(invalidMessage string) []response.ErrorMapping {
	return []response.ErrorMapping{
		{Err: broker.ErrInvalidInput, Status: http.StatusBadRequest, Message: invalidMessage},
		{Err: broker.ErrContentTypeNotAllowed, Status: http.StatusBadRequest, Message: "File type not allowed"},
	}
}

// Compile-time check
var _ inbound.BrokerHttpPort = (*Handler)(nil)
