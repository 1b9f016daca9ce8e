package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cognivue/cognivue-backend/internal/http/response"
	"github.com/cognivue/cognivue-backend/internal/platform/apierr"
	"github.com/cognivue/cognivue-backend/internal/platform/dbctx"
	"github.com/cognivue/cognivue-backend/internal/services"
)

// multipartOverhead leaves room for form boundaries around the file.
const multipartOverhead = 1 << 20

type ResumeHandler struct {
	resumeService services.ResumeService
	maxSize       int64
}

func NewResumeHandler(resumeService services.ResumeService, maxSize int64) *ResumeHandler {
	if maxSize <= 0 {
		maxSize = services.DefaultMaxUploadSize
	}
	return &ResumeHandler{resumeService: resumeService, maxSize: maxSize}
}

// POST /api/upload-resume/  (multipart field "resume")
func (h *ResumeHandler) UploadResume(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxSize+multipartOverhead)
	fh, err := c.FormFile("resume")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.RespondAPIError(c, apierr.Validation("File too large."), "")
			return
		}
		response.RespondAPIError(c, apierr.Validation("No resume file provided"), "")
		return
	}
	f, err := fh.Open()
	if err != nil {
		response.RespondAPIError(c, err, "Failed to read upload")
		return
	}
	defer f.Close()

	res, err := h.resumeService.Upload(dbctx.Context{Ctx: c.Request.Context()}, services.ResumeUpload{
		Filename: fh.Filename,
		Size:     fh.Size,
		Body:     f,
	})
	if err != nil {
		response.RespondAPIError(c, err, "Failed to upload resume")
		return
	}
	response.RespondOK(c, res)
}
