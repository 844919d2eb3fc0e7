package handler

import (
	"context"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/qa-reports-api/pkg/response"
)

type localPhotoOpener interface {
	OpenLocal(ctx context.Context, photoID int64, token string, thumbnail bool) (*os.File, string, error)
}

// PhotoFileHandler streams local-tier photo bytes behind signed links.
type PhotoFileHandler struct {
	files localPhotoOpener
}

// NewPhotoFileHandler constructs the handler.
func NewPhotoFileHandler(files localPhotoOpener) *PhotoFileHandler {
	return &PhotoFileHandler{files: files}
}

// File godoc
// @Summary Download a locally stored photo
// @Tags Photos
// @Produce octet-stream
// @Param id path int true "Photo ID"
// @Param token query string true "Signed token"
// @Success 200
// @Router /photos/{id}/file [get]
func (h *PhotoFileHandler) File(c *gin.Context) {
	h.serve(c, false)
}

// Thumbnail godoc
// @Summary Download a photo thumbnail
// @Tags Photos
// @Produce image/jpeg
// @Param id path int true "Photo ID"
// @Param token query string true "Signed token"
// @Success 200
// @Router /photos/{id}/thumbnail [get]
func (h *PhotoFileHandler) Thumbnail(c *gin.Context) {
	h.serve(c, true)
}

func (h *PhotoFileHandler) serve(c *gin.Context, thumbnail bool) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	file, contentType, err := h.files.OpenLocal(c.Request.Context(), id, c.Query("token"), thumbnail)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	var size int64 = -1
	if info, err := file.Stat(); err == nil {
		size = info.Size()
	}
	c.Header("Cache-Control", "private, max-age=3600")
	c.DataFromReader(http.StatusOK, size, contentType, file, nil)
}
