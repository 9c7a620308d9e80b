package handlers

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// imageExt maps sniffed content types to stored file extensions.
var imageExt = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// UploadResponse returns the public URL of a stored image.
type UploadResponse struct {
	URL string `json:"url" example:"/uploads/6f1c0e4e-2f43-4c1d-9a57-1f0b1c2d3e4f.jpg"`
}

// UploadImage godoc
// @ID          uploadImage
// @Summary     Upload an image
// @Description Accepts a multipart "image" field. The content type is sniffed from the bytes; the file is stored under a random name.
// @Tags        Admin
// @Accept      multipart/form-data
// @Produce     json
// @Security    BearerAuth
// @Param       image  formData  file  true  "JPEG, PNG, GIF or WebP"
// @Success     201  {object} handlers.UploadResponse
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     413  {object} handlers.ErrorResponse "File too large"
// @Failure     415  {object} handlers.ErrorResponse "Not an image"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /upload [post]
func (h *Handlers) UploadImage(c *gin.Context) {
	// Headroom for multipart framing around the file part.
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.upload.MaxBytes+64<<10)

	fh, err := c.FormFile("image")
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			fail(c, http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge, "file too large")
			return
		}
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, `multipart field "image" is required`)
		return
	}
	if fh.Size > h.upload.MaxBytes {
		fail(c, http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge, "file too large")
		return
	}

	src, err := fh.Open()
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unreadable upload")
		return
	}
	defer src.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(src, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unreadable upload")
		return
	}
	head = head[:n]
	ext, isImage := imageExt[http.DetectContentType(head)]
	if !isImage {
		fail(c, http.StatusUnsupportedMediaType, ErrCodeUnsupportedMedia, "only JPEG, PNG, GIF or WebP images are accepted")
		return
	}

	name := uuid.NewString() + ext
	if err := h.store(name, head, src); err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeUploadFailed, "failed to store upload")
		return
	}
	ok(c, http.StatusCreated, UploadResponse{URL: path.Join(h.upload.URLPrefix, name)})
}

func (h *Handlers) store(name string, head []byte, rest io.Reader) error {
	if err := os.MkdirAll(h.upload.Dir, 0o755); err != nil {
		return err
	}
	full := filepath.Join(h.upload.Dir, name)
	dst, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	_, err = io.Copy(dst, io.MultiReader(bytes.NewReader(head), rest))
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(full)
	}
	return err
}
