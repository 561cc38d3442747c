package routes

import (
	"net/http"
	"strings"

	"github.com/diwan-erp/correspondence/internal/server/middleware"
	"github.com/diwan-erp/correspondence/internal/storage"
	"github.com/diwan-erp/correspondence/pkg/common"

	"github.com/labstack/echo/v4"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// UploadAttachmentHandler stores a scanned source document for a letter.
// OCR of the scan happens outside this service; only the object itself is
// managed here.
func UploadAttachmentHandler(c echo.Context) error {
	type uploadResponse struct {
		Success bool   `json:"success"`
		Key     string `json:"key,omitempty"`
		Message string `json:"message,omitempty"`
	}

	ref, err := bindLetterRef(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, uploadResponse{Message: "Invalid request params"})
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, uploadResponse{Message: "Missing file"})
	}

	file, err := fileHeader.Open()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, uploadResponse{Message: "Failed to read file"})
	}
	defer file.Close()

	key, err := gonanoid.New()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, uploadResponse{Message: "Internal server error"})
	}

	ctx := c.Request().Context()
	s3Client := c.(*middleware.AppContext).App.S3
	prefix := storage.AttachmentPrefix(string(ref.Direction), ref.ID)

	objectKey, err := storage.PutFile(ctx, s3Client, prefix, fileHeader.Filename, key, file)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, uploadResponse{Message: "Failed to store attachment"})
	}

	return c.JSON(http.StatusOK, uploadResponse{Success: true, Key: objectKey})
}

func ListAttachmentsHandler(c echo.Context) error {
	ref, err := bindLetterRef(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request params"})
	}

	ctx := c.Request().Context()
	s3Client := c.(*middleware.AppContext).App.S3
	prefix := storage.AttachmentPrefix(string(ref.Direction), ref.ID)

	keys, err := storage.ListFilesWithPrefix(ctx, s3Client, prefix)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}

	if keys == nil {
		keys = []string{}
	}
	return c.JSON(http.StatusOK, map[string][]string{"attachments": keys})
}

func GetAttachmentLinkHandler(c echo.Context) error {
	ref, key, err := bindAttachmentKey(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request params"})
	}

	ctx := c.Request().Context()
	s3Client := c.(*middleware.AppContext).App.S3
	objectKey := storage.AttachmentPrefix(string(ref.Direction), ref.ID) + "/" + key

	url, err := storage.GenerateDownloadLink(ctx, s3Client, objectKey)
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Attachment does not exist"})
	}

	return c.JSON(http.StatusOK, map[string]string{"url": url})
}

func DeleteAttachmentHandler(c echo.Context) error {
	ref, key, err := bindAttachmentKey(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request params"})
	}

	ctx := c.Request().Context()
	s3Client := c.(*middleware.AppContext).App.S3
	objectKey := storage.AttachmentPrefix(string(ref.Direction), ref.ID) + "/" + key

	if err := storage.DeleteFile(ctx, s3Client, objectKey); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to delete attachment"})
	}

	return c.NoContent(http.StatusNoContent)
}

func bindAttachmentKey(c echo.Context) (common.Ref, string, error) {
	ref, err := bindLetterRef(c)
	if err != nil {
		return common.Ref{}, "", err
	}
	key := c.Param("key")
	// object keys are flat nanoid.ext names; reject traversal attempts
	if key == "" || strings.Contains(key, "/") || strings.Contains(key, "..") {
		return common.Ref{}, "", echo.NewHTTPError(http.StatusBadRequest)
	}
	return ref, key, nil
}
