package controllers

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"filevault/apperr"
	"filevault/middleware"
	"filevault/models"
	"filevault/services"
	"filevault/utils"
)

type FileController struct {
	uploadService   *services.UploadService
	downloadService *services.DownloadService
	fileService     *services.FileService
}

func NewFileController(uploadService *services.UploadService, downloadService *services.DownloadService, fileService *services.FileService) *FileController {
	return &FileController{
		uploadService:   uploadService,
		downloadService: downloadService,
		fileService:     fileService,
	}
}

// Upload ingests a raw request body as encrypted file content. The file's
// identity travels in headers so the body stays a pure byte stream.
func (fc *FileController) Upload(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "Authorization token required")
		return
	}

	hash, err := utils.SingularHeader(c.Request.Header.Values("X-File-Hash"), "X-File-Hash")
	if err != nil {
		utils.BadRequestResponse(c, err.Error())
		return
	}
	rawName, err := utils.SingularHeader(c.Request.Header.Values("X-Local-Name"), "X-Local-Name")
	if err != nil {
		utils.BadRequestResponse(c, err.Error())
		return
	}
	localName := rawName
	if decoded, err := url.QueryUnescape(rawName); err == nil {
		localName = decoded
	}

	req := &services.UploadRequest{
		UserID:          userID,
		ParentFolderURI: c.Param("folderUri"),
		LocalName:       localName,
		ContentHash:     hash,
		ContentType:     c.ContentType(),
		DeclaredSize:    c.Request.ContentLength,
		Resume:          strings.EqualFold(c.GetHeader("X-Resume-Upload"), "true"),
		Body:            c.Request.Body,
	}

	result, err := fc.uploadService.Ingest(c.Request.Context(), req)
	if err != nil {
		utils.FailureResponse(c, err)
		return
	}
	if !result.Delivered {
		// The client is gone; there is nobody to answer.
		c.Abort()
		return
	}
	utils.DataResponse(c, result.File)
}

// Download streams the decrypted file content. Only media types may render
// inline; everything else is forced into an attachment.
func (fc *FileController) Download(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "Authorization token required")
		return
	}

	file, reader, err := fc.downloadService.Stream(c.Request.Context(), userID, c.Param("uri"))
	if err != nil {
		utils.FailureResponse(c, err)
		return
	}
	defer reader.Close()

	serveFileStream(c, file, reader, c.Query("inline") == "true")
}

// serveFileStream writes the decrypted content. An inline view is only
// honoured for media types; asking to render anything else in the browser is
// a bad request, not a silent downgrade to attachment.
func serveFileStream(c *gin.Context, file *models.FileRecord, reader io.Reader, inline bool) {
	disposition := "attachment"
	if inline {
		if !services.InlineViewable(file.Type) {
			utils.FailureResponse(c, apperr.Validation("File type can't be viewed inline"))
			return
		}
		disposition = "inline"
	}
	c.Header("Content-Disposition", fmt.Sprintf("%s; filename*=UTF-8''%s", disposition, url.PathEscape(file.Name)))
	c.Header("Content-Type", file.Type)
	c.Header("Content-Length", fmt.Sprintf("%d", file.Size))
	c.Header("ETag", fmt.Sprintf("%q", file.Hash))
	c.Header("Last-Modified", file.LastModified.UTC().Format(http.TimeFormat))
	c.Status(http.StatusOK)

	if _, err := io.Copy(c.Writer, reader); err != nil {
		utils.LogError("streaming file "+file.Name, err)
	}
}

type renameRequest struct {
	URI     string `json:"uri" binding:"required"`
	NewName string `json:"newName" binding:"required"`
	Type    string `json:"type" binding:"required"`
}

func (fc *FileController) Rename(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "Authorization token required")
		return
	}

	var req renameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body")
		return
	}

	if err := fc.fileService.Rename(c.Request.Context(), userID, req.URI, req.NewName, req.Type); err != nil {
		utils.FailureResponse(c, err)
		return
	}
	utils.MessageResponse(c, "Renamed successfully")
}

func (fc *FileController) MarkFavourite(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "Authorization token required")
		return
	}

	if err := fc.fileService.MarkFavourite(c.Request.Context(), userID, c.Param("uri")); err != nil {
		utils.FailureResponse(c, err)
		return
	}
	utils.MessageResponse(c, "Marked as favourite")
}

func (fc *FileController) UploadHistory(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "Authorization token required")
		return
	}

	files, err := fc.fileService.UploadHistory(c.Request.Context(), userID)
	if err != nil {
		utils.FailureResponse(c, err)
		return
	}
	utils.DataResponse(c, files)
}

func (fc *FileController) RemoveFromHistory(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "Authorization token required")
		return
	}

	if err := fc.fileService.RemoveFromHistory(c.Request.Context(), userID, c.Param("uri")); err != nil {
		utils.FailureResponse(c, err)
		return
	}
	utils.MessageResponse(c, "Removed from history")
}

func (fc *FileController) Delete(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "Authorization token required")
		return
	}

	if err := fc.fileService.DeleteFile(c.Request.Context(), userID, c.Param("uri")); err != nil {
		utils.FailureResponse(c, err)
		return
	}
	utils.MessageResponse(c, "File deleted")
}

// FindByHash tells an uploading client whether a file with this content hash
// and name already exists, so it can resume instead of starting over.
func (fc *FileController) FindByHash(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "Authorization token required")
		return
	}

	hash := c.Query("hash")
	name := c.Query("name")
	if hash == "" || name == "" {
		utils.BadRequestResponse(c, "hash and name query parameters are required")
		return
	}

	file, err := fc.fileService.FindByHash(c.Request.Context(), userID, hash, name)
	if err != nil {
		utils.FailureResponse(c, err)
		return
	}
	utils.DataResponse(c, file)
}
