package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/getbazar/bazar-api/internal/api/middleware"
	"github.com/getbazar/bazar-api/internal/core/domain"
	"github.com/getbazar/bazar-api/internal/core/ports"
)

// FileHandler handles file uploads and metadata.
type FileHandler struct {
	service ports.FileService
}

func NewFileHandler(service ports.FileService) *FileHandler {
	return &FileHandler{service: service}
}

type renameFileRequest struct {
	Name string `json:"name" validate:"required,max=255"`
}

type listFilesResponse struct {
	Items      []*domain.File `json:"items"`
	Total      int64          `json:"total"`
	Page       int            `json:"page"`
	Limit      int            `json:"limit"`
	TotalPages int            `json:"total_pages"`
}

// Upload stores a multipart file (field "file") and its metadata.
//
// @Summary      Upload file
// @Tags         files
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        file  formData  file  true  "File (pdf, jpeg, png or plain text, max 100 MiB)"
// @Success      201   {object}  domain.File
// @Failure      400   {object}  errorResponse
// @Router       /files [post]
func (h *FileHandler) Upload(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	fh, err := c.FormFile("file")
	if err != nil {
		return invalid("file is required")
	}
	if fh.Size > domain.MaxFileSize {
		return domain.ErrFileTooLarge
	}

	src, err := fh.Open()
	if err != nil {
		return invalid("file could not be read")
	}
	defer src.Close()

	f, err := h.service.Upload(c.Request().Context(), user, ports.UploadFileInput{
		Name:        fh.Filename,
		ContentType: fh.Header.Get(echo.HeaderContentType),
		Size:        fh.Size,
		Body:        src,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, f)
}

// List returns a page of files visible to the caller.
//
// @Summary      List files
// @Tags         files
// @Produce      json
// @Security     BearerAuth
// @Param        page   query     int  false  "Page (1-based)"
// @Param        limit  query     int  false  "Page size (max 100)"
// @Success      200    {object}  listFilesResponse
// @Router       /files [get]
func (h *FileHandler) List(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	page, limit, err := pagination(c)
	if err != nil {
		return err
	}

	res, err := h.service.List(c.Request().Context(), user, middleware.Roles(c), page, limit)
	if err != nil {
		return err
	}
	items := res.Items
	if items == nil {
		items = []*domain.File{}
	}
	return c.JSON(http.StatusOK, listFilesResponse{
		Items:      items,
		Total:      res.Total,
		Page:       res.Page,
		Limit:      res.Limit,
		TotalPages: res.TotalPages,
	})
}

// Get returns file metadata.
//
// @Summary      Get file
// @Tags         files
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "File id"
// @Success      200  {object}  domain.File
// @Failure      404  {object}  errorResponse
// @Router       /files/{id} [get]
func (h *FileHandler) Get(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	f, err := h.service.Get(c.Request().Context(), user, middleware.Roles(c), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, f)
}

// Rename changes the display name of a file.
//
// @Summary      Rename file
// @Tags         files
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string             true  "File id"
// @Param        body  body      renameFileRequest  true  "New name"
// @Success      200   {object}  domain.File
// @Failure      404   {object}  errorResponse
// @Router       /files/{id} [put]
func (h *FileHandler) Rename(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req renameFileRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	f, err := h.service.Rename(c.Request().Context(), user, middleware.Roles(c), id, req.Name)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, f)
}

// Delete removes the blob and soft-deletes the metadata.
//
// @Summary      Delete file
// @Tags         files
// @Security     BearerAuth
// @Param        id   path  string  true  "File id"
// @Success      204
// @Failure      404  {object}  errorResponse
// @Router       /files/{id} [delete]
func (h *FileHandler) Delete(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	if err := h.service.Delete(c.Request().Context(), user, middleware.Roles(c), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
