package controllers

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/buconnects/server/config"
	"github.com/buconnects/server/utils"
)

func parseID(raw string) (uint, bool) {
	id, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

func orEmpty[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

// optionalFile returns the uploaded file under field, or nil when the request
// carries none (including non-multipart requests).
func optionalFile(ctx *gin.Context, field string) *multipart.FileHeader {
	header, err := ctx.FormFile(field)
	if err != nil {
		return nil
	}
	return header
}

// storeUpload writes header into the media area and records it. On failure it
// has already answered the request and returns nil.
func storeUpload(ctx *gin.Context, db *gorm.DB, header *multipart.FileHeader) *utils.StoredMedia {
	cfg := config.Get()
	stored, err := utils.SaveUpload(header, cfg.UploadDir, int64(cfg.MaxUploadMB)<<20)
	if err != nil {
		if errors.Is(err, utils.ErrUploadTooLarge) {
			utils.Error(ctx, http.StatusBadRequest, 40030, "file too large")
			return nil
		}
		utils.StoreError(ctx, 50030, err)
		return nil
	}
	utils.RecordMedia(db.WithContext(ctx.Request.Context()), stored)
	return stored
}
