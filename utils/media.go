package utils

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/buconnects/server/models"
)

// UploadURLPrefix is the public path under which the upload directory is served.
const UploadURLPrefix = "/uploads"

// ErrUploadTooLarge is returned when an upload exceeds the configured limit.
var ErrUploadTooLarge = errors.New("upload exceeds size limit")

// StoredMedia describes one file written to the media area.
type StoredMedia struct {
	FileName    string
	Path        string
	URL         string
	ContentType string
}

// MediaType classifies the upload: video/* is a video, anything else an image.
func (m *StoredMedia) MediaType() string {
	return MediaTypeOf(m.ContentType)
}

// MediaTypeOf maps a declared content type onto a post media type.
func MediaTypeOf(contentType string) string {
	if strings.HasPrefix(strings.ToLower(contentType), "video/") {
		return models.MediaTypeVideo
	}
	return models.MediaTypeImage
}

// SaveUpload writes the uploaded file into dir as "<unix-millis>-<original name>".
// Existing files are never overwritten. maxBytes <= 0 disables the size check.
func SaveUpload(header *multipart.FileHeader, dir string, maxBytes int64) (*StoredMedia, error) {
	if maxBytes > 0 && header.Size > maxBytes {
		return nil, ErrUploadTooLarge
	}
	src, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}

	base := filepath.Base(strings.ReplaceAll(header.Filename, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		base = "file"
	}

	now := time.Now().UnixMilli()
	var (
		out  *os.File
		name string
	)
	for i := int64(0); i < 100; i++ {
		name = fmt.Sprintf("%d-%s", now+i, base)
		out, err = os.OpenFile(filepath.Join(dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil || !errors.Is(err, os.ErrExist) {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("create upload file: %w", err)
	}
	dstPath := out.Name()

	var r io.Reader = src
	if maxBytes > 0 {
		r = io.LimitReader(src, maxBytes+1)
	}
	written, err := io.Copy(out, r)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(dstPath)
		return nil, fmt.Errorf("write upload: %w", err)
	}
	if maxBytes > 0 && written > maxBytes {
		_ = os.Remove(dstPath)
		return nil, ErrUploadTooLarge
	}

	return &StoredMedia{
		FileName:    name,
		Path:        dstPath,
		URL:         UploadURLPrefix + "/" + name,
		ContentType: header.Header.Get("Content-Type"),
	}, nil
}

// RecordMedia stores the bookkeeping row for a saved upload. Failure is logged
// only: the upload itself already succeeded.
func RecordMedia(db *gorm.DB, m *StoredMedia) {
	row := models.MediaFile{FilePath: m.Path, URL: m.URL, ContentType: m.ContentType}
	if err := db.Create(&row).Error; err != nil {
		Sugar.Warnw("media record failed", "url", m.URL, "err", err)
	}
}
