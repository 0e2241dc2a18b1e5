package media

import (
	"bytes"
	"fmt"
	"image"
	"log"
	"path/filepath"
	"time"

	_ "image/jpeg"
	_ "image/png"

	"github.com/google/uuid"

	"github.com/majianyu/gemini-chat/backend/internal/apperr"
	mediamodel "github.com/majianyu/gemini-chat/backend/internal/model/media"
)

var imageExts = map[string]bool{
	"jpg":  true,
	"jpeg": true,
	"png":  true,
}

// PrepareImage validates and decodes an image locally; no network call is
// involved, so the asset is ready synchronously. The raw bytes stay on the
// asset for inline sending.
func (s *Service) PrepareImage(fileName string, data []byte) (mediamodel.Asset, error) {
	if !imageExts[normalizedExt(fileName)] {
		return mediamodel.Asset{}, &apperr.MediaProcessingError{
			Status: "invalid",
			Detail: fmt.Sprintf("unsupported image type %q", filepath.Ext(fileName)),
		}
	}
	if s.cfg.MaxImageBytes > 0 && int64(len(data)) > s.cfg.MaxImageBytes {
		return mediamodel.Asset{}, &apperr.MediaProcessingError{
			Status: "invalid",
			Detail: fmt.Sprintf("image exceeds %d byte limit", s.cfg.MaxImageBytes),
		}
	}

	imgCfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return mediamodel.Asset{}, &apperr.MediaProcessingError{Status: "invalid", Detail: "undecodable image", Err: err}
	}

	now := time.Now().UTC()
	asset := &mediamodel.Asset{
		ID:        uuid.NewString(),
		Kind:      mediamodel.KindImage,
		Status:    mediamodel.StatusReady,
		FileName:  fileName,
		MIMEType:  "image/" + format,
		Size:      int64(len(data)),
		Width:     imgCfg.Width,
		Height:    imgCfg.Height,
		Data:      data,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	s.assets[asset.ID] = asset
	s.mu.Unlock()

	log.Printf("[media] image ready id=%s file=%s size=%dx%d", asset.ID, fileName, imgCfg.Width, imgCfg.Height)
	return *asset, nil
}
