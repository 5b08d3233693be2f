package handlers

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"pk55-api/database"
	"pk55-api/logger"
	"pk55-api/models"
	"pk55-api/services/media"
	"pk55-api/utils"
)

// MediaHost uploads gallery images.
type MediaHost interface {
	Upload(ctx context.Context, body io.Reader, contentType, filename string) (*media.Asset, error)
}

// AssetRemover deletes a remote asset, either right away or through the
// background queue.
type AssetRemover interface {
	RemoveAsset(ctx context.Context, assetID string) error
}

type ImageHandler struct {
	store   database.ImageStore
	media   MediaHost
	remover AssetRemover
}

func NewImageHandler(store database.ImageStore, host MediaHost, remover AssetRemover) *ImageHandler {
	return &ImageHandler{
		store:   store,
		media:   host,
		remover: remover,
	}
}

func (h *ImageHandler) ListImages(w http.ResponseWriter, r *http.Request) {
	images, err := h.store.ListImages(r.Context())
	if err != nil {
		logger.Error("Failed to list images", zap.Error(err))
		utils.SendErrorResponse(w, http.StatusInternalServerError, "Failed to read images data")
		return
	}
	if images == nil {
		images = []models.Image{}
	}

	utils.SendSuccessResponse(w, models.APIResponse{
		Status:  "success",
		Message: "Images retrieved",
		Data:    images,
	})
}

func (h *ImageHandler) upload(ctx context.Context, file *uploadedFile) (*media.Asset, int, string) {
	asset, err := h.media.Upload(ctx, bytes.NewReader(file.Data), file.ContentType, file.Filename)
	if err != nil {
		logger.Error("Media upload failed", zap.String("filename", file.Filename), zap.Error(err))
		if errors.Is(err, media.ErrNotConfigured) {
			return nil, http.StatusServiceUnavailable, "Image hosting is not configured"
		}
		return nil, http.StatusInternalServerError, "Failed to upload image: " + err.Error()
	}
	return asset, 0, ""
}

// UploadImage takes a multipart "image" and "date", pushes the file to the
// media host and records it.
func (h *ImageHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	file, status, msg := readImageUpload(w, r, "image")
	if file == nil {
		utils.SendErrorResponse(w, status, msg)
		return
	}

	date := r.FormValue("date")
	if date == "" {
		utils.SendErrorResponse(w, http.StatusBadRequest, "Date is required")
		return
	}
	if !utils.ValidateDate(date) {
		utils.SendErrorResponse(w, http.StatusBadRequest, "Date must be in YYYY-MM-DD format")
		return
	}

	asset, status, msg := h.upload(r.Context(), file)
	if asset == nil {
		utils.SendErrorResponse(w, status, msg)
		return
	}

	image := &models.Image{
		ID:        asset.ID,
		ImageURL:  asset.URL,
		AssetID:   asset.ID,
		Date:      date,
		CreatedAt: time.Now(),
	}
	if err := h.store.CreateImage(r.Context(), image); err != nil {
		logger.Error("Failed to record image", zap.String("image_id", image.ID), zap.Error(err))
		h.discard(r.Context(), asset.ID)
		utils.SendErrorResponse(w, http.StatusInternalServerError, "Failed to upload image: "+err.Error())
		return
	}

	logger.Info("Image uploaded", zap.String("image_id", image.ID), zap.String("date", date))

	utils.SendJSON(w, http.StatusCreated, models.APIResponse{
		Status:  "success",
		Message: "Image uploaded successfully",
		Data:    image,
	})
}

// DeleteImage removes the remote asset and then the record.
func (h *ImageHandler) DeleteImage(w http.ResponseWriter, r *http.Request) {
	id := imageID(r)

	image, err := h.store.FindImage(r.Context(), id)
	if err != nil {
		h.sendLookupError(w, id, err)
		return
	}

	if err := h.remover.RemoveAsset(r.Context(), image.AssetID); err != nil {
		logger.Error("Failed to remove asset", zap.String("asset_id", image.AssetID), zap.Error(err))
		utils.SendErrorResponse(w, http.StatusInternalServerError, "Failed to delete image: "+err.Error())
		return
	}

	if err := h.store.DeleteImage(r.Context(), id); err != nil && !errors.Is(err, database.ErrNotFound) {
		logger.Error("Failed to delete image record", zap.String("image_id", id), zap.Error(err))
		utils.SendErrorResponse(w, http.StatusInternalServerError, "Failed to delete image: "+err.Error())
		return
	}

	logger.Info("Image deleted", zap.String("image_id", id))

	utils.SendSuccessResponse(w, models.APIResponse{
		Status:  "success",
		Message: "Image deleted successfully",
	})
}

func (h *ImageHandler) UpdateImageDate(w http.ResponseWriter, r *http.Request) {
	id := imageID(r)

	var req models.UpdateImageDateRequest
	if err := decodeJSON(r, &req); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	image, err := h.store.UpdateImageDate(r.Context(), id, req.Date)
	if err != nil {
		h.sendLookupError(w, id, err)
		return
	}

	utils.SendSuccessResponse(w, models.APIResponse{
		Status:  "success",
		Message: "Image date updated successfully",
		Data:    image,
	})
}

// ReplaceImage uploads a new file for an existing entry. The record keeps
// its createdAt and, unless a new one is sent, its date. The old asset is
// removed once the new one is recorded.
func (h *ImageHandler) ReplaceImage(w http.ResponseWriter, r *http.Request) {
	id := imageID(r)

	file, status, msg := readImageUpload(w, r, "image")
	if file == nil {
		utils.SendErrorResponse(w, status, msg)
		return
	}

	date := r.FormValue("date")
	if date != "" && !utils.ValidateDate(date) {
		utils.SendErrorResponse(w, http.StatusBadRequest, "Date must be in YYYY-MM-DD format")
		return
	}

	old, err := h.store.FindImage(r.Context(), id)
	if err != nil {
		h.sendLookupError(w, id, err)
		return
	}
	if date == "" {
		date = old.Date
	}

	asset, status, msg := h.upload(r.Context(), file)
	if asset == nil {
		utils.SendErrorResponse(w, status, msg)
		return
	}

	image := &models.Image{
		ID:       asset.ID,
		ImageURL: asset.URL,
		AssetID:  asset.ID,
		Date:     date,
	}
	if err := h.store.ReplaceImage(r.Context(), old.ID, image); err != nil {
		logger.Error("Failed to replace image record", zap.String("image_id", old.ID), zap.Error(err))
		h.discard(r.Context(), asset.ID)
		if errors.Is(err, database.ErrNotFound) {
			utils.SendErrorResponse(w, http.StatusNotFound, "Image not found")
			return
		}
		utils.SendErrorResponse(w, http.StatusInternalServerError, "Failed to replace image: "+err.Error())
		return
	}

	h.discard(r.Context(), old.AssetID)

	logger.Info("Image replaced", zap.String("old_id", old.ID), zap.String("new_id", image.ID))

	utils.SendSuccessResponse(w, models.APIResponse{
		Status:  "success",
		Message: "Image replaced successfully",
		Data:    image,
	})
}

// discard removes an asset that is no longer referenced. Failures only leave
// an orphan on the media host, so they are logged.
func (h *ImageHandler) discard(ctx context.Context, assetID string) {
	if err := h.remover.RemoveAsset(ctx, assetID); err != nil {
		logger.Warn("Failed to remove orphaned asset", zap.String("asset_id", assetID), zap.Error(err))
	}
}

func (h *ImageHandler) sendLookupError(w http.ResponseWriter, id string, err error) {
	if errors.Is(err, database.ErrNotFound) {
		utils.SendErrorResponse(w, http.StatusNotFound, "Image not found")
		return
	}
	logger.Error("Image lookup failed", zap.String("image_id", id), zap.Error(err))
	utils.SendErrorResponse(w, http.StatusInternalServerError, "Failed to read images data")
}
