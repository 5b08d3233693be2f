package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"pk55-api/database"
	"pk55-api/logger"
	"pk55-api/models"
	"pk55-api/services/discount"
	"pk55-api/utils"
)

type BannerHandler struct {
	store database.BannerStore
	now   func() time.Time
}

func NewBannerHandler(store database.BannerStore) *BannerHandler {
	return &BannerHandler{store: store, now: time.Now}
}

// currentBanner returns the latest banner, creating the default one with the
// discount currently in effect when none exists.
func (h *BannerHandler) currentBanner(ctx context.Context) (*models.Banner, error) {
	banner, created, err := database.LatestOrCreateBanner(ctx, h.store, func() *models.Banner {
		now := h.now()
		return models.NewDefaultBanner(discount.LocalDate(now), discount.PercentageAt(now))
	})
	if err != nil {
		return nil, err
	}
	if created {
		logger.Info("Default banner created on first access", zap.String("banner_id", banner.ID))
	}
	return banner, nil
}

func (h *BannerHandler) GetBanner(w http.ResponseWriter, r *http.Request) {
	banner, err := h.currentBanner(r.Context())
	if err != nil {
		logger.Error("Failed to read banner", zap.Error(err))
		utils.SendErrorResponse(w, http.StatusInternalServerError, "Failed to read banner data")
		return
	}

	utils.SendSuccessResponse(w, models.APIResponse{
		Status:  "success",
		Message: "Banner retrieved",
		Data:    banner.Response(),
	})
}

// UpdateBanner applies the fields present in the body and leaves the rest.
func (h *BannerHandler) UpdateBanner(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateBannerRequest
	if err := decodeJSON(r, &req); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	upd := models.BannerUpdate{
		DiscountPercentage: req.DiscountPercentage,
		Date:               req.Date,
		Heading:            req.Heading,
		Description:        req.Description,
	}
	if upd.IsEmpty() {
		utils.SendErrorResponse(w, http.StatusBadRequest, "No fields to update")
		return
	}

	banner, err := h.currentBanner(r.Context())
	if err != nil {
		logger.Error("Failed to read banner", zap.Error(err))
		utils.SendErrorResponse(w, http.StatusInternalServerError, "Failed to update banner data")
		return
	}

	updated, err := h.store.UpdateBanner(r.Context(), banner.ID, upd)
	if err != nil {
		logger.Error("Failed to update banner", zap.String("banner_id", banner.ID), zap.Error(err))
		utils.SendErrorResponse(w, http.StatusInternalServerError, "Failed to update banner data")
		return
	}

	utils.SendSuccessResponse(w, models.APIResponse{
		Status:  "success",
		Message: "Banner updated successfully",
		Data:    updated.Response(),
	})
}

// UploadImage stores the multipart "image" inline in the banner.
func (h *BannerHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	file, status, msg := readImageUpload(w, r, "image")
	if file == nil {
		utils.SendErrorResponse(w, status, msg)
		return
	}

	banner, err := h.currentBanner(r.Context())
	if err != nil {
		logger.Error("Failed to read banner", zap.Error(err))
		utils.SendErrorResponse(w, http.StatusInternalServerError, "Failed to upload image")
		return
	}

	updated, err := h.store.UpdateBanner(r.Context(), banner.ID, models.BannerUpdate{
		Image: &models.BannerImage{
			Data:        file.Data,
			ContentType: file.ContentType,
			Filename:    file.Filename,
		},
	})
	if err != nil {
		logger.Error("Failed to store banner image", zap.String("banner_id", banner.ID), zap.Error(err))
		utils.SendErrorResponse(w, http.StatusInternalServerError, "Failed to upload image")
		return
	}

	logger.Info("Banner image uploaded",
		zap.String("banner_id", updated.ID),
		zap.String("filename", file.Filename),
		zap.Int("bytes", len(file.Data)))

	utils.SendSuccessResponse(w, models.APIResponse{
		Status:  "success",
		Message: "Image uploaded successfully",
		Data:    updated.Response(),
	})
}

// GetImage serves the raw banner image bytes.
func (h *BannerHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	banner, err := h.store.LatestBanner(r.Context())
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		logger.Error("Failed to read banner", zap.Error(err))
		utils.SendErrorResponse(w, http.StatusInternalServerError, "Failed to read banner data")
		return
	}
	if banner == nil || banner.Image == nil || len(banner.Image.Data) == 0 {
		utils.SendErrorResponse(w, http.StatusNotFound, "Banner image not found")
		return
	}

	w.Header().Set("Content-Type", banner.Image.ContentType)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Content-Security-Policy", "default-src 'none'; sandbox")
	w.Header().Set("Content-Length", strconv.Itoa(len(banner.Image.Data)))
	w.WriteHeader(http.StatusOK)
	w.Write(banner.Image.Data)
}
