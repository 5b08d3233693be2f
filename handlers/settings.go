package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"pk55-api/database"
	"pk55-api/logger"
	"pk55-api/models"
	"pk55-api/utils"
)

type SettingsHandler struct {
	store database.SettingsStore
}

func NewSettingsHandler(store database.SettingsStore) *SettingsHandler {
	return &SettingsHandler{store: store}
}

func (h *SettingsHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.store.ListSettings(r.Context())
	if err != nil {
		logger.Error("Failed to list settings", zap.Error(err))
		utils.SendErrorResponse(w, http.StatusInternalServerError, "Failed to read settings")
		return
	}

	utils.SendSuccessResponse(w, models.APIResponse{
		Status:  "success",
		Message: "Settings retrieved",
		Data:    models.WithSettingDefaults(settings),
	})
}

// UpdateSettings upserts the recognized keys that carry a non-empty value.
func (h *SettingsHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateSettingsRequest
	if err := decodeJSON(r, &req); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	updates := map[string]string{
		models.SettingHeaderText:    req.HeaderText,
		models.SettingSubheaderText: req.SubheaderText,
	}
	for key, value := range updates {
		if value == "" {
			continue
		}
		if err := h.store.UpsertSetting(r.Context(), key, value); err != nil {
			logger.Error("Failed to save setting", zap.String("key", key), zap.Error(err))
			utils.SendErrorResponse(w, http.StatusInternalServerError, "Failed to update settings")
			return
		}
	}

	settings, err := h.store.ListSettings(r.Context())
	if err != nil {
		logger.Error("Failed to list settings", zap.Error(err))
		utils.SendErrorResponse(w, http.StatusInternalServerError, "Failed to read settings")
		return
	}

	utils.SendSuccessResponse(w, models.APIResponse{
		Status:  "success",
		Message: "Settings updated successfully",
		Data:    models.WithSettingDefaults(settings),
	})
}
