package handlers

import (
	"net/http"

	"github.com/tokensim/backend/internal/services"
)

type ConfigHandler struct {
	configs   *services.PlatformConfigService
	validator *services.ValidationHelper
}

func NewConfigHandler(configs *services.PlatformConfigService) *ConfigHandler {
	return &ConfigHandler{
		configs:   configs,
		validator: services.NewValidationHelper(),
	}
}

func (h *ConfigHandler) GetPlatformConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.configs.GetPlatformConfig(r.Context())
	if err != nil {
		services.SendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (h *ConfigHandler) UpdatePlatformConfig(w http.ResponseWriter, r *http.Request) {
	var req services.UpdatePlatformConfigRequest
	if !decodeJSON(w, r, h.validator, &req) {
		return
	}

	cfg, err := h.configs.UpdatePlatformConfig(r.Context(), req)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}
