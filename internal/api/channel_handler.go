package api

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/shaiso/Fabrika/internal/cadence"
)

// ListChannels возвращает все каналы.
// GET /api/v1/channels
func (h *Handler) ListChannels(w http.ResponseWriter, r *http.Request) {
	channels, err := h.channelRepo.List(r.Context())
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	List(w, channels, len(channels))
}

// CreateChannel создаёт настройки канала.
// POST /api/v1/channels
//
// Конфигурация cadence валидируется при записи: пустой набор дней,
// нулевой интервал или кривое cron-выражение отклоняются здесь,
// а не при вычислении следующего слота.
func (h *Handler) CreateChannel(w http.ResponseWriter, r *http.Request) {
	var req ChannelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if req.Name == "" {
		BadRequest(w, "name is required")
		return
	}

	setting := req.toSetting(uuid.New())

	if err := cadence.ValidateSetting(setting); err != nil {
		BadRequest(w, err.Error())
		return
	}

	if err := h.channelRepo.Create(r.Context(), setting); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	Created(w, setting)
}

// GetChannel возвращает настройки канала по ID.
// GET /api/v1/channels/{id}
func (h *Handler) GetChannel(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid channel id")
		return
	}

	setting, err := h.channelRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "channel not found") {
		return
	}

	Success(w, setting)
}

// UpdateChannel обновляет настройки канала.
// PUT /api/v1/channels/{id}
func (h *Handler) UpdateChannel(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid channel id")
		return
	}

	var req ChannelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if req.Name == "" {
		BadRequest(w, "name is required")
		return
	}

	setting := req.toSetting(id)

	if err := cadence.ValidateSetting(setting); err != nil {
		BadRequest(w, err.Error())
		return
	}

	if err := h.channelRepo.Update(r.Context(), setting); err != nil {
		if HandleRepoError(w, h.logger, err, "channel not found") {
			return
		}
	}

	Success(w, setting)
}

// DeleteChannel удаляет настройки канала.
// DELETE /api/v1/channels/{id}
func (h *Handler) DeleteChannel(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid channel id")
		return
	}

	if err := h.channelRepo.Delete(r.Context(), id); err != nil {
		if HandleRepoError(w, h.logger, err, "channel not found") {
			return
		}
	}

	NoContent(w)
}
