package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/shaiso/Fabrika/internal/domain"
	"github.com/shaiso/Fabrika/internal/repo"
)

// ListTitles возвращает список titles с фильтрацией.
// GET /api/v1/titles?status=...&channel_id=...&category=...&limit=...&offset=...
func (h *Handler) ListTitles(w http.ResponseWriter, r *http.Request) {
	filter := repo.TitleFilter{}

	if statusStr := r.URL.Query().Get("status"); statusStr != "" {
		status := domain.TitleStatus(statusStr)
		filter.Status = &status
	}

	if channelIDStr := r.URL.Query().Get("channel_id"); channelIDStr != "" {
		channelID, err := uuid.Parse(channelIDStr)
		if err != nil {
			BadRequest(w, "invalid channel_id")
			return
		}
		filter.ChannelID = &channelID
	}

	if category := r.URL.Query().Get("category"); category != "" {
		filter.Category = &category
	}

	filter.Limit = parseIntParam(r, "limit", 50)
	filter.Offset = parseIntParam(r, "offset", 0)

	titles, err := h.titleRepo.List(r.Context(), filter)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	List(w, titles, len(titles))
}

// CreateTitle создаёт новый title.
// POST /api/v1/titles
func (h *Handler) CreateTitle(w http.ResponseWriter, r *http.Request) {
	var req CreateTitleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if req.Text == "" {
		BadRequest(w, "text is required")
		return
	}

	contentType := domain.ContentType(req.ContentType)
	if err := domain.ValidateContentType(contentType); err != nil {
		BadRequest(w, err.Error())
		return
	}

	channelID, err := uuid.Parse(req.ChannelID)
	if err != nil {
		BadRequest(w, "invalid channel_id")
		return
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		BadRequest(w, "invalid user_id")
		return
	}

	// Канал должен существовать
	if _, err := h.channelRepo.GetByID(r.Context(), channelID); HandleRepoError(w, h.logger, err, "channel not found") {
		return
	}

	title := &domain.Title{
		ID:          uuid.New(),
		Text:        req.Text,
		ContentType: contentType,
		Category:    req.Category,
		Tags:        req.Tags,
		Priority:    req.Priority,
		ChannelID:   channelID,
		UserID:      userID,
		Status:      domain.TitleStatusPending,
	}

	if err := h.titleRepo.Create(r.Context(), title); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	Created(w, title)
}

// GetTitle возвращает title по ID.
// GET /api/v1/titles/{id}
func (h *Handler) GetTitle(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid title id")
		return
	}

	title, err := h.titleRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "title not found") {
		return
	}

	Success(w, title)
}

// UpdateTitle обновляет title.
// PUT /api/v1/titles/{id}
func (h *Handler) UpdateTitle(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid title id")
		return
	}

	var req UpdateTitleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	title, err := h.titleRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "title not found") {
		return
	}

	if req.Text != nil {
		title.Text = *req.Text
	}
	if req.Category != nil {
		title.Category = *req.Category
	}
	if req.Tags != nil {
		title.Tags = *req.Tags
	}
	if req.Priority != nil {
		title.Priority = *req.Priority
	}

	if err := h.titleRepo.Update(r.Context(), title); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	Success(w, title)
}

// DeleteTitle удаляет title.
// DELETE /api/v1/titles/{id}?cascade=true
//
// Без cascade title, на который ссылаются schedules, не удаляется.
func (h *Handler) DeleteTitle(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid title id")
		return
	}

	cascade := r.URL.Query().Get("cascade") == "true"

	if err := h.titleRepo.Delete(r.Context(), id, cascade); err != nil {
		if HandleRepoError(w, h.logger, err, "title not found") {
			return
		}
	}

	NoContent(w)
}

// parseIntParam извлекает целочисленный query-параметр с default значением.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	return v
}
