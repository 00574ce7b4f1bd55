package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// Client — HTTP-клиент видеоплатформы (upload и публикация).
//
// Публикация защищена заголовком X-Idempotency-Key: повторный запрос
// с тем же ключом не создаёт дубликат поста — платформа возвращает 409
// с id уже созданного поста, и клиент трактует это как успех.
type Client struct {
	baseURL string
	token   string
	httpc   *http.Client
}

// Config — конфигурация клиента платформы.
type Config struct {
	// BaseURL — адрес API платформы.
	BaseURL string

	// Token — bearer-токен.
	Token string

	// Timeout — таймаут одного запроса (default: 5m, upload больших
	// файлов медленный).
	Timeout time.Duration
}

// NewClient создаёт клиент платформы.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}

	return &Client{
		baseURL: cfg.BaseURL,
		token:   cfg.Token,
		httpc:   &http.Client{Timeout: timeout},
	}
}

// UploadRequest — запрос загрузки медиафайла.
type UploadRequest struct {
	// VideoPath — путь к файлу на диске (результат стадии video).
	VideoPath string

	// Title — заголовок для черновика.
	Title string
}

// UploadResult — результат загрузки.
type UploadResult struct {
	// MediaID — идентификатор медиа на платформе.
	MediaID string `json:"media_id"`
}

// Upload загружает видеофайл multipart-запросом.
func (c *Client) Upload(ctx context.Context, req UploadRequest) (*UploadResult, error) {
	f, err := os.Open(req.VideoPath)
	if err != nil {
		return nil, fmt.Errorf("open video file: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	if err := mw.WriteField("title", req.Title); err != nil {
		return nil, fmt.Errorf("write title field: %w", err)
	}
	part, err := mw.CreateFormFile("file", filepath.Base(req.VideoPath))
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("copy video file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/media", &body)
	if err != nil {
		return nil, fmt.Errorf("build upload request: %w", err)
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())
	httpReq.Header.Set("Authorization", "Bearer "+c.token)

	var result UploadResult
	if err := c.do(httpReq, &result); err != nil {
		return nil, err
	}
	if result.MediaID == "" {
		return nil, &APIError{StatusCode: http.StatusOK, Message: "upload response without media_id"}
	}
	return &result, nil
}

// PublishRequest — запрос публикации загруженного медиа.
type PublishRequest struct {
	// MediaID — результат Upload.
	MediaID string `json:"media_id"`

	// Title — заголовок поста.
	Title string `json:"title"`

	// Description — описание.
	Description string `json:"description,omitempty"`

	// Privacy — видимость (public, unlisted, private).
	Privacy string `json:"privacy"`

	// PublishAt — отложенная публикация (опционально).
	PublishAt *time.Time `json:"publish_at,omitempty"`

	// IdempotencyKey — ключ против дубликатов; детерминирован по
	// schedule, одинаков при всех retry стадии publish.
	IdempotencyKey string `json:"-"`
}

// PublishResult — результат публикации.
type PublishResult struct {
	// PostID — идентификатор поста на платформе.
	PostID string `json:"post_id"`

	// AlreadyPublished — пост уже существовал (повтор по
	// idempotency key).
	AlreadyPublished bool `json:"-"`
}

// Publish создаёт пост из загруженного медиа.
//
// 409 Conflict с тем же idempotency key — не ошибка: платформа
// возвращает id существующего поста, публикация считается успешной.
func (c *Client) Publish(ctx context.Context, req PublishRequest) (*PublishResult, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal publish request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/posts", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build publish request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.token)
	if req.IdempotencyKey != "" {
		httpReq.Header.Set("X-Idempotency-Key", req.IdempotencyKey)
	}

	resp, err := c.httpc.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read publish response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusConflict:
		// Дубликат по idempotency key — извлекаем существующий post_id
		var result PublishResult
		if err := json.Unmarshal(body, &result); err != nil || result.PostID == "" {
			return nil, parseAPIError(resp.StatusCode, body)
		}
		result.AlreadyPublished = true
		return &result, nil

	case resp.StatusCode >= 400:
		return nil, parseAPIError(resp.StatusCode, body)
	}

	var result PublishResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("parse publish response: %w", err)
	}
	if result.PostID == "" {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: "publish response without post_id"}
	}
	return &result, nil
}

// do выполняет запрос и декодирует успешный JSON-ответ в out.
func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return parseAPIError(resp.StatusCode, body)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}
