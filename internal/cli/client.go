package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// TitleResponse — title из API.
type TitleResponse struct {
	ID          string   `json:"id"`
	Text        string   `json:"text"`
	ContentType string   `json:"content_type"`
	Category    string   `json:"category,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Priority    int      `json:"priority"`
	ChannelID   string   `json:"channel_id"`
	UserID      string   `json:"user_id"`
	Status      string   `json:"status"`
	CreatedAt   string   `json:"created_at"`
}

// ScheduleResponse — schedule из API.
type ScheduleResponse struct {
	ID          string `json:"id"`
	TitleID     string `json:"title_id"`
	ScheduledAt string `json:"scheduled_at"`
	PublishAt   string `json:"publish_at,omitempty"`
	Privacy     string `json:"privacy"`
	Status      string `json:"status"`
	Error       string `json:"error,omitempty"`
	UserID      string `json:"user_id"`
	CostCredits int64  `json:"cost_credits"`
	TitleText   string `json:"title_text,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	ChannelID   string `json:"channel_id,omitempty"`
	CreatedAt   string `json:"created_at"`
}

// StageResponse — стадия pipeline из API.
type StageResponse struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	RetryCount  int    `json:"retry_count"`
	Error       string `json:"error,omitempty"`
	StartedAt   string `json:"started_at,omitempty"`
	CompletedAt string `json:"completed_at,omitempty"`
}

// LogEntryResponse — запись лога из API.
type LogEntryResponse struct {
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Meta      map[string]any `json:"meta,omitempty"`
	CreatedAt string         `json:"created_at"`
}

// PipelineDetailResponse — стадии и логи schedule из API.
type PipelineDetailResponse struct {
	Schedule ScheduleResponse   `json:"schedule"`
	Stages   []StageResponse    `json:"stages"`
	Logs     []LogEntryResponse `json:"logs"`
}

// ChannelResponse — настройки канала из API.
type ChannelResponse struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	PostingMode   string   `json:"posting_mode"`
	IntervalValue int      `json:"interval_value,omitempty"`
	IntervalUnit  string   `json:"interval_unit,omitempty"`
	Weekdays      []int    `json:"weekdays,omitempty"`
	TimeOfDay     string   `json:"time_of_day,omitempty"`
	CronExpr      string   `json:"cron_expr,omitempty"`
	Timezone      string   `json:"timezone,omitempty"`
	Active        bool     `json:"active"`
	Categories    []string `json:"categories,omitempty"`
}

// TaskResponse — задача очереди из API.
type TaskResponse struct {
	ID         string `json:"id"`
	Kind       string `json:"kind"`
	Status     string `json:"status"`
	RetryCount int    `json:"retry_count"`
	MaxRetries int    `json:"max_retries"`
	ScheduleID string `json:"schedule_id,omitempty"`
	Stage      string `json:"stage,omitempty"`
	Error      string `json:"error,omitempty"`
	CreatedAt  string `json:"created_at"`
}

// BalanceResponse — баланс пользователя из API.
type BalanceResponse struct {
	UserID  string `json:"user_id"`
	Balance int64  `json:"balance"`
}

// --- Request types ---

// CreateTitleRequest — создание title.
type CreateTitleRequest struct {
	Text        string   `json:"text"`
	ContentType string   `json:"content_type"`
	Category    string   `json:"category,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Priority    int      `json:"priority,omitempty"`
	ChannelID   string   `json:"channel_id"`
	UserID      string   `json:"user_id"`
}

// CreateScheduleRequest — создание schedule.
type CreateScheduleRequest struct {
	ScheduledAt  time.Time  `json:"scheduled_at"`
	PublishAt    *time.Time `json:"publish_at,omitempty"`
	Privacy      string     `json:"privacy,omitempty"`
	ForceExecute bool       `json:"force_execute,omitempty"`
}

// UpdateScheduleTimeRequest — перенос schedule.
type UpdateScheduleTimeRequest struct {
	NewTime time.Time `json:"new_time"`
	Force   bool      `json:"force,omitempty"`
}

// ChannelRequest — создание/обновление канала.
type ChannelRequest struct {
	Name          string   `json:"name"`
	PostingMode   string   `json:"posting_mode"`
	IntervalValue int      `json:"interval_value,omitempty"`
	IntervalUnit  string   `json:"interval_unit,omitempty"`
	Weekdays      []int    `json:"weekdays,omitempty"`
	TimeOfDay     string   `json:"time_of_day,omitempty"`
	CronExpr      string   `json:"cron_expr,omitempty"`
	Timezone      string   `json:"timezone,omitempty"`
	Categories    []string `json:"categories,omitempty"`
}

// EnqueueTaskRequest — постановка задачи в очередь.
type EnqueueTaskRequest struct {
	Kind       string         `json:"kind"`
	Payload    map[string]any `json:"payload,omitempty"`
	MaxRetries *int           `json:"max_retries,omitempty"`
}

// ListSchedulesOpts — параметры фильтрации schedules.
type ListSchedulesOpts struct {
	TitleID   string
	ChannelID string
	Status    string
	Limit     int
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент для Fabrika API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// --- Titles ---

// ListTitles возвращает titles. Пустые параметры фильтра пропускаются.
func (c *Client) ListTitles(status, channelID string) ([]TitleResponse, error) {
	params := url.Values{}
	if status != "" {
		params.Set("status", status)
	}
	if channelID != "" {
		params.Set("channel_id", channelID)
	}

	var titles []TitleResponse
	err := c.list("/api/v1/titles", params, &titles)
	return titles, err
}

// CreateTitle создаёт новый title.
func (c *Client) CreateTitle(req CreateTitleRequest) (*TitleResponse, error) {
	var title TitleResponse
	err := c.post("/api/v1/titles", req, &title)
	return &title, err
}

// GetTitle возвращает title по ID.
func (c *Client) GetTitle(id string) (*TitleResponse, error) {
	var title TitleResponse
	err := c.get("/api/v1/titles/"+id, &title)
	return &title, err
}

// DeleteTitle удаляет title. cascade=true удаляет и его schedules.
func (c *Client) DeleteTitle(id string, cascade bool) error {
	path := "/api/v1/titles/" + id
	if cascade {
		path += "?cascade=true"
	}
	return c.delete(path)
}

// --- Schedules ---

// ListSchedules возвращает schedules с фильтрацией.
func (c *Client) ListSchedules(opts ListSchedulesOpts) ([]ScheduleResponse, error) {
	params := url.Values{}
	if opts.TitleID != "" {
		params.Set("title_id", opts.TitleID)
	}
	if opts.ChannelID != "" {
		params.Set("channel_id", opts.ChannelID)
	}
	if opts.Status != "" {
		params.Set("status", opts.Status)
	}
	if opts.Limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", opts.Limit))
	}

	var schedules []ScheduleResponse
	err := c.list("/api/v1/schedules", params, &schedules)
	return schedules, err
}

// CreateSchedule создаёт schedule для title.
func (c *Client) CreateSchedule(titleID string, req CreateScheduleRequest) (*ScheduleResponse, error) {
	var schedule ScheduleResponse
	err := c.post("/api/v1/titles/"+titleID+"/schedules", req, &schedule)
	return &schedule, err
}

// GetSchedule возвращает schedule по ID.
func (c *Client) GetSchedule(id string) (*ScheduleResponse, error) {
	var schedule ScheduleResponse
	err := c.get("/api/v1/schedules/"+id, &schedule)
	return &schedule, err
}

// RescheduleSchedule переносит schedule на другое время.
func (c *Client) RescheduleSchedule(id string, req UpdateScheduleTimeRequest) (*ScheduleResponse, error) {
	var schedule ScheduleResponse
	err := c.put("/api/v1/schedules/"+id+"/time", req, &schedule)
	return &schedule, err
}

// DeleteSchedule удаляет schedule.
func (c *Client) DeleteSchedule(id string) error {
	return c.delete("/api/v1/schedules/" + id)
}

// GetPipeline возвращает стадии и логи schedule.
func (c *Client) GetPipeline(id string) (*PipelineDetailResponse, error) {
	var detail PipelineDetailResponse
	err := c.get("/api/v1/schedules/"+id+"/pipeline", &detail)
	return &detail, err
}

// --- Channels ---

// ListChannels возвращает все каналы.
func (c *Client) ListChannels() ([]ChannelResponse, error) {
	var channels []ChannelResponse
	err := c.list("/api/v1/channels", nil, &channels)
	return channels, err
}

// CreateChannel создаёт настройки канала.
func (c *Client) CreateChannel(req ChannelRequest) (*ChannelResponse, error) {
	var channel ChannelResponse
	err := c.post("/api/v1/channels", req, &channel)
	return &channel, err
}

// GetChannel возвращает канал по ID.
func (c *Client) GetChannel(id string) (*ChannelResponse, error) {
	var channel ChannelResponse
	err := c.get("/api/v1/channels/"+id, &channel)
	return &channel, err
}

// UpdateChannel обновляет настройки канала.
func (c *Client) UpdateChannel(id string, req ChannelRequest) (*ChannelResponse, error) {
	var channel ChannelResponse
	err := c.put("/api/v1/channels/"+id, req, &channel)
	return &channel, err
}

// DeleteChannel удаляет канал.
func (c *Client) DeleteChannel(id string) error {
	return c.delete("/api/v1/channels/" + id)
}

// --- Tasks ---

// ListTasks возвращает задачи очереди.
func (c *Client) ListTasks(kind, status string) ([]TaskResponse, error) {
	params := url.Values{}
	if kind != "" {
		params.Set("kind", kind)
	}
	if status != "" {
		params.Set("status", status)
	}

	var tasks []TaskResponse
	err := c.list("/api/v1/tasks", params, &tasks)
	return tasks, err
}

// EnqueueTask ставит задачу в очередь.
func (c *Client) EnqueueTask(req EnqueueTaskRequest) (*TaskResponse, error) {
	var task TaskResponse
	err := c.post("/api/v1/tasks", req, &task)
	return &task, err
}

// CancelTask отменяет задачу.
func (c *Client) CancelTask(id string) (*TaskResponse, error) {
	var task TaskResponse
	err := c.post("/api/v1/tasks/"+id+"/cancel", nil, &task)
	return &task, err
}

// --- Credits ---

// GetBalance возвращает баланс пользователя.
func (c *Client) GetBalance(userID string) (*BalanceResponse, error) {
	var balance BalanceResponse
	err := c.get("/api/v1/users/"+userID+"/balance", &balance)
	return &balance, err
}

// Deposit пополняет баланс пользователя.
func (c *Client) Deposit(userID string, amount int64) (*BalanceResponse, error) {
	body := map[string]int64{"amount": amount}
	var balance BalanceResponse
	err := c.post("/api/v1/users/"+userID+"/deposit", body, &balance)
	return &balance, err
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) put(path string, body any, result any) error {
	return c.doData(http.MethodPut, path, body, result)
}

func (c *Client) delete(path string) error {
	resp, err := c.do(http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return c.checkError(resp)
}

func (c *Client) list(path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(lr.Data, result)
}

func (c *Client) doData(method, path string, body any, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	// 204 No Content
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}
