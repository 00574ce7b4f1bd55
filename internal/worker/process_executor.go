package worker

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/shaiso/Fabrika/internal/domain"
)

const (
	defaultProcessTimeout = 15 * time.Minute

	// Throttle stdout-строк в LogEntries: burst 20, дальше 5 строк/с.
	defaultLogRate  = 5
	defaultLogBurst = 20

	// Строки длиннее обрезаются перед записью в лог.
	maxLogLineLen = 2000
)

// PIDStore записывает PID запущенного процесса в строку задачи.
// Продакшн-реализация — repo.QueueTaskRepo.
type PIDStore interface {
	SetPID(ctx context.Context, id uuid.UUID, pid int) error
}

// LogSink принимает append-only записи лога.
// Продакшн-реализация — repo.LogRepo.
type LogSink interface {
	Append(ctx context.Context, entry *domain.LogEntry) error
}

// ProcessExecutor выполняет задачу внешним процессом.
//
// Контракт subprocess:
//   - task.Payload сериализуется в JSON и подаётся на stdin
//   - процесс пишет progress-строки на stdout; последняя строка,
//     разбирающаяся как JSON-объект, становится task.Output
//   - exit 0 — успех; ненулевой код — ошибка попытки
//
// Wall-clock таймаут применяется всегда, независимо от поведения
// процесса: по истечении процесс убивается и попытка считается
// неудачной. Отмена ctx тоже убивает процесс.
//
// Stdout-строки пишутся в LogSink с привязкой к задаче, троттлинг
// через rate.Limiter — болтливый рендер не зальёт таблицу логов.
type ProcessExecutor struct {
	command string
	args    []string
	timeout time.Duration
	pids    PIDStore
	logs    LogSink
	limiter *rate.Limiter
	logger  *slog.Logger
}

// ProcessConfig — конфигурация ProcessExecutor.
type ProcessConfig struct {
	// Command — путь к бинарнику (обязательно).
	Command string

	// Args — фиксированные аргументы перед payload на stdin.
	Args []string

	// Timeout — wall-clock лимит на одну попытку (default: 15m).
	Timeout time.Duration

	// PIDs — запись PID для отмены. Nil — PID не записывается.
	PIDs PIDStore

	// Logs — приёмник stdout-строк. Nil — stdout не логируется.
	Logs LogSink

	// LogsPerSecond, LogBurst — троттлинг записи stdout в логи
	// (default: 5/s, burst 20).
	LogsPerSecond float64
	LogBurst      int

	// Logger — slog-логгер.
	Logger *slog.Logger
}

// NewProcessExecutor создаёт ProcessExecutor.
func NewProcessExecutor(cfg ProcessConfig) *ProcessExecutor {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultProcessTimeout
	}

	perSecond := cfg.LogsPerSecond
	if perSecond <= 0 {
		perSecond = defaultLogRate
	}
	burst := cfg.LogBurst
	if burst <= 0 {
		burst = defaultLogBurst
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &ProcessExecutor{
		command: cfg.Command,
		args:    cfg.Args,
		timeout: timeout,
		pids:    cfg.PIDs,
		logs:    cfg.Logs,
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
		logger:  logger,
	}
}

// Execute запускает процесс и ждёт его завершения.
func (e *ProcessExecutor) Execute(ctx context.Context, task *domain.QueueTask) (map[string]any, error) {
	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	stdin, err := json.Marshal(task.Payload)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal payload: %v", ErrSpawn, err)
	}

	cmd := exec.CommandContext(runCtx, e.command, e.args...)
	cmd.Stdin = bytes.NewReader(stdin)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSpawn, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSpawn, e.command, err)
	}

	if e.pids != nil {
		if err := e.pids.SetPID(ctx, task.ID, cmd.Process.Pid); err != nil {
			e.logger.Warn("failed to record process pid",
				"task_id", task.ID,
				"pid", cmd.Process.Pid,
				"error", err,
			)
		}
	}

	e.logger.Info("process started",
		"task_id", task.ID,
		"command", e.command,
		"pid", cmd.Process.Pid,
		"timeout", e.timeout,
	)

	output := e.consumeStdout(ctx, task, stdout)

	waitErr := cmd.Wait()

	if e.pids != nil {
		// Процесс завершён, PID больше не актуален
		if err := e.pids.SetPID(ctx, task.ID, 0); err != nil {
			e.logger.Debug("failed to clear process pid", "task_id", task.ID, "error", err)
		}
	}

	if waitErr != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s", ErrExecutionTimeout, e.timeout)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("process exited with error: %w", waitErr)
	}

	return output, nil
}

// consumeStdout читает stdout построчно до EOF.
//
// Каждая строка уходит в LogSink (с троттлингом); последняя строка,
// являющаяся JSON-объектом, возвращается как output задачи.
func (e *ProcessExecutor) consumeStdout(ctx context.Context, task *domain.QueueTask, r io.Reader) map[string]any {
	var output map[string]any

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}

		var parsed map[string]any
		if err := json.Unmarshal([]byte(line), &parsed); err == nil && len(parsed) > 0 {
			output = parsed
		}

		e.appendLog(ctx, task, line)
	}

	if err := scanner.Err(); err != nil {
		e.logger.Debug("stdout read interrupted", "task_id", task.ID, "error", err)
	}

	return output
}

// appendLog пишет одну stdout-строку в LogSink, уважая лимит.
func (e *ProcessExecutor) appendLog(ctx context.Context, task *domain.QueueTask, line string) {
	if e.logs == nil {
		return
	}
	if !e.limiter.Allow() {
		return
	}

	if len(line) > maxLogLineLen {
		line = line[:maxLogLineLen]
	}

	taskID := task.ID
	entry := &domain.LogEntry{
		ID:         uuid.New(),
		ScheduleID: task.ScheduleID,
		TaskID:     &taskID,
		Level:      domain.LogLevelInfo,
		Message:    line,
		Meta: map[string]any{
			"source": "stdout",
			"kind":   string(task.Kind),
		},
		CreatedAt: time.Now(),
	}

	if err := e.logs.Append(ctx, entry); err != nil {
		e.logger.Debug("failed to append stdout log", "task_id", task.ID, "error", err)
	}
}
