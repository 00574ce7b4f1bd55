package stages

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shaiso/Fabrika/internal/domain"
	"github.com/shaiso/Fabrika/internal/scriptgen"
)

// defaultScriptTimeout — таймаут одного обращения к генератору.
const defaultScriptTimeout = 2 * time.Minute

// ScriptStage генерирует сценарий ролика по заголовку.
type ScriptStage struct {
	client  scriptgen.Client
	timeout time.Duration
}

// NewScriptStage создаёт стадию script.
func NewScriptStage(client scriptgen.Client, timeout time.Duration) *ScriptStage {
	if timeout <= 0 {
		timeout = defaultScriptTimeout
	}
	return &ScriptStage{client: client, timeout: timeout}
}

func (s *ScriptStage) Name() domain.StageName {
	return domain.StageScript
}

func (s *ScriptStage) Run(ctx context.Context, _ *domain.Schedule, title *domain.Title, _ map[string]any) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	script, err := s.client.Generate(ctx, scriptgen.Input{
		Title:       title.Text,
		ContentType: string(title.ContentType),
		Category:    title.Category,
	})
	if err != nil {
		// Пустой сценарий — дефект ответа модели, retry может помочь;
		// остальные ошибки генератора тоже временные (сеть, rate limit)
		return nil, fmt.Errorf("generate script: %w", err)
	}

	output, err := toOutput(script)
	if err != nil {
		return nil, fmt.Errorf("%w: encode script: %v", ErrNoRetry, err)
	}
	output["description"] = script.Description
	output["model_used"] = script.ModelUsed

	return &Result{Output: output}, nil
}

// toOutput переводит структуру в map для хранения в jsonb.
func toOutput(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// scriptFromOutput восстанавливает сценарий из Output стадии script.
func scriptFromOutput(inputs map[string]any) (*scriptgen.Script, error) {
	raw, err := json.Marshal(inputs)
	if err != nil {
		return nil, err
	}
	var script scriptgen.Script
	if err := json.Unmarshal(raw, &script); err != nil {
		return nil, err
	}
	if len(script.Scenes) == 0 {
		return nil, errors.New("stage inputs carry no scenes")
	}
	return &script, nil
}
