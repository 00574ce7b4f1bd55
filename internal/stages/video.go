package stages

import (
	"context"
	"fmt"

	"github.com/shaiso/Fabrika/internal/domain"
	"github.com/shaiso/Fabrika/internal/queue"
)

// VideoStage ставит рендеринг видео в durable-очередь.
//
// Стадия асинхронная: рендер выполняет worker внешним процессом, а
// завершение приходит в pipeline событием task.completed. Output
// задачи (video_path) становится Output стадии.
type VideoStage struct {
	queue      *queue.Service
	maxRetries int
}

// NewVideoStage создаёт стадию video.
// maxRetries — retry-бюджет задачи рендеринга (<0 — default очереди).
func NewVideoStage(q *queue.Service, maxRetries int) *VideoStage {
	return &VideoStage{queue: q, maxRetries: maxRetries}
}

func (s *VideoStage) Name() domain.StageName {
	return domain.StageVideo
}

func (s *VideoStage) Run(ctx context.Context, sched *domain.Schedule, title *domain.Title, inputs map[string]any) (*Result, error) {
	script, err := scriptFromOutput(inputs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoRetry, err)
	}

	scriptMap, err := toOutput(script)
	if err != nil {
		return nil, fmt.Errorf("%w: encode render job: %v", ErrNoRetry, err)
	}

	task, err := s.queue.Enqueue(ctx, queue.EnqueueParams{
		Kind: domain.TaskKindVideoRender,
		Payload: map[string]any{
			"schedule_id":  sched.ID.String(),
			"title":        title.Text,
			"content_type": string(title.ContentType),
			"script":       scriptMap,
		},
		MaxRetries: s.maxRetries,
		ScheduleID: &sched.ID,
		Stage:      domain.StageVideo,
	})
	if err != nil {
		return nil, fmt.Errorf("enqueue render task: %w", err)
	}

	return &Result{Async: true, TaskID: &task.ID}, nil
}
