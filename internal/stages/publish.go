package stages

import (
	"context"
	"fmt"

	"github.com/shaiso/Fabrika/internal/domain"
	"github.com/shaiso/Fabrika/internal/platform"
)

// PublishStage публикует загруженное медиа.
//
// Ключ идемпотентности детерминирован по schedule и одинаков при всех
// retry: платформа не создаст дубликат поста, а 409 на повторе клиент
// трактует как успех. Благодаря этому стадию безопасно повторять.
type PublishStage struct {
	client *platform.Client
}

// NewPublishStage создаёт стадию publish.
func NewPublishStage(client *platform.Client) *PublishStage {
	return &PublishStage{client: client}
}

func (s *PublishStage) Name() domain.StageName {
	return domain.StagePublish
}

func (s *PublishStage) Run(ctx context.Context, sched *domain.Schedule, title *domain.Title, inputs map[string]any) (*Result, error) {
	mediaID, err := stringInput(inputs, "media_id")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoRetry, err)
	}

	description, _ := inputs["description"].(string)

	result, err := s.client.Publish(ctx, platform.PublishRequest{
		MediaID:        mediaID,
		Title:          title.Text,
		Description:    description,
		Privacy:        string(sched.Privacy),
		PublishAt:      sched.PublishAt,
		IdempotencyKey: "schedule-" + sched.ID.String(),
	})
	if err != nil {
		if platform.IsRetryable(err) {
			return nil, fmt.Errorf("publish post: %w", err)
		}
		return nil, fmt.Errorf("%w: publish post: %v", ErrNoRetry, err)
	}

	output := map[string]any{"post_id": result.PostID}
	if result.AlreadyPublished {
		output["already_published"] = true
	}
	return &Result{Output: output}, nil
}
