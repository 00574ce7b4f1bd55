package stages

import (
	"context"
	"fmt"

	"github.com/shaiso/Fabrika/internal/domain"
	"github.com/shaiso/Fabrika/internal/platform"
)

// UploadStage загружает отрендеренный файл на платформу.
type UploadStage struct {
	client *platform.Client
}

// NewUploadStage создаёт стадию upload.
func NewUploadStage(client *platform.Client) *UploadStage {
	return &UploadStage{client: client}
}

func (s *UploadStage) Name() domain.StageName {
	return domain.StageUpload
}

func (s *UploadStage) Run(ctx context.Context, _ *domain.Schedule, title *domain.Title, inputs map[string]any) (*Result, error) {
	videoPath, err := stringInput(inputs, "video_path")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoRetry, err)
	}

	result, err := s.client.Upload(ctx, platform.UploadRequest{
		VideoPath: videoPath,
		Title:     title.Text,
	})
	if err != nil {
		if platform.IsRetryable(err) {
			return nil, fmt.Errorf("upload video: %w", err)
		}
		return nil, fmt.Errorf("%w: upload video: %v", ErrNoRetry, err)
	}

	return &Result{Output: map[string]any{"media_id": result.MediaID}}, nil
}
