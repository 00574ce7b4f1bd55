// Package stages реализует стадии производственного pipeline.
//
// Порядок фиксированный: script → video → upload → publish.
//   - script  — генерация сценария через LLM (синхронная)
//   - video   — рендеринг внешним процессом через очередь задач (асинхронная)
//   - upload  — загрузка файла на платформу (синхронная)
//   - publish — публикация поста (синхронная, идемпотентная по schedule)
//
// Output каждой стадии сохраняется в её PipelineStage-строке и
// передаётся последующим стадиям через inputs. Ошибка, обёрнутая в
// ErrNoRetry, терминальна сразу; остальные ошибки повторяются в рамках
// retry-бюджета стадии.
package stages
