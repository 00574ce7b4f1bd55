package scriptgen

import (
	"encoding/json"
	"fmt"
	"strings"
)

const promptVersion = "v1"

const systemPrompt = `You are a video script writer for an automated content production pipeline.

Given a video title, its content type and category, write a complete voiceover script split into scenes.

Rules:
1. short-form: 5-8 scenes, total voiceover under 60 seconds when read aloud
2. long-form: 10-20 scenes, conversational pacing
3. product: 6-10 scenes, focus on features and a clear call to action
4. Every scene must have 2-5 visual keywords for footage search
5. The hook is the first spoken sentence and must create curiosity without clickbait
6. The description is 1-3 sentences for the video platform, no hashtags

Output as JSON only, no other text:
{
  "hook": "first spoken sentence",
  "scenes": [
    {"text": "voiceover text for the scene", "keywords": ["keyword", "keyword"]}
  ],
  "description": "platform description"
}`

// userPrompt собирает пользовательскую часть запроса.
func userPrompt(input Input) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Title: %s\nContent type: %s", input.Title, input.ContentType)
	if input.Category != "" {
		fmt.Fprintf(&sb, "\nCategory: %s", input.Category)
	}
	return sb.String()
}

// cleanJSONResponse срезает markdown-ограждения и прозу вокруг JSON.
func cleanJSONResponse(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	// Некоторые модели добавляют пояснения вокруг JSON.
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start >= 0 && end > start {
		content = content[start : end+1]
	}
	return content
}

// parseScript разбирает JSON-ответ модели и валидирует непустоту.
func parseScript(content, modelName string) (*Script, error) {
	content = cleanJSONResponse(content)

	var parsed Script
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w, content: %s", err, content)
	}

	if len(parsed.Scenes) == 0 {
		return nil, ErrEmptyScript
	}
	for _, scene := range parsed.Scenes {
		if strings.TrimSpace(scene.Text) == "" {
			return nil, ErrEmptyScript
		}
	}

	parsed.ModelUsed = modelName
	return &parsed, nil
}
