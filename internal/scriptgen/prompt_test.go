package scriptgen

import (
	"errors"
	"testing"
)

func TestCleanJSONResponse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "plain JSON unchanged",
			input: `{"hook":"test"}`,
			want:  `{"hook":"test"}`,
		},
		{
			name:  "strips json fenced block",
			input: "```json\n{\"hook\":\"test\"}\n```",
			want:  `{"hook":"test"}`,
		},
		{
			name:  "strips plain fenced block",
			input: "```\n{\"hook\":\"test\"}\n```",
			want:  `{"hook":"test"}`,
		},
		{
			name:  "cuts surrounding prose",
			input: "Here is your script:\n{\"hook\":\"test\"}\nEnjoy!",
			want:  `{"hook":"test"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cleanJSONResponse(tt.input)
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseScript_Valid(t *testing.T) {
	content := `{
		"hook": "What if your coffee could think?",
		"scenes": [
			{"text": "Every morning millions reach for coffee.", "keywords": ["coffee", "morning"]},
			{"text": "But one startup changed the recipe.", "keywords": ["startup", "lab"]}
		],
		"description": "The story of an unusual coffee startup."
	}`

	script, err := parseScript(content, "test-model")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if script.Hook == "" {
		t.Error("expected non-empty hook")
	}
	if len(script.Scenes) != 2 {
		t.Fatalf("expected 2 scenes, got %d", len(script.Scenes))
	}
	if len(script.Scenes[0].Keywords) != 2 {
		t.Errorf("expected 2 keywords, got %v", script.Scenes[0].Keywords)
	}
	if script.ModelUsed != "test-model" {
		t.Errorf("expected model name to be recorded, got %q", script.ModelUsed)
	}
}

func TestParseScript_NoScenes(t *testing.T) {
	content := `{"hook": "Empty", "scenes": [], "description": "x"}`

	_, err := parseScript(content, "test-model")
	if !errors.Is(err, ErrEmptyScript) {
		t.Fatalf("expected ErrEmptyScript, got %v", err)
	}
}

func TestParseScript_BlankSceneText(t *testing.T) {
	content := `{"hook": "h", "scenes": [{"text": "   ", "keywords": ["a"]}], "description": "x"}`

	_, err := parseScript(content, "test-model")
	if !errors.Is(err, ErrEmptyScript) {
		t.Fatalf("expected ErrEmptyScript, got %v", err)
	}
}

func TestParseScript_MalformedJSON(t *testing.T) {
	_, err := parseScript("not json at all", "test-model")
	if err == nil {
		t.Fatal("expected parse error")
	}
}
