package llm

import "testing"

func TestBuildMessages_Full(t *testing.T) {
	msgs := BuildMessages(PromptInput{
		DocumentPath:   "/papers/a.pdf",
		Selection:      "  Theorem 3.1 states...  ",
		Question:       " explain this ",
		ContextSnippet: "around the theorem",
		Metadata: map[string]string{
			"title":     "On Things",
			"file_name": "a.pdf",
			"abstract":  "We study things.",
		},
	})
	if len(msgs) != 2 {
		t.Fatalf("len = %d, want 2", len(msgs))
	}
	if msgs[0].Role != "system" || msgs[0].Content != DefaultSystemPrompt {
		t.Errorf("system = %+v", msgs[0])
	}
	want := "Document path: /papers/a.pdf\n" +
		"Document title: On Things\n" +
		"File name: a.pdf\n" +
		"Document abstract:\nWe study things.\n" +
		"Context snippet:\naround the theorem\n" +
		"\n" +
		"Selected text:\nTheorem 3.1 states...\n" +
		"\n" +
		"User question:\nexplain this"
	if msgs[1].Role != "user" || msgs[1].Content != want {
		t.Errorf("user content =\n%s\nwant\n%s", msgs[1].Content, want)
	}
}

func TestBuildMessages_Minimal(t *testing.T) {
	msgs := BuildMessages(PromptInput{
		SystemPrompt: "custom",
		Selection:    "x",
		Metadata:     map[string]string{"title": "a.pdf", "file_name": "a.pdf"},
	})
	if msgs[0].Content != "custom" {
		t.Errorf("system = %q", msgs[0].Content)
	}
	want := "Document path: unknown\nDocument title: a.pdf\n\nSelected text:\nx"
	if msgs[1].Content != want {
		t.Errorf("user content = %q, want %q", msgs[1].Content, want)
	}
}
