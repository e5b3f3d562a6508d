package retrieval

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"ragchat/internal/conversation"
)

func TestBuildPrompt(t *testing.T) {
	history := []conversation.Message{
		{Role: conversation.RoleUser, Text: "Hi"},
		{Role: conversation.RoleAssistant, Text: "Hello!"},
		{Role: conversation.RoleUser, Text: "What color is the sky?"},
	}
	got := BuildPrompt([]string{"The sky is blue.", "Grass is green."}, history, "What color is the sky?")

	want := SystemPrompt + "\n\n" +
		"Context:\nThe sky is blue.\n\nGrass is green.\n\n" +
		"Conversation:\nuser: Hi\nassistant: Hello!\nuser: What color is the sky?\n\n" +
		"User: What color is the sky?\n\n" +
		"Use only the context to answer. If the context doesn't help, say you don't know."
	assert.Equal(t, want, got)
}

func TestBuildPrompt_Empty(t *testing.T) {
	got := BuildPrompt(nil, nil, "q")
	assert.Contains(t, got, "Context:\n\n\nConversation:\n\n\nUser: q")
}

func TestWindow(t *testing.T) {
	msgs := make([]conversation.Message, 10)
	for i := range msgs {
		msgs[i] = conversation.Message{Text: string(rune('a' + i))}
	}

	w := Window(msgs, 6)
	assert.Len(t, w, 6)
	assert.Equal(t, "e", w[0].Text)
	assert.Equal(t, "j", w[5].Text)

	assert.Len(t, Window(msgs[:3], 6), 3)
	assert.Empty(t, Window(msgs, 0))
}
