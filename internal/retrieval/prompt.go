package retrieval

import (
	"fmt"
	"strings"

	"ragchat/internal/conversation"
)

const SystemPrompt = "You are a helpful assistant that answers based on provided document context. " +
	"Never hallucinate: if the answer isn't in context, say you don't know."

const answerInstruction = "Use only the context to answer. If the context doesn't help, say you don't know."

// BuildPrompt renders the single prompt sent to the generator: system prompt,
// context chunks in rank order, the history window oldest first, then the query.
func BuildPrompt(chunks []string, history []conversation.Message, query string) string {
	var b strings.Builder
	b.WriteString(SystemPrompt)
	b.WriteString("\n\nContext:\n")
	b.WriteString(strings.Join(chunks, "\n\n"))
	b.WriteString("\n\nConversation:\n")
	for i, m := range history {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s: %s", m.Role, m.Text)
	}
	b.WriteString("\n\nUser: ")
	b.WriteString(query)
	b.WriteString("\n\n")
	b.WriteString(answerInstruction)
	return b.String()
}

// Window returns the last n messages; n <= 0 means no history.
func Window(msgs []conversation.Message, n int) []conversation.Message {
	if n <= 0 {
		return nil
	}
	if len(msgs) <= n {
		return msgs
	}
	return msgs[len(msgs)-n:]
}
