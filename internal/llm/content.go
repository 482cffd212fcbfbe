package llm

import (
	"strings"

	"github.com/sashabaranov/go-openai"
)

// Content is a model answer, either plain text or a list of parts.
// Callers flatten it with Text before parsing.
type Content interface {
	Text() string
	isContent()
}

// PlainText is an answer delivered as a single string
type PlainText string

// Text returns the string unchanged
func (p PlainText) Text() string { return string(p) }

func (PlainText) isContent() {}

// Part is one element of a structured answer
type Part struct {
	Type string
	Text string
}

// PartList is an answer delivered as content parts
type PartList []Part

// Text joins the text parts with newlines; non-text parts are ignored
func (p PartList) Text() string {
	var texts []string
	for _, part := range p {
		if part.Type != "" && part.Type != string(openai.ChatMessagePartTypeText) {
			continue
		}
		texts = append(texts, part.Text)
	}
	return strings.Join(texts, "\n")
}

func (PartList) isContent() {}

// ContentFromMessage resolves a chat message into its Content variant
func ContentFromMessage(msg openai.ChatCompletionMessage) Content {
	if len(msg.MultiContent) == 0 {
		return PlainText(msg.Content)
	}

	parts := make(PartList, 0, len(msg.MultiContent))
	for _, p := range msg.MultiContent {
		parts = append(parts, Part{Type: string(p.Type), Text: p.Text})
	}
	return parts
}
