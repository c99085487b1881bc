package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Length limits requested from the model.
const (
	PinnedCommentMaxChars = 140
	ReplyMaxChars         = 120
)

// PinnedCommentPrompt asks for the channel's top comment on a video.
func PinnedCommentPrompt(persona, title string) string {
	return fmt.Sprintf("%s\n\nWrite a <%d char top comment inviting engagement for a Short titled: %s\nReturn only the text.",
		strings.TrimSpace(persona), PinnedCommentMaxChars, title)
}

// RepliesPrompt asks for n viewer-style replies as a JSON array of strings.
func RepliesPrompt(persona, title string, n int) string {
	return fmt.Sprintf("%s\n\nWrite %d short natural viewer replies (<%d chars each) for a Short titled: %s. Return JSON array of strings.",
		strings.TrimSpace(persona), n, ReplyMaxChars, title)
}

// CleanComment trims whitespace and wrapping quotes from generated text.
func CleanComment(text string) string {
	text = strings.TrimSpace(text)
	for len(text) >= 2 {
		first, last := text[0], text[len(text)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
			text = strings.TrimSpace(text[1 : len(text)-1])
			continue
		}
		break
	}
	return text
}

// ParseReplies extracts up to limit reply strings from a model response.
// Anything that is not a JSON array of strings yields an empty list.
func ParseReplies(text string, limit int) []string {
	text = cleanJSONBlock(text)
	if start, end := strings.Index(text, "["), strings.LastIndex(text, "]"); start >= 0 && end > start {
		text = text[start : end+1]
	}
	var raw []any
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return []string{}
	}
	replies := make([]string, 0, len(raw))
	for _, item := range raw {
		s, ok := item.(string)
		if !ok {
			continue
		}
		if s = CleanComment(s); s == "" {
			continue
		}
		replies = append(replies, s)
		if limit > 0 && len(replies) == limit {
			break
		}
	}
	return replies
}

func cleanJSONBlock(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}
