package chat

import (
	"regexp"
	"strings"
	"time"

	"quillpost/internal/models"
)

const (
	titleMaxRunes = 30
	ellipsis      = "..."

	untitledDraft = "Untitled draft"
)

var (
	whitespaceRun  = regexp.MustCompile(`\s+`)
	quotePattern   = regexp.MustCompile(`^>(.*?)\n\n((?s:.*))$`)
	headingPattern = regexp.MustCompile(`(?m)^#+ (.+)$`)
	sentenceEnd    = regexp.MustCompile(`[.!?。！？]`)
)

// GenerateTitle derives a conversation title from the first user message.
// Without one, or when it is blank, it falls back to a timestamp title.
func GenerateTitle(msgs []models.Message, now time.Time) string {
	for _, m := range msgs {
		if m.Role != models.RoleUser {
			continue
		}
		if text := strings.TrimSpace(whitespaceRun.ReplaceAllString(m.Content, " ")); text != "" {
			return truncate(text, titleMaxRunes)
		}
		break
	}
	return "Chat " + now.Format("2006-01-02 15:04:05")
}

// ExtractArticleTitle picks a title for a draft built from a reply: the first
// markdown heading, else the first sentence of the first line.
func ExtractArticleTitle(content string) string {
	if m := headingPattern.FindStringSubmatch(content); m != nil {
		if title := strings.TrimSpace(m[1]); title != "" {
			return title
		}
	}

	firstLine := strings.SplitN(content, "\n", 2)[0]
	sentence := strings.TrimSpace(sentenceEnd.Split(firstLine, 2)[0])
	if sentence == "" {
		return untitledDraft
	}
	return truncate(sentence, titleMaxRunes)
}

// parseQuote splits "> quoted\n\nbody" into the quoted line and the body.
// Text without that prefix is returned trimmed with ok false.
func parseQuote(text string) (quote, body string, ok bool) {
	m := quotePattern.FindStringSubmatch(text)
	if m == nil {
		return "", strings.TrimSpace(text), false
	}
	return strings.TrimSpace(m[1]), strings.TrimSpace(m[2]), true
}

// quoteDraft formats content as a quote prefix for the next message. The
// quote must stay on one line for parseQuote to recognise it.
func quoteDraft(content string) string {
	line := strings.TrimSpace(whitespaceRun.ReplaceAllString(content, " "))
	return "> " + line + "\n\n"
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + ellipsis
}
