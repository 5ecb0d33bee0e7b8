package model

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// DefaultSystemPrompt is the fixed instruction sent with every generation
// request.
const DefaultSystemPrompt = `You are a technical assistant answering questions about an internal document base.

Strict rules:
1. Answer ONLY from the information provided in the context
2. Give precise, complete answers with all relevant technical detail available
3. Never mention document numbers, sources, or that you are working from provided documents
4. Use a structured format (lists, numbered steps, sections) where it improves readability
5. If the context does not contain the information, say so plainly
6. Answer directly, without preamble`

// NoContextAnswer is returned instead of calling the provider when retrieval
// produced no usable context.
const NoContextAnswer = "I could not find any relevant information to answer your question."

const contextDelimiter = "\n\n---\n\n"

// BuildUserPrompt assembles the retrieved contexts (in search-rank order) and
// the question into the user half of the prompt.
func BuildUserPrompt(contexts []string, question string) string {
	var sb strings.Builder
	sb.WriteString("Available information:\n")
	sb.WriteString(strings.Join(contexts, contextDelimiter))
	sb.WriteString("\n\n---\n\nQuestion: ")
	sb.WriteString(question)
	sb.WriteString("\n\nAnswer from the information above only.")
	return sb.String()
}

// TrimContexts drops trailing contexts once the running token count exceeds
// budget. At least one context is always kept so generation has something to
// work with.
func TrimContexts(contexts []string, budget int) []string {
	if budget <= 0 || len(contexts) == 0 {
		return contexts
	}
	total := 0
	for i, ctx := range contexts {
		total += CountTokens(ctx)
		if total > budget && i > 0 {
			return contexts[:i]
		}
	}
	return contexts
}

// CountTokens estimates the token count of text using the cl100k encoding.
// Falls back to a characters/4 estimate if the encoding is unavailable.
func CountTokens(text string) int {
	enc, err := tiktoken.EncodingForModel("gpt-3.5-turbo")
	if err != nil {
		return len(text) / 4
	}
	return len(enc.Encode(text, nil, nil))
}

// FormatPromptStats is used for debug logging of outgoing prompts.
func FormatPromptStats(systemPrompt, userPrompt string) string {
	return fmt.Sprintf("prompt tokens≈%d chars=%d",
		CountTokens(systemPrompt)+CountTokens(userPrompt), len(systemPrompt)+len(userPrompt))
}
