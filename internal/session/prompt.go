package session

import (
	"fmt"
	"strings"
)

// BuildPrompt assembles the generation prompt from the retrieved chunk texts,
// in the order given (closest first), followed by the question.
func BuildPrompt(chunks []string, question string) string {
	return fmt.Sprintf(
		"use the following PDF Context to answer the question.\nPDF Context\n%s\nQuestion \"%s\"",
		strings.Join(chunks, "\n"),
		question,
	)
}
