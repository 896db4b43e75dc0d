package runner

import (
	"strings"
	"unicode/utf8"

	"github.com/jackzampolin/docextract/internal/schema"
)

const (
	customPromptPrefix = "Extract the following information from the image and return it in JSON format: "

	schemaPromptHeader = "Extract the following information from the image and return it in JSON format:\n\n"
	schemaPromptFooter = "\n\nReturn the data in valid JSON format matching the requested schema.\n"

	genericPrompt = `Extract all relevant information from this image and return it in a structured JSON format.
Make sure to include any key details given in the prompt.
Return your response as valid JSON.`

	// maxGeneratedPrompt caps prompts built from the schema, in characters.
	maxGeneratedPrompt = 4000
)

// BuildPrompt returns the text sent with every page. A custom prompt is
// used as given behind a fixed prefix; otherwise the prompt lists the
// schema's top-level fields, or falls back to a generic instruction.
func BuildPrompt(custom string, doc *schema.Document) string {
	if strings.TrimSpace(custom) != "" {
		return customPromptPrefix + custom
	}

	prompt := genericPrompt
	if doc.Len() > 0 {
		var lines []string
		for name, spec := range doc.Fields() {
			desc := spec.Description
			if desc == "" {
				desc = name
			}
			lines = append(lines, "- "+name+": "+desc)
		}
		prompt = schemaPromptHeader + strings.Join(lines, "\n") + schemaPromptFooter
	}

	if utf8.RuneCountInString(prompt) > maxGeneratedPrompt {
		r := []rune(prompt)
		prompt = string(r[:maxGeneratedPrompt-3]) + "..."
	}
	return prompt
}
