package ragchat

import "strings"

// templatePrompts are the instructions sent to direct-model providers, keyed
// by Templates names.
var templatePrompts = map[string]string{
	"default":  "You are a helpful assistant. Answer the user's question accurately.",
	"academic": "You are a careful academic assistant. Answer with precise terminology and a structured explanation.",
	"concise":  "You are a helpful assistant. Answer in as few sentences as the question allows.",
	"detailed": "You are a thorough assistant. Answer in depth, covering background, details and examples.",
}

var languagePrompts = map[string]string{
	"vi": "Respond in Vietnamese.",
	"en": "Respond in English.",
}

// SystemPrompt returns the system instruction a direct-model provider sends
// for req. Unknown templates fall back to "default"; "auto" and unknown
// languages add no language instruction.
func SystemPrompt(req Request) string {
	prompt, ok := templatePrompts[req.Template]
	if !ok {
		prompt = templatePrompts["default"]
	}
	if lang, ok := languagePrompts[req.Language]; ok {
		prompt += " " + lang
	}
	return strings.TrimSpace(prompt)
}
