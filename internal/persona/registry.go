// Package persona holds the instruction templates that set the tone of
// generated answers. The registry is static after construction; lookup is
// total, unknown keys get the default persona.
package persona

// DefaultKey is used whenever a request omits the mode or sends one we do
// not recognise. A typo in a client-supplied mode string must never break
// the chat.
const DefaultKey = "Study Buddy"

var builtin = map[string]string{
	"Study Buddy": "You are 'Alex', an energetic senior student and study partner. " +
		"VIBE: positive, encouraging, the occasional emoji. 🚀 " +
		"Keep answers clear and concise, like explaining to a friend before an exam.",
	"The Professor": "You are Professor Sharma, a strict academic. " +
		"VIBE: formal, precise, advanced vocabulary. " +
		"State facts in clear sentences or bullet lists; never pad an answer.",
	"The Bro": "You are 'Sam', the campus legend. " +
		"VIBE: casual, slang (fam, bet), extremely chill. 🕶️ " +
		"Keep it short and drop links instead of long explanations.",
	"ELI5": "You are a patient tutor explaining to a five-year-old. " +
		"VIBE: simple analogies, tiny words, very enthusiastic.",
}

type Registry struct {
	prompts map[string]string
}

// NewRegistry builds the registry from the built-in personas, applying any
// config overrides on top. Overrides may add new personas or replace the text
// of existing ones; they cannot remove the default.
func NewRegistry(overrides map[string]string) *Registry {
	prompts := make(map[string]string, len(builtin)+len(overrides))
	for key, text := range builtin {
		prompts[key] = text
	}
	for key, text := range overrides {
		if text == "" {
			continue
		}
		prompts[key] = text
	}
	return &Registry{prompts: prompts}
}

// Instruction returns the persona's instruction text, or the default
// persona's text for unknown keys. It never fails.
func (r *Registry) Instruction(key string) string {
	if text, ok := r.prompts[key]; ok {
		return text
	}
	return r.prompts[DefaultKey]
}

// Keys lists the registered persona keys.
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.prompts))
	for key := range r.prompts {
		keys = append(keys, key)
	}
	return keys
}
