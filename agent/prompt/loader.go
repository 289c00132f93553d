package prompt

import (
	_ "embed"
	"strings"
)

//go:embed template/barista.txt
var baristaRaw string

// PromptSet holds loaded prompt content.
type PromptSet struct {
	Barista string
}

// LoadPromptSet returns a PromptSet with trimmed prompt strings.
// The embed is compile-time, so this is safe to call concurrently.
func LoadPromptSet() PromptSet {
	return PromptSet{
		Barista: strings.TrimSpace(baristaRaw),
	}
}
