package bridge

import (
	"encoding/json"
	"strings"
)

// Outcome kinds, from best to worst.
const (
	// KindParsed means the whole text was a JSON object.
	KindParsed Kind = iota

	// KindSalvaged means a JSON object was recovered from inside the text
	// (first '{' through last '}').
	KindSalvaged

	// KindUnparseable means no JSON object could be recovered.
	KindUnparseable
)

// Kind tags how a peer response was interpreted.
type Kind int

func (k Kind) String() string {
	switch k {
	case KindParsed:
		return "parsed"
	case KindSalvaged:
		return "salvaged"
	default:
		return "unparseable"
	}
}

// Outcome is the result of loose-parsing a peer response. Callers switch on
// Kind; Object is populated for Parsed and Salvaged, Raw always holds the
// original text.
type Outcome struct {
	Kind   Kind
	Object map[string]any
	Raw    string
}

// Decode returns the parsed object, or a {"raw": text} wrapper when nothing
// could be recovered. Loop code can therefore always treat the result as a
// map and inspect fields without a nil check.
func (o Outcome) Decode() map[string]any {
	if o.Object != nil {
		return o.Object
	}
	return map[string]any{"raw": o.Raw}
}

// ParseLoose interprets text that should be a JSON object but came from an
// LLM, so it may be wrapped in prose or code fences. It tries a strict parse
// first, then salvages the span between the first '{' and the last '}', and
// finally gives up with KindUnparseable. It never returns an error: malformed
// peer output is a data condition the loops handle, not a failure.
func ParseLoose(text string) Outcome {
	trimmed := strings.TrimSpace(text)

	var obj map[string]any
	if err := json.Unmarshal([]byte(trimmed), &obj); err == nil && obj != nil {
		return Outcome{Kind: KindParsed, Object: obj, Raw: text}
	}

	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start >= 0 && end > start {
		candidate := trimmed[start : end+1]
		obj = nil
		if err := json.Unmarshal([]byte(candidate), &obj); err == nil && obj != nil {
			return Outcome{Kind: KindSalvaged, Object: obj, Raw: text}
		}
	}

	return Outcome{Kind: KindUnparseable, Raw: text}
}
