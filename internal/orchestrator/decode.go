package orchestrator

import "strings"

// documentFromMap builds a PlanDocument from a loose-parsed peer object.
// Fields of the wrong type are dropped, not errors: the peer is a language
// model and partial structure is the norm.
func documentFromMap(m map[string]any) *PlanDocument {
	doc := &PlanDocument{
		Status:             asString(m["status"]),
		RequirementSummary: asString(m["requirement_summary"]),
		PlanMarkdown:       asString(m["plan_markdown"]),
	}

	if qs, ok := m["questions"].([]any); ok {
		for _, raw := range qs {
			qm, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			q := Question{
				ID:       asString(qm["id"]),
				Text:     asString(qm["question"]),
				Blocking: truthy(qm["blocking"]),
				Fallback: asString(qm["fallback_assumption"]),
			}
			if q.ID == "" {
				q.ID = q.Text
			}
			doc.Questions = append(doc.Questions, q)
		}
	}

	if as, ok := m["assumptions"].([]any); ok {
		for _, raw := range as {
			switch v := raw.(type) {
			case string:
				doc.Assumptions = append(doc.Assumptions, Assumption{Text: v, RiskLevel: "medium"})
			case map[string]any:
				doc.Assumptions = append(doc.Assumptions, Assumption{
					Text:         asString(v["text"]),
					RiskLevel:    asString(v["risk_level"]),
					RollbackHint: asString(v["rollback_hint"]),
				})
			}
		}
	}

	if st, ok := m["stages"].([]any); ok {
		doc.Stages = st
	}

	return doc
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asStringSlice(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s, ok := it.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// truthy applies loose truthiness to a decoded JSON value: false, nil, zero,
// empty string/array/object are false, everything else is true.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != "" && !strings.EqualFold(t, "false")
	case float64:
		return t != 0
	case int:
		return t != 0
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	default:
		return true
	}
}
