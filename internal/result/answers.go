package result

import "encoding/json"

const (
	MaxAnswersBytes = 5000
	MaxAnswerKeys   = 2000
)

// ParseAnswers decodes a {"question_id": "letter"} object. Oversized,
// malformed or non-object payloads yield an empty map, and non-string values
// are skipped.
func ParseAnswers(raw []byte) map[string]string {
	return parseAnswers(raw, MaxAnswersBytes, MaxAnswerKeys)
}

func parseAnswers(raw []byte, maxBytes, maxKeys int) map[string]string {
	out := make(map[string]string)
	if len(raw) == 0 || len(raw) > maxBytes {
		return out
	}

	var obj map[string]interface{}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return out
	}
	if len(obj) > maxKeys {
		return out
	}
	for k, v := range obj {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}
