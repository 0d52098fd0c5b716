package conversation

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"unicode"
)

// QuestionWords open a message that asks something directly.
var QuestionWords = []string{
	"what", "why", "how", "who", "when", "where", "which",
	"can you", "could you", "will you", "would you",
}

// ImperativePhrases are commands that signal the user wants the persona to talk.
var ImperativePhrases = []string{
	"tell me", "talk to me", "spill", "share", "explain", "show me",
	"let me know", "give me", "talk about",
}

func WordCount(s string) int { return len(strings.Fields(s)) }

// IsEmoji covers the pictograph and dingbat blocks chat clients emit.
func IsEmoji(r rune) bool {
	switch {
	case r >= 0x1F300 && r <= 0x1FAFF:
		return true
	case r >= 0x2600 && r <= 0x27BF:
		return true
	case r >= 0x1F1E6 && r <= 0x1F1FF:
		return true
	}
	return false
}

func CountEmoji(s string) int {
	n := 0
	for _, r := range s {
		if IsEmoji(r) {
			n++
		}
	}
	return n
}

// CountExpressivePunct counts '!' and '?'.
func CountExpressivePunct(s string) int {
	return strings.Count(s, "!") + strings.Count(s, "?")
}

// StartsWithQuestionWord matches on the lowercased, trimmed message.
func StartsWithQuestionWord(s string) bool {
	lower := strings.ToLower(strings.TrimSpace(s))
	for _, qw := range QuestionWords {
		if strings.HasPrefix(lower, qw) {
			return true
		}
	}
	return false
}

func HasImperative(s string) bool {
	lower := strings.ToLower(s)
	for _, p := range ImperativePhrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// IsQuestion is true for '?' or a leading question word.
func IsQuestion(s string) bool {
	return strings.Contains(s, "?") || StartsWithQuestionWord(s)
}

// IsDirectAsk is a question or an imperative command.
func IsDirectAsk(s string) bool {
	return IsQuestion(s) || HasImperative(s)
}

// ContainsAny reports whether lower contains any of the phrases.
func ContainsAny(lower string, phrases []string) bool {
	for _, p := range phrases {
		if p != "" && strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// Words splits on non letter/digit runes, lowercased.
func Words(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
}

// DecodeFirstObject decodes the first JSON object in raw into v. Prose
// before the object and anything after it are ignored.
func DecodeFirstObject(raw []byte, v any) error {
	var obj json.RawMessage
	err := errNoJSONObject
	for i := bytes.IndexByte(raw, '{'); i >= 0; {
		if err = json.NewDecoder(bytes.NewReader(raw[i:])).Decode(&obj); err == nil {
			return json.Unmarshal(obj, v)
		}
		next := bytes.IndexByte(raw[i+1:], '{')
		if next < 0 {
			break
		}
		i += next + 1
	}
	return err
}

var errNoJSONObject = errors.New("no JSON object in reply")
