package history

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"chathistory/internal/pkg/json"
)

// Entry одна записанная пара запрос/ответ. После сохранения не меняется.
type Entry struct {
	ID         string   `json:"task_id"`
	Timestamp  int64    `json:"timestamp"`
	Platform   string   `json:"platform"`
	UserID     string   `json:"user_id"`
	ChatID     string   `json:"chat_id"`
	Request    string   `json:"request"`
	Response   string   `json:"response"`
	Model      *string  `json:"model"`
	ToolCalls  []string `json:"tool_calls"`
	TokenUsage *int     `json:"token_usage"`
}

// normalized приводит запись к виду, в котором она хранится: nil ToolCalls
// становится пустым списком, а невалидные UTF-8 последовательности во всех
// строковых полях заменяются на U+FFFD. JSON не передаёт произвольные байты,
// поэтому Get возвращает ровно то, что вернул бы normalized от исходной записи.
func (e Entry) normalized() Entry {
	e.ID = validUTF8(e.ID)
	e.Platform = validUTF8(e.Platform)
	e.UserID = validUTF8(e.UserID)
	e.ChatID = validUTF8(e.ChatID)
	e.Request = validUTF8(e.Request)
	e.Response = validUTF8(e.Response)
	if e.Model != nil {
		if m := validUTF8(*e.Model); m != *e.Model {
			e.Model = &m
		}
	}

	calls := make([]string, len(e.ToolCalls))
	for i, c := range e.ToolCalls {
		calls[i] = validUTF8(c)
	}
	e.ToolCalls = calls
	return e
}

func validUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	return strings.ToValidUTF8(s, string(utf8.RuneError))
}

func (e Entry) validate() error {
	var missing []string
	if e.ID == "" {
		missing = append(missing, "task_id")
	}
	if e.Platform == "" {
		missing = append(missing, "platform")
	}
	if e.UserID == "" {
		missing = append(missing, "user_id")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidEntry, strings.Join(missing, ", "))
	}
	return nil
}

func encodeEntry(e Entry) (string, error) {
	return json.MarshalString(e.normalized())
}

func decodeEntry(raw string) (Entry, error) {
	var e Entry
	if err := json.UnmarshalString(raw, &e); err != nil {
		return Entry{}, err
	}
	if e.ID == "" {
		return Entry{}, fmt.Errorf("%w: payload without task_id", ErrInvalidEntry)
	}
	return e.normalized(), nil
}

func entryKey(id string) string {
	return "entry:" + id
}
