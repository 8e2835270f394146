// Package json централизует сериализацию: записи истории, индексы и HTTP-тела
// кодируются одной замороженной конфигурацией sonic.
package json

import (
	"io"

	"github.com/bytedance/sonic"
)

var api = sonic.Config{
	EscapeHTML:  false,
	SortMapKeys: false,
	UseInt64:    true,
	CopyString:  true,
}.Froze()

func Marshal(v any) ([]byte, error) { return api.Marshal(v) }

func Unmarshal(data []byte, v any) error { return api.Unmarshal(data, v) }

func MarshalString(v any) (string, error) { return api.MarshalToString(v) }

func UnmarshalString(data string, v any) error { return api.UnmarshalFromString(data, v) }

// NewEncoder пишет JSON в поток (используется для HTTP-ответов).
func NewEncoder(w io.Writer) sonic.Encoder { return api.NewEncoder(w) }

// NewDecoder читает JSON из потока (используется для HTTP-запросов).
func NewDecoder(r io.Reader) sonic.Decoder { return api.NewDecoder(r) }
