package ai

import (
	"github.com/pkoukk/tiktoken-go"
)

// Tokenizer считает токены промпта для подгонки контекста под бюджет модели.
type Tokenizer struct {
	encoding *tiktoken.Tiktoken
}

// NewTokenizer создает токенизатор для модели; при неизвестной модели
// используется базовая кодировка cl100k_base.
func NewTokenizer(model string) (*Tokenizer, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, err
		}
	}
	return &Tokenizer{encoding: enc}, nil
}

// Count возвращает количество токенов в тексте.
func (t *Tokenizer) Count(text string) int {
	return len(t.encoding.Encode(text, nil, nil))
}

// TruncateToBudget обрезает текст до заданного бюджета токенов.
func (t *Tokenizer) TruncateToBudget(text string, budget int) string {
	tokens := t.encoding.Encode(text, nil, nil)
	if len(tokens) <= budget {
		return text
	}
	return t.encoding.Decode(tokens[:budget])
}
