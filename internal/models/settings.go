package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// AIMode определяет степень участия AI в написании истории.
type AIMode string

const (
	AIModeNone    AIMode = "none"    // AI не участвует
	AIModeSuggest AIMode = "suggest" // AI предлагает варианты, люди пишут сами
	AIModeCoWrite AIMode = "co_write" // AI пишет сегменты наравне с людьми
)

// MediaFrequency определяет, как часто запрашивается генерация медиа.
type MediaFrequency string

const (
	MediaFrequencyLow      MediaFrequency = "low"       // Каждый десятый сегмент
	MediaFrequencyMedium   MediaFrequency = "medium"    // Каждый третий сегмент
	MediaFrequencyHigh     MediaFrequency = "high"      // Каждый сегмент
	MediaFrequencyOnDemand MediaFrequency = "on_demand" // Только по явному запросу
)

// StorySettings - типизированные настройки истории.
// Раньше это был свободный JSON-блоб; теперь набор опций перечислен явно,
// неизвестные ключи отвергаются при разборе, пропущенные получают значения
// по умолчанию через DefaultStorySettings.
type StorySettings struct {
	AIContributionMode  AIMode         `json:"ai_contribution_mode"`
	MultimediaFrequency MediaFrequency `json:"multimedia_generation_frequency"`
	AllowAIImages       bool           `json:"allow_ai_images"`
	AllowAIAudio        bool           `json:"allow_ai_audio"`
}

// DefaultStorySettings возвращает настройки по умолчанию для новой истории.
func DefaultStorySettings() StorySettings {
	return StorySettings{
		AIContributionMode:  AIModeNone,
		MultimediaFrequency: MediaFrequencyOnDemand,
		AllowAIImages:       true,
		AllowAIAudio:        false,
	}
}

// ParseStorySettings разбирает настройки из JSON поверх значений по умолчанию.
// Неизвестные ключи считаются ошибкой, а не молча игнорируются.
func ParseStorySettings(raw []byte) (StorySettings, error) {
	s := DefaultStorySettings()
	if len(raw) == 0 {
		return s, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&s); err != nil {
		return s, fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	if err := s.Validate(); err != nil {
		return s, err
	}
	return s, nil
}

// Validate проверяет, что все перечислимые значения известны.
func (s StorySettings) Validate() error {
	switch s.AIContributionMode {
	case AIModeNone, AIModeSuggest, AIModeCoWrite:
	default:
		return fmt.Errorf("%w: unknown ai_contribution_mode %q", ErrInvalidSettings, s.AIContributionMode)
	}
	switch s.MultimediaFrequency {
	case MediaFrequencyLow, MediaFrequencyMedium, MediaFrequencyHigh, MediaFrequencyOnDemand:
	default:
		return fmt.Errorf("%w: unknown multimedia_generation_frequency %q", ErrInvalidSettings, s.MultimediaFrequency)
	}
	return nil
}

// EffectiveAIMode возвращает режим AI с учетом серверного значения по умолчанию.
func (s StorySettings) EffectiveAIMode(serverDefault AIMode) AIMode {
	if s.AIContributionMode != "" {
		return s.AIContributionMode
	}
	if serverDefault != "" {
		return serverDefault
	}
	return AIModeNone
}

// MediaEverySegments переводит частоту генерации медиа в интервал по сегментам.
// Ноль означает "только по запросу".
func (s StorySettings) MediaEverySegments() int {
	switch s.MultimediaFrequency {
	case MediaFrequencyHigh:
		return 1
	case MediaFrequencyMedium:
		return 3
	case MediaFrequencyLow:
		return 10
	default:
		return 0
	}
}
