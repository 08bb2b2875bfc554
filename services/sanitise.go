package services

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

const (
	maxNameLength     = 255
	maxNumberLength   = 255
	maxMetadataLength = 2000
)

// finishTimeShape - допустимая форма finish_time после замены 'T'/'Z' на пробел:
// двузначные час/минуты/секунды и дробная часть только через точку.
// time.Parse сам по себе принимает однозначный час и запятую.
var finishTimeShape = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}( \d{2}(:\d{2}(:\d{2}(\.\d+)?)?)?)?$`)

// Допустимые раскладки finish_time.
// Дробные секунды time.Parse принимает и без явного указания в раскладке.
var finishTimeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02 15",
	"2006-01-02",
}

const canonicalTimeLayout = "2006-01-02T15:04:05"

// SanitiseName оставляет только [A-Za-z0-9] и обрезает до 255 символов.
// ok == false, если после фильтрации ничего не осталось.
func SanitiseName(text string) (string, bool) {
	return keepRunes(text, isAlphanumeric, maxNameLength)
}

// SanitiseNumber оставляет только цифры и обрезает до 255 символов.
func SanitiseNumber(text string) (string, bool) {
	return keepRunes(text, isDigit, maxNumberLength)
}

// SanitiseTime проверяет, что text - дата/время в формате ISO 8601,
// и возвращает её в каноническом виде YYYY-MM-DDTHH:MM:SS[.ffffff].
func SanitiseTime(text string) (string, error) {
	stripped := strings.TrimSpace(strings.NewReplacer("Z", " ", "T", " ").Replace(text))
	if !finishTimeShape.MatchString(stripped) {
		return "", &FinishTimeError{Value: stripped}
	}

	for _, layout := range finishTimeLayouts {
		parsed, err := time.Parse(layout, stripped)
		if err != nil {
			continue
		}
		return formatCanonicalTime(parsed), nil
	}

	return "", &FinishTimeError{Value: stripped}
}

// TruncateMetadata обрезает свободный текст до 2000 символов без фильтрации.
func TruncateMetadata(text string) string {
	runes := []rune(text)
	if len(runes) <= maxMetadataLength {
		return text
	}
	return string(runes[:maxMetadataLength])
}

func formatCanonicalTime(t time.Time) string {
	formatted := t.Format(canonicalTimeLayout)
	if micro := t.Nanosecond() / 1000; micro != 0 {
		formatted += fmt.Sprintf(".%06d", micro)
	}
	return formatted
}

func keepRunes(text string, keep func(rune) bool, limit int) (string, bool) {
	var b strings.Builder
	count := 0
	for _, r := range text {
		if !keep(r) {
			continue
		}
		b.WriteRune(r)
		count++
		if count == limit {
			break
		}
	}
	if count == 0 {
		return "", false
	}
	return b.String(), true
}

func isAlphanumeric(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || isDigit(r)
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}
