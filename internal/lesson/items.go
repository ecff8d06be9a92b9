package lesson

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/rbright/kamay/internal/practice"
)

// ItemsFromLesson turns each sign of l into a practice item.
func ItemsFromLesson(l Lesson) []practice.Item {
	items := make([]practice.Item, 0, len(l.Signs))
	for _, sign := range l.Signs {
		items = append(items, practice.Item{ID: sign.ID, ExpectedLabel: sign.Label})
	}
	return items
}

// ItemsFromText spells text as one item per ASCII letter or digit, uppercased.
// Everything else is dropped, including letters such as Ñ that only exist as
// lesson signs. IDs carry the position so repeated letters stay distinct.
func ItemsFromText(text string) []practice.Item {
	var items []practice.Item
	for _, r := range strings.ToUpper(text) {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			continue
		}
		label := string(r)
		items = append(items, practice.Item{
			ID:            fmt.Sprintf("%d-%s", len(items)+1, strings.ToLower(label)),
			ExpectedLabel: label,
		})
	}
	return items
}

// ItemsFromWords makes one item per whitespace-separated word, for phrase and
// speech practice where the recognizer returns whole words.
func ItemsFromWords(text string) []practice.Item {
	var items []practice.Item
	for _, word := range strings.Fields(norm.NFC.String(text)) {
		word = strings.TrimFunc(word, func(r rune) bool { return !unicode.IsLetter(r) && !unicode.IsDigit(r) })
		if word == "" {
			continue
		}
		items = append(items, practice.Item{
			ID:            fmt.Sprintf("%d-%s", len(items)+1, strings.ToLower(word)),
			ExpectedLabel: word,
		})
	}
	return items
}
