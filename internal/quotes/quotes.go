// Package quotes supplies the motivational lines shown on reminder overlays.
package quotes

import (
	"log/slog"
	"math/rand/v2"
)

// Source yields one motivational quote per call.
type Source interface {
	Quote() string
}

// defaultQuotes mirrors the built-in reminder rotation.
var defaultQuotes = []string{
	"The scroll can wait. Your life cannot.",
	"Every minute here is a minute you chose over your goals.",
	"Future you is watching. Make them proud.",
	"Focus is a gift you give yourself.",
	"This app will still exist tomorrow. Will your momentum?",
	"You picked this session for a reason. Remember it.",
	"Discipline is choosing what you want most over what you want now.",
	"Put the phone down. Pick your life up.",
}

// StaticSource serves quotes from a fixed rotation in random order.
type StaticSource struct {
	quotes []string
}

// NewStaticSource creates a StaticSource over the built-in rotation.
func NewStaticSource() *StaticSource {
	return &StaticSource{quotes: defaultQuotes}
}

// NewStaticSourceWithQuotes creates a StaticSource over the given quotes,
// falling back to the built-in rotation when the list is empty.
func NewStaticSourceWithQuotes(quotes []string) *StaticSource {
	if len(quotes) == 0 {
		slog.Debug("empty quote list provided, using built-in rotation")
		quotes = defaultQuotes
	}
	return &StaticSource{quotes: quotes}
}

// Quote returns a random quote from the rotation.
func (s *StaticSource) Quote() string {
	return s.quotes[rand.IntN(len(s.quotes))]
}
