package symptoms

import (
	"regexp"
	"strings"
)

var (
	ordered []string
	known   map[string]struct{}

	wordStart = regexp.MustCompile(`\b\w`)
)

func init() {
	known = make(map[string]struct{}, len(vocabulary))
	for _, id := range vocabulary {
		if _, dup := known[id]; dup {
			continue
		}
		known[id] = struct{}{}
		ordered = append(ordered, id)
	}
}

// All returns the vocabulary in display order without duplicates.
func All() []string {
	return append([]string(nil), ordered...)
}

func Known(id string) bool {
	_, ok := known[id]
	return ok
}

// Label renders an identifier for display: "chest_pain" -> "Chest Pain".
func Label(id string) string {
	s := strings.ReplaceAll(id, "_", " ")
	return wordStart.ReplaceAllStringFunc(s, strings.ToUpper)
}

// Selection is an ordered set of symptom identifiers. Adding an identifier
// twice keeps its first position.
type Selection struct {
	ids []string
}

func NewSelection(ids ...string) *Selection {
	s := &Selection{}
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

// Add appends id and reports whether it was not already selected.
func (s *Selection) Add(id string) bool {
	if s.Contains(id) {
		return false
	}
	s.ids = append(s.ids, id)
	return true
}

func (s *Selection) Contains(id string) bool {
	for _, v := range s.ids {
		if v == id {
			return true
		}
	}
	return false
}

func (s *Selection) List() []string {
	return append([]string(nil), s.ids...)
}

func (s *Selection) Len() int { return len(s.ids) }

// Unknown returns the selected identifiers that are not in the vocabulary.
func (s *Selection) Unknown() []string {
	var out []string
	for _, v := range s.ids {
		if !Known(v) {
			out = append(out, v)
		}
	}
	return out
}
