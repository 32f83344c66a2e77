package frame

import (
	"fmt"
)

// Card is one header keyword with its value and comment.
type Card struct {
	Name    string
	Value   interface{}
	Comment string
}

// Header is an ordered set of FITS header cards. Card order is preserved
// across read, copy and write so that provenance keywords stay where the
// instrument software put them.
type Header struct {
	cards []Card
	index map[string]int
}

// NewHeader returns an empty header.
func NewHeader() *Header {
	return &Header{index: make(map[string]int)}
}

// Set stores a keyword, replacing the value and comment of an existing
// card in place or appending a new one.
func (h *Header) Set(name string, value interface{}, comment string) {
	if i, ok := h.index[name]; ok {
		h.cards[i].Value = value
		if comment != "" {
			h.cards[i].Comment = comment
		}
		return
	}
	h.index[name] = len(h.cards)
	h.cards = append(h.cards, Card{Name: name, Value: value, Comment: comment})
}

// Has reports whether the keyword is present.
func (h *Header) Has(name string) bool {
	_, ok := h.index[name]
	return ok
}

// Get returns the raw value of a keyword.
func (h *Header) Get(name string) (interface{}, bool) {
	i, ok := h.index[name]
	if !ok {
		return nil, false
	}
	return h.cards[i].Value, true
}

// Int returns an integer keyword. Integer-valued floats are accepted
// because FITS readers are free to return either.
func (h *Header) Int(name string) (int, error) {
	v, ok := h.Get(name)
	if !ok {
		return 0, fmt.Errorf("header keyword %s not found", name)
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	case float32:
		return int(n), nil
	}
	return 0, fmt.Errorf("header keyword %s is not an integer: %v", name, v)
}

// Float returns a floating-point keyword.
func (h *Header) Float(name string) (float64, error) {
	v, ok := h.Get(name)
	if !ok {
		return 0, fmt.Errorf("header keyword %s not found", name)
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	}
	return 0, fmt.Errorf("header keyword %s is not numeric: %v", name, v)
}

// Bool returns a boolean keyword; missing keywords read as false.
func (h *Header) Bool(name string) bool {
	v, ok := h.Get(name)
	if !ok {
		return false
	}
	b, ok := v.(bool)
	return ok && b
}

// Remove deletes a keyword if present.
func (h *Header) Remove(name string) {
	i, ok := h.index[name]
	if !ok {
		return
	}
	h.cards = append(h.cards[:i], h.cards[i+1:]...)
	delete(h.index, name)
	for j := i; j < len(h.cards); j++ {
		h.index[h.cards[j].Name] = j
	}
}

// Transfer copies the listed keywords from src, skipping absent ones.
func (h *Header) Transfer(src *Header, names []string) {
	for _, name := range names {
		if i, ok := src.index[name]; ok {
			c := src.cards[i]
			h.Set(c.Name, c.Value, c.Comment)
		}
	}
}

// Cards returns the cards in order. The slice is shared; callers must not
// modify it.
func (h *Header) Cards() []Card {
	return h.cards
}

// Clone returns a deep copy of the header.
func (h *Header) Clone() *Header {
	out := &Header{
		cards: make([]Card, len(h.cards)),
		index: make(map[string]int, len(h.index)),
	}
	copy(out.cards, h.cards)
	for k, v := range h.index {
		out.index[k] = v
	}
	return out
}
