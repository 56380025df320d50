package entities

import "sort"

// Selection is the operator's working choice of orders for one line.
// It is bound to a single line for its whole life; choosing another line
// means starting a new Selection.
type Selection struct {
	lineID   LineID
	selected map[OrderID]bool
}

// NewSelection creates an empty selection for a line
func NewSelection(lineID LineID) *Selection {
	return &Selection{
		lineID:   lineID,
		selected: make(map[OrderID]bool),
	}
}

// LineID returns the line the selection belongs to
func (s *Selection) LineID() LineID {
	if s == nil {
		return 0
	}
	return s.lineID
}

// IsSelected reports whether the order is currently marked
func (s *Selection) IsSelected(id OrderID) bool {
	if s == nil {
		return false
	}
	return s.selected[id]
}

// Toggle flips the mark for an order and returns the new value
func (s *Selection) Toggle(id OrderID) bool {
	if s.selected[id] {
		delete(s.selected, id)
		return false
	}
	s.selected[id] = true
	return true
}

// Remove unmarks the given orders
func (s *Selection) Remove(ids ...OrderID) {
	for _, id := range ids {
		delete(s.selected, id)
	}
}

// Clear unmarks every order
func (s *Selection) Clear() {
	if s == nil {
		return
	}
	s.selected = make(map[OrderID]bool)
}

// Count returns the number of marked orders
func (s *Selection) Count() int {
	if s == nil {
		return 0
	}
	return len(s.selected)
}

// SelectedIDs returns the marked order ids in ascending order
func (s *Selection) SelectedIDs() []OrderID {
	if s == nil {
		return nil
	}
	ids := make([]OrderID, 0, len(s.selected))
	for id, on := range s.selected {
		if on {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Clone returns an independent copy
func (s *Selection) Clone() *Selection {
	if s == nil {
		return nil
	}
	c := NewSelection(s.lineID)
	for id, on := range s.selected {
		c.selected[id] = on
	}
	return c
}

// Equal reports whether both selections mark the same orders on the same line
func (s *Selection) Equal(other *Selection) bool {
	if s.LineID() != other.LineID() || s.Count() != other.Count() {
		return false
	}
	for _, id := range s.SelectedIDs() {
		if !other.IsSelected(id) {
			return false
		}
	}
	return true
}
