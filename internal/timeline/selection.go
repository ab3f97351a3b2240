package timeline

// Select applies a click on the timeline. An empty clipID is a click on the
// background, which clears the selection unless shift is held. A plain click
// on a clip selects only that clip; shift toggles its membership.
func (e *Engine) Select(clipID string, shift bool) []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch {
	case clipID == "" && shift:
	case clipID == "":
		e.selection = nil
	case shift:
		if contains(e.selection, clipID) {
			e.selection = without(e.selection, map[string]bool{clipID: true})
		} else {
			e.selection = append(e.selection, clipID)
		}
	default:
		e.selection = []string{clipID}
	}
	return append([]string(nil), e.selection...)
}

// ClearSelection empties the selection.
func (e *Engine) ClearSelection() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.selection = nil
}

// Selection returns the selected clip ids in selection order.
func (e *Engine) Selection() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.selection...)
}

// ClipboardSize returns the number of clips on the clipboard.
func (e *Engine) ClipboardSize() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.clipboard)
}

func contains(values []string, v string) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}
