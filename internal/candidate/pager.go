package candidate

// DefaultPageSize matches the digit row: keys 1-9 then 0.
const DefaultPageSize = 10

// Pager slices a candidate list into fixed-size pages and tracks a
// selection cursor. Moving past either end is a no-op.
type Pager struct {
	items  []Candidate
	size   int
	page   int
	cursor int
}

// NewPager returns a pager on page 0. Sizes outside 1..10 fall back to
// DefaultPageSize.
func NewPager(items []Candidate, size int) *Pager {
	if size <= 0 || size > DefaultPageSize {
		size = DefaultPageSize
	}
	return &Pager{items: items, size: size}
}

func (p *Pager) Len() int {
	if p == nil {
		return 0
	}
	return len(p.items)
}

func (p *Pager) Size() int {
	if p == nil {
		return DefaultPageSize
	}
	return p.size
}

// Page is the current page index; 0 when the list is empty.
func (p *Pager) Page() int {
	if p == nil {
		return 0
	}
	return p.page
}

// Pages is the number of pages; 0 when the list is empty.
func (p *Pager) Pages() int {
	if p == nil || len(p.items) == 0 {
		return 0
	}
	return (len(p.items) + p.size - 1) / p.size
}

// Items returns the whole list.
func (p *Pager) Items() []Candidate {
	if p == nil {
		return nil
	}
	return p.items
}

// Current returns the candidates on the current page.
func (p *Pager) Current() []Candidate {
	if p == nil || len(p.items) == 0 {
		return nil
	}
	start := p.page * p.size
	if start >= len(p.items) {
		return nil
	}
	end := start + p.size
	if end > len(p.items) {
		end = len(p.items)
	}
	return p.items[start:end]
}

// Next moves to the following page and reports whether it moved.
func (p *Pager) Next() bool {
	if p == nil || p.page+1 >= p.Pages() {
		return false
	}
	p.page++
	p.cursor = p.page * p.size
	return true
}

// Prev moves to the previous page and reports whether it moved.
func (p *Pager) Prev() bool {
	if p == nil || p.page == 0 {
		return false
	}
	p.page--
	p.cursor = p.page * p.size
	return true
}

// Select returns the candidate in slot (0-based) of the current page.
func (p *Pager) Select(slot int) (Candidate, bool) {
	if p == nil || slot < 0 || slot >= p.size {
		return Candidate{}, false
	}
	return p.SelectAt(p.page*p.size + slot)
}

// SelectAt returns the candidate at an absolute index.
func (p *Pager) SelectAt(index int) (Candidate, bool) {
	if p == nil || index < 0 || index >= len(p.items) {
		return Candidate{}, false
	}
	return p.items[index], true
}

// Cursor is the absolute index of the selected candidate.
func (p *Pager) Cursor() int {
	if p == nil {
		return 0
	}
	return p.cursor
}

// Selected returns the candidate under the cursor.
func (p *Pager) Selected() (Candidate, bool) {
	return p.SelectAt(p.Cursor())
}

// MoveCursor shifts the selection by delta, turning pages as needed. It
// reports whether the cursor moved.
func (p *Pager) MoveCursor(delta int) bool {
	if p == nil || len(p.items) == 0 {
		return false
	}
	next := p.cursor + delta
	if next < 0 || next >= len(p.items) {
		return false
	}
	p.cursor = next
	p.page = next / p.size
	return true
}

// DigitSlot maps a digit key to a page slot: '1' is slot 0 and '0' is
// slot 9.
func DigitSlot(d byte) (int, bool) {
	switch {
	case d >= '1' && d <= '9':
		return int(d - '1'), true
	case d == '0':
		return 9, true
	default:
		return 0, false
	}
}
