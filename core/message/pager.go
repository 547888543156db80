package message

// DefaultPageSize is the number of messages a page adds to the window.
const DefaultPageSize = 10

// Pager exposes a trailing window of whole pages over a sorted thread.
// Loading a previous page extends the window backward in time.
type Pager struct {
	page int
	size int
}

func NewPager(size int) *Pager {
	if size <= 0 {
		size = DefaultPageSize
	}
	return &Pager{page: 1, size: size}
}

func (p *Pager) Page() int { return p.page }
func (p *Pager) Size() int { return p.size }

// Reset goes back to the first page (most recent messages only).
func (p *Pager) Reset() { p.page = 1 }

// start is the index of the first visible message in a thread of total messages.
func (p *Pager) start(total int) int {
	if n := total - p.page*p.size; n > 0 {
		return n
	}
	return 0
}

// Window returns the visible trailing slice of msgs.
func (p *Pager) Window(msgs []Message) []Message {
	return msgs[p.start(len(msgs)):]
}

// HasMore reports whether older messages are hidden.
func (p *Pager) HasMore(total int) bool {
	return p.start(total) > 0
}

// LoadPrevious extends the window by one page. It does nothing when everything is visible.
func (p *Pager) LoadPrevious(total int) bool {
	if !p.HasMore(total) {
		return false
	}
	p.page++
	return true
}
