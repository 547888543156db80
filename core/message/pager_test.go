package message

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func thread(n int) []Message {
	msgs := make([]Message, 0, n)
	for i := 0; i < n; i++ {
		msgs = append(msgs, msg(fmt.Sprint(i), i))
	}
	return msgs
}

func TestPager_window(t *testing.T) {
	msgs := thread(25)
	p := NewPager(0)
	assert.Equal(t, DefaultPageSize, p.Size())

	tests := []struct {
		name        string
		loadMore    bool
		wantLoaded  bool
		wantLen     int
		wantFirstID string
		wantHasMore bool
	}{
		{name: "page 1", wantLen: 10, wantFirstID: "15", wantHasMore: true},
		{name: "page 2", loadMore: true, wantLoaded: true, wantLen: 20, wantFirstID: "5", wantHasMore: true},
		{name: "page 3", loadMore: true, wantLoaded: true, wantLen: 25, wantFirstID: "0", wantHasMore: false},
		{name: "nothing left", loadMore: true, wantLoaded: false, wantLen: 25, wantFirstID: "0", wantHasMore: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.loadMore {
				assert.Equal(t, tt.wantLoaded, p.LoadPrevious(len(msgs)))
			}
			window := p.Window(msgs)
			assert.Len(t, window, tt.wantLen)
			assert.Equal(t, tt.wantFirstID, window[0].ID)
			assert.Equal(t, "24", window[len(window)-1].ID)
			assert.Equal(t, tt.wantHasMore, p.HasMore(len(msgs)))
		})
	}

	p.Reset()
	assert.Equal(t, 1, p.Page())
	assert.Len(t, p.Window(msgs), 10)
}

func TestPager_emptyThread(t *testing.T) {
	p := NewPager(10)
	assert.Empty(t, p.Window(nil))
	assert.False(t, p.HasMore(0))
	assert.False(t, p.LoadPrevious(0))
	assert.Equal(t, 1, p.Page())
}

func TestPager_exactPage(t *testing.T) {
	p := NewPager(10)
	msgs := thread(10)
	assert.Len(t, p.Window(msgs), 10)
	assert.False(t, p.HasMore(len(msgs)))
}
