package conversation

import (
	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/message"
	"github.com/trezcool/masomo-portal/core/user"
)

// Resolver determines the other participant of a conversation by trying its strategies in order.
type Resolver struct {
	strategies []Strategy
	log        core.Logger
}

// NewResolver uses DefaultStrategies when no strategy is given.
func NewResolver(log core.Logger, strategies ...Strategy) *Resolver {
	if len(strategies) == 0 {
		strategies = DefaultStrategies()
	}
	return &Resolver{strategies: strategies, log: log}
}

// Resolve never returns the viewer: a candidate carrying the viewer id is excluded and the cascade
// runs again.
func (r *Resolver) Resolve(raw Raw, viewer user.Viewer) Participant {
	q := NewQuery(viewer)
	for pass := 0; pass <= len(r.strategies); pass++ {
		p := r.cascade(raw, q)
		if !viewer.Is(p.ID) {
			r.log.Debug("conversation: participant resolved", map[string]interface{}{
				"conversation": string(raw.ID),
				"strategy":     p.Source,
				"participant":  p.ID,
			})
			return p
		}
		r.log.Warn("conversation: participant resolved to the viewer", map[string]interface{}{
			"conversation": string(raw.ID),
			"strategy":     p.Source,
		}, viewer)
		q = q.Exclude(p.ID)
	}
	p, _ := Placeholder(raw, q)
	return p
}

func (r *Resolver) cascade(raw Raw, q Query) Participant {
	for _, s := range r.strategies {
		if p, ok := s.Find(raw, q); ok {
			if p.Source == "" {
				p.Source = s.Name
			}
			return p
		}
	}
	p, _ := Placeholder(raw, q)
	return p
}

// Summarize builds the inbox entry of a conversation.
func (r *Resolver) Summarize(raw Raw, viewer user.Viewer) Summary {
	s := Summary{
		ID:          core.CleanString(string(raw.ID)),
		Other:       r.Resolve(raw, viewer),
		LastMessage: newPreview(raw.lastMessage(), viewer),
		UnreadCount: parseCount(raw.UnreadCount),
	}
	if st := raw.student(); st != nil {
		s.StudentID = core.CleanString(string(st.ID))
		s.Student = st.DisplayName()
	}
	s.UpdatedAt, _ = message.ParseTimestamp(string(raw.UpdatedAt))
	return s
}
