package main

import (
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dustin/go-humanize"

	"github.com/trezcool/masomo-portal/core/chat"
	"github.com/trezcool/masomo-portal/core/conversation"
	"github.com/trezcool/masomo-portal/core/message"
)

const excerptLength = 60

func participantLabel(p conversation.Participant) string {
	details := p.Role.Label()
	if p.Specialty != "" {
		details += ", " + p.Specialty
	}
	if p.Name == "" || p.Name == details {
		return details
	}
	return fmt.Sprintf("%s (%s)", p.Name, details)
}

func excerpt(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= excerptLength {
		return s
	}
	return string([]rune(s)[:excerptLength-3]) + "..."
}

func renderInbox(w io.Writer, summaries []conversation.Summary, now time.Time) {
	if len(summaries) == 0 {
		fmt.Fprintln(w, "No conversations.")
		return
	}
	for _, s := range summaries {
		var unread string
		if s.UnreadCount > 0 {
			unread = fmt.Sprintf("  [%d unread]", s.UnreadCount)
		}
		fmt.Fprintf(w, "#%s  %s%s\n", s.ID, participantLabel(s.Other), unread)
		if s.Student != "" {
			fmt.Fprintf(w, "    about %s\n", s.Student)
		}
		if lm := s.LastMessage; lm != nil {
			var who, when string
			if lm.Mine {
				who = message.YouLabel + ": "
			}
			if !lm.Timestamp.IsZero() {
				when = "  " + humanize.RelTime(lm.Timestamp, now, "ago", "from now")
			}
			fmt.Fprintf(w, "    %s%s%s\n", who, excerpt(lm.Body), when)
		}
	}
}

func formatMessage(m message.Message, loc *time.Location) string {
	name := m.Sender.Name
	if m.Mine {
		name = message.YouLabel
	}
	line := fmt.Sprintf("  %s  %s: %s", m.Timestamp.In(loc).Format("15:04"), name, m.Body)
	if m.Pending {
		line += "  (sending)"
	}
	return line
}

// renderView prints the visible window of a conversation, grouped by day.
func renderView(w io.Writer, v chat.View, now time.Time) {
	fmt.Fprintf(w, "== %s ==\n", participantLabel(v.Participant))
	if v.HasMore {
		fmt.Fprintf(w, "  ... older messages (%s)\n", cmdMore)
	}
	if len(v.Groups) == 0 {
		fmt.Fprintln(w, "  No messages yet.")
		return
	}
	for _, g := range v.Groups {
		fmt.Fprintf(w, "-- %s --\n", message.DayLabel(g.Day, now))
		for _, m := range g.Messages {
			fmt.Fprintln(w, formatMessage(m, now.Location()))
		}
	}
}
