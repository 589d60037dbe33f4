package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/liveline-bot/liveline/internal/routing"
	"github.com/liveline-bot/liveline/internal/store"
)

const adminHelp = `Operator commands:
/live @handle - start a live session (ends the current one)
/end - end the live session, next in line is connected
/queue - show who is waiting
/drop @handle - remove someone from the queue
/autoreply add <keyword> <reply> - add a keyword reply (attach a photo to include it)
/autoreply del <keyword> - remove a keyword reply
/autoreply list - list keyword replies
/broadcast <message> - message every known party
/history @handle - show the archived exchange
/purge @handle | all - delete archived messages
/status - session, queue and rule counts
Plain messages go to whoever is live.`

func displayParty(p *store.Party) string {
	if p == nil {
		return "unknown party"
	}
	if p.Handle != "" {
		return "@" + p.Handle
	}
	return "id:" + p.TransportID
}

func renderQueue(st routing.State) string {
	if len(st.Queue) == 0 {
		return "The queue is empty."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d waiting:\n", len(st.Queue))
	for _, v := range st.Queue {
		waited := time.Since(v.EnqueuedAt).Round(time.Minute)
		fmt.Fprintf(&b, "%d. %s (%d unread, waiting %s)\n",
			v.Position, displayParty(&v.Party), v.Unread, waited)
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderStatus(st routing.State) string {
	var b strings.Builder
	if st.ActiveParty != nil {
		fmt.Fprintf(&b, "Live with %s since %s.\n",
			displayParty(st.ActiveParty), st.Active.StartedAt.Format(time.Kitchen))
	} else {
		b.WriteString("No live session.\n")
	}
	fmt.Fprintf(&b, "%d waiting, %d auto-reply rules, %d known parties.",
		len(st.Queue), len(st.Rules), st.PartyCount)
	return b.String()
}
