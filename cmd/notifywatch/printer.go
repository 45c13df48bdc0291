package main

import (
	"fmt"
	"io"

	"github.com/storedesk/notifykit/pkg/notification"
	"github.com/storedesk/notifykit/pkg/notifystore"
)

// printer writes a line per visible change: connectivity, counts and
// toasts that were not printed before.
type printer struct {
	w         io.Writer
	started   bool
	connected bool
	counts    notification.Counts
	toasts    map[string]struct{}
}

func newPrinter(w io.Writer) *printer {
	return &printer{w: w, toasts: make(map[string]struct{})}
}

func (p *printer) print(st notifystore.State) {
	if !p.started || st.Connected != p.connected || st.Counts != p.counts {
		fmt.Fprintf(p.w, "[%s] total=%d critical=%d high=%d warning=%d\n",
			badge(st.Connected), st.Counts.Total, st.Counts.Critical, st.Counts.High, st.Counts.Warning)
		p.started = true
		p.connected = st.Connected
		p.counts = st.Counts
	}

	active := make(map[string]struct{}, len(st.Toasts))
	for _, t := range st.Toasts {
		active[t.ToastID] = struct{}{}
		if _, seen := p.toasts[t.ToastID]; seen {
			continue
		}
		n := t.Notification
		fmt.Fprintf(p.w, "  ! %-8s %s: %s\n", n.Severity.Normalize(), n.Title, n.Message)
	}
	p.toasts = active
}

func badge(connected bool) string {
	if connected {
		return "Real-time"
	}
	return "Offline"
}
