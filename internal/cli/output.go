package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mcoot/chessmatch-go/internal/api/response"
	"github.com/mcoot/chessmatch-go/internal/model"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
	w      io.Writer
}

// NewOutput creates a new Output formatter writing to w
func NewOutput(format string, w io.Writer) *Output {
	return &Output{format: format, w: w}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintError outputs an error
func (o *Output) PrintError(err error) {
	if o.format == "json" {
		errData := map[string]any{
			"error": map[string]string{
				"message": err.Error(),
			},
		}
		data, _ := json.Marshal(errData)
		fmt.Fprintln(os.Stderr, string(data))
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		data, _ := json.Marshal(map[string]string{"message": msg})
		fmt.Fprintln(o.w, string(data))
	} else {
		fmt.Fprintln(o.w, msg)
	}
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case response.Health:
		fmt.Fprintf(o.w, "Status: %s\n", v.Status)
	case response.Stats:
		o.printStats(v)
	case response.Roster:
		o.printRoster(v)
	case response.Session:
		o.printSession(v)
	case response.SessionList:
		o.printSessionList(v)
	case response.LegalMoves:
		o.printLegalMoves(v)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

func (o *Output) printStats(s response.Stats) {
	fmt.Fprintf(o.w, "Online: %d\n", s.Online)
	fmt.Fprintf(o.w, "Connections: %d\n", s.Connections)
	fmt.Fprintf(o.w, "Queued: %d\n", s.Queued)
	fmt.Fprintf(o.w, "Sessions: %d waiting, %d active, %d finished\n",
		s.Sessions.Waiting, s.Sessions.Active, s.Sessions.Finished)
}

func (o *Output) printRoster(r response.Roster) {
	if len(r.Players) == 0 {
		fmt.Fprintln(o.w, "Nobody is online")
		return
	}
	fmt.Fprintf(o.w, "Players (%d):\n", len(r.Players))
	for _, p := range r.Players {
		busy := ""
		if p.Busy {
			busy = " [playing]"
		}
		fmt.Fprintf(o.w, "  - %s%s\n", p.DisplayName, busy)
	}
}

func (o *Output) printSession(s response.Session) {
	fmt.Fprintf(o.w, "Session: %s (%s)\n", s.ID, s.Kind)
	fmt.Fprintf(o.w, "Status: %s\n", s.Status)
	for _, seat := range s.Seats {
		name := seat.DisplayName
		if name == "" {
			name = "(gone)"
		}
		fmt.Fprintf(o.w, "%s: %s\n", titleColor(string(seat.Color)), name)
	}
	fmt.Fprintf(o.w, "Position: %s\n", s.Position)
	if s.Status == "active" {
		fmt.Fprintf(o.w, "To move: %s\n", s.Turn)
	}
	if len(s.Moves) > 0 {
		fmt.Fprintf(o.w, "Moves: %s\n", formatMoves(s.Moves))
	}
	if s.Outcome != nil {
		fmt.Fprintf(o.w, "Result: %s\n", describeResult(s.Outcome.WinnerColor, s.Outcome.Reason))
	}
}

func (o *Output) printSessionList(l response.SessionList) {
	if len(l.Sessions) == 0 {
		fmt.Fprintln(o.w, "No sessions")
		return
	}
	for _, s := range l.Sessions {
		names := make([]string, len(s.Seats))
		for i, seat := range s.Seats {
			names[i] = seat.DisplayName
		}
		fmt.Fprintf(o.w, "%s  %-8s  %-11s  %s (%d moves)\n",
			s.ID, s.Status, s.Kind, strings.Join(names, " vs "), len(s.Moves))
	}
}

func (o *Output) printLegalMoves(m response.LegalMoves) {
	fmt.Fprintf(o.w, "Position: %s\n", m.Position)
	if len(m.Moves) == 0 {
		fmt.Fprintln(o.w, "No legal moves")
		return
	}
	fmt.Fprintf(o.w, "Legal moves (%d): %s\n", len(m.Moves), strings.Join(m.Moves, " "))
}

// formatMoves renders a move log in numbered pairs: "1. e4 e5 2. Nf3"
func formatMoves(moves []response.Move) string {
	var b strings.Builder
	for i, m := range moves {
		if i%2 == 0 {
			if i > 0 {
				b.WriteByte(' ')
			}
			fmt.Fprintf(&b, "%d. ", i/2+1)
		} else {
			b.WriteByte(' ')
		}
		b.WriteString(m.SAN)
	}
	return b.String()
}

func titleColor(color string) string {
	if color == "" {
		return color
	}
	return strings.ToUpper(color[:1]) + color[1:]
}

func describeResult(winner *model.Color, reason string) string {
	reason = strings.ReplaceAll(reason, "_", " ")
	if winner == nil {
		return "draw by " + reason
	}
	return fmt.Sprintf("%s wins by %s", *winner, reason)
}
