package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/mcoot/chessmatch-go/internal/model"
	"github.com/mcoot/chessmatch-go/internal/proto"
)

const playHelp = `Commands:
  move <san|uci>   play a move (e4, Nf3, e7e8q)
  chat <text>      message your opponent
  draw             offer a draw
  accept, decline  answer a draw offer
  resign           give up the game
  leave            abandon the game
  queue            look for a random opponent
  invite           create a private game
  join <code>      join a private game
  quit             disconnect`

var (
	errQuit      = errors.New("quit")
	errNoSession = errors.New("you are not in a game")
)

type playOptions struct {
	name   string
	invite bool
	join   string
}

func newPlayCmd() *cobra.Command {
	var opts playOptions

	cmd := &cobra.Command{
		Use:   "play",
		Short: "Play a game from the terminal",
		Long: `Log in over a websocket and play. Without --invite or --join you are
placed in the matchmaking queue.

` + playHelp + `

Closing stdin quits.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlay(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.name, "name", "", "Display name (required)")
	cmd.Flags().BoolVar(&opts.invite, "invite", false, "Create a private game and print its code")
	cmd.Flags().StringVar(&opts.join, "join", "", "Join a private game by code")
	_ = cmd.MarkFlagRequired("name")
	cmd.MarkFlagsMutuallyExclusive("invite", "join")

	return cmd
}

type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func runPlay(ctx context.Context, in io.Reader, out io.Writer, opts playOptions) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	socketURL, err := client.SocketURL()
	if err != nil {
		return err
	}
	socket, _, err := websocket.DefaultDialer.DialContext(ctx, socketURL, nil)
	if err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}
	defer func() { _ = socket.Close() }()

	done := make(chan struct{})
	defer close(done)

	frames := make(chan frame)
	go func() {
		defer close(frames)
		for {
			var f frame
			if err := socket.ReadJSON(&f); err != nil {
				return
			}
			select {
			case frames <- f:
			case <-done:
				return
			}
		}
	}()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
	}()

	p := &player{out: out, jsonOutput: cfg.Output == "json", verbose: cfg.Verbose}

	if err := socket.WriteJSON(mustInbound(model.CommandLogin, proto.LoginData{DisplayName: opts.name})); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			closeSocket(socket)
			return nil

		case f, ok := <-frames:
			if !ok {
				return errors.New("server closed the connection")
			}
			p.observe(f)

			switch model.EventType(f.Type) {
			case model.EventLoginFailed:
				return fmt.Errorf("login failed: %s", failureMessage(f.Data))
			case model.EventLoginOK:
				if err := socket.WriteJSON(opts.start()); err != nil {
					return err
				}
			}

		case line, ok := <-lines:
			if !ok {
				closeSocket(socket)
				return nil
			}
			msg, err := p.command(line)
			if errors.Is(err, errQuit) {
				closeSocket(socket)
				return nil
			}
			if err != nil {
				fmt.Fprintf(out, "! %s\n", err)
				continue
			}
			if msg != nil {
				if err := socket.WriteJSON(msg); err != nil {
					return err
				}
			}
		}
	}
}

// start is the first command after login
func (o playOptions) start() proto.Inbound {
	switch {
	case o.invite:
		return mustInbound(model.CommandInvite, nil)
	case o.join != "":
		return mustInbound(model.CommandInviteJoin, proto.InviteJoinData{Code: o.join})
	default:
		return mustInbound(model.CommandQueueJoin, nil)
	}
}

func closeSocket(socket *websocket.Conn) {
	_ = socket.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
}

// player tracks the game the terminal is seated in
type player struct {
	out        io.Writer
	jsonOutput bool
	verbose    bool

	session  model.SessionID
	color    model.Color
	opponent string
}

// command turns a line of input into a frame. It returns nil for blank lines.
func (p *player) command(line string) (*proto.Inbound, error) {
	verb, rest, _ := strings.Cut(strings.TrimSpace(line), " ")
	rest = strings.TrimSpace(rest)

	var msg proto.Inbound
	switch strings.ToLower(verb) {
	case "":
		return nil, nil
	case "quit", "exit":
		return nil, errQuit
	case "help", "?":
		fmt.Fprintln(p.out, playHelp)
		return nil, nil
	case "queue":
		msg = mustInbound(model.CommandQueueJoin, nil)
	case "invite":
		msg = mustInbound(model.CommandInvite, nil)
	case "join":
		if rest == "" {
			return nil, errors.New("usage: join <code>")
		}
		msg = mustInbound(model.CommandInviteJoin, proto.InviteJoinData{Code: rest})
	case "move", "m":
		if rest == "" {
			return nil, errors.New("usage: move <san|uci>")
		}
		if p.session == "" {
			return nil, errNoSession
		}
		msg = mustInbound(model.CommandMove, proto.MoveData{SessionID: p.session, Notation: rest})
	case "chat", "say":
		if p.session == "" {
			return nil, errNoSession
		}
		msg = mustInbound(model.CommandChat, proto.ChatData{SessionID: p.session, Text: rest})
	case "draw":
		if p.session == "" {
			return nil, errNoSession
		}
		msg = mustInbound(model.CommandDrawOffer, proto.SessionRef{SessionID: p.session})
	case "accept", "decline":
		if p.session == "" {
			return nil, errNoSession
		}
		msg = mustInbound(model.CommandDrawRespond, proto.DrawRespondData{
			SessionID: p.session,
			Accept:    strings.EqualFold(verb, "accept"),
		})
	case "resign":
		if p.session == "" {
			return nil, errNoSession
		}
		msg = mustInbound(model.CommandResign, proto.SessionRef{SessionID: p.session})
	case "leave":
		if p.session == "" {
			return nil, errNoSession
		}
		msg = mustInbound(model.CommandLeave, proto.SessionRef{SessionID: p.session})
		p.session = ""
	default:
		return nil, fmt.Errorf("unknown command %q (try help)", verb)
	}
	return &msg, nil
}

// observe updates game state from a server frame and prints it
func (p *player) observe(f frame) {
	switch model.EventType(f.Type) {
	case model.EventSessionStarted:
		var started proto.SessionStarted
		if json.Unmarshal(f.Data, &started) == nil {
			p.session = started.SessionID
			p.color = started.Color
			p.opponent = started.Opponent.DisplayName
		}
	case model.EventSessionOver, model.EventOpponentLeft:
		p.session = ""
	}

	if p.jsonOutput {
		line, _ := json.Marshal(f)
		fmt.Fprintln(p.out, string(line))
		return
	}
	if text := p.describe(f); text != "" {
		fmt.Fprintln(p.out, text)
	}
}

func (p *player) describe(f frame) string {
	switch model.EventType(f.Type) {
	case model.EventLoginOK:
		var ok proto.LoginOK
		_ = json.Unmarshal(f.Data, &ok)
		return "Logged in as " + ok.DisplayName

	case model.EventRosterChanged:
		if !p.verbose {
			return ""
		}
		var roster proto.Roster
		_ = json.Unmarshal(f.Data, &roster)
		names := make([]string, len(roster.Players))
		for i, entry := range roster.Players {
			names[i] = entry.DisplayName
		}
		return "Online: " + strings.Join(names, ", ")

	case model.EventQueueWaiting:
		var waiting proto.QueueWaiting
		_ = json.Unmarshal(f.Data, &waiting)
		return fmt.Sprintf("Waiting for an opponent (%d in queue)", waiting.Size)

	case model.EventMatchFound:
		var found proto.MatchFound
		_ = json.Unmarshal(f.Data, &found)
		return "Matched against " + found.Opponent.DisplayName

	case model.EventInviteCreated:
		var created proto.InviteCreated
		_ = json.Unmarshal(f.Data, &created)
		return "Invite code: " + created.Code

	case model.EventInviteJoined:
		return "Joined the invite"

	case model.EventSessionStarted:
		return fmt.Sprintf("Game started: you play %s against %s", p.color, p.opponent)

	case model.EventMoveApplied:
		var applied proto.MoveApplied
		_ = json.Unmarshal(f.Data, &applied)
		toMove := string(applied.Turn) + " to move"
		if applied.Turn == p.color {
			toMove = "your move"
		}
		return fmt.Sprintf("%s played %s, %s", p.opponent, applied.Notation, toMove)

	case model.EventSessionOver:
		var over proto.SessionOver
		_ = json.Unmarshal(f.Data, &over)
		return "Game over: " + describeResult(over.WinnerColor, over.Reason)

	case model.EventDrawOffered:
		var offered proto.DrawOffered
		_ = json.Unmarshal(f.Data, &offered)
		return offered.From + " offers a draw (accept or decline)"

	case model.EventDrawDeclined:
		return "Draw offer declined"

	case model.EventDrawAccepted:
		return "Draw agreed"

	case model.EventChatDelivered:
		var chat proto.ChatDelivered
		_ = json.Unmarshal(f.Data, &chat)
		return fmt.Sprintf("<%s> %s", chat.From, chat.Text)

	case model.EventOpponentLeft:
		var left proto.OpponentLeft
		_ = json.Unmarshal(f.Data, &left)
		return fmt.Sprintf("Opponent left (%s)", left.Reason)

	case model.EventMoveRejected, model.EventInviteFailed, model.EventLoginFailed, model.EventError:
		return fmt.Sprintf("! %s: %s", f.Type, failureMessage(f.Data))

	default:
		return fmt.Sprintf("%s %s", f.Type, string(f.Data))
	}
}

func failureMessage(data json.RawMessage) string {
	var failure proto.Failure
	if err := json.Unmarshal(data, &failure); err != nil || failure.Message == "" {
		return string(data)
	}
	return failure.Message
}

func mustInbound(kind model.CommandKind, payload any) proto.Inbound {
	msg := proto.Inbound{Type: string(kind)}
	if payload != nil {
		// Payloads are plain structs of strings and bools
		data, err := json.Marshal(payload)
		if err != nil {
			panic(err)
		}
		msg.Data = data
	}
	return msg
}
