package ws

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mcoot/chessmatch-go/internal/model"
	"github.com/mcoot/chessmatch-go/internal/proto"
	"github.com/mcoot/chessmatch-go/internal/relay"
)

// ErrUnknownType is returned for frames whose type is not a command
var ErrUnknownType = errors.New("unknown frame type")

// DecodeCommand turns a raw frame from conn into a relay command
func DecodeCommand(conn model.ConnID, raw []byte) (relay.Command, error) {
	var frame proto.Inbound
	if err := json.Unmarshal(raw, &frame); err != nil {
		return relay.Command{}, fmt.Errorf("decoding frame: %w", err)
	}

	cmd := relay.Command{Kind: model.CommandKind(frame.Type), Conn: conn}

	switch cmd.Kind {
	case model.CommandLogout, model.CommandQueueJoin, model.CommandQueueLeave, model.CommandInvite:
		return cmd, nil

	case model.CommandLogin:
		var data proto.LoginData
		if err := decodeData(frame, &data); err != nil {
			return relay.Command{}, err
		}
		cmd.DisplayName = data.DisplayName

	case model.CommandInviteJoin:
		var data proto.InviteJoinData
		if err := decodeData(frame, &data); err != nil {
			return relay.Command{}, err
		}
		cmd.Code = data.Code

	case model.CommandLeave, model.CommandDrawOffer, model.CommandResign:
		var data proto.SessionRef
		if err := decodeData(frame, &data); err != nil {
			return relay.Command{}, err
		}
		cmd.SessionID = data.SessionID

	case model.CommandMove:
		var data proto.MoveData
		if err := decodeData(frame, &data); err != nil {
			return relay.Command{}, err
		}
		cmd.SessionID = data.SessionID
		cmd.Notation = data.Notation

	case model.CommandDrawRespond:
		var data proto.DrawRespondData
		if err := decodeData(frame, &data); err != nil {
			return relay.Command{}, err
		}
		cmd.SessionID = data.SessionID
		cmd.Accept = data.Accept

	case model.CommandChat:
		var data proto.ChatData
		if err := decodeData(frame, &data); err != nil {
			return relay.Command{}, err
		}
		cmd.SessionID = data.SessionID
		cmd.Text = data.Text

	default:
		return relay.Command{}, fmt.Errorf("%w: %q", ErrUnknownType, frame.Type)
	}

	return cmd, nil
}

// EncodeEvent renders an event as an outbound frame
func EncodeEvent(event relay.Event) ([]byte, error) {
	return json.Marshal(proto.Outbound{Type: string(event.Type), Data: event.Payload})
}

func decodeData(frame proto.Inbound, v any) error {
	if len(frame.Data) == 0 {
		return fmt.Errorf("%s: missing data", frame.Type)
	}
	if err := json.Unmarshal(frame.Data, v); err != nil {
		return fmt.Errorf("%s: decoding data: %w", frame.Type, err)
	}
	return nil
}
