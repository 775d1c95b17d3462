// Package server defines the JSON frames exchanged with auction chat clients
// and the decoding rules applied to inbound payloads.
package server

import (
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/Tyrowin/auction-relay/internal/history"
)

// Frame types carried in the "type" discriminator.
const (
	TypeJoin    = "join"
	TypeMessage = "message"
	TypeHistory = "history"
)

// Decoding failures. Callers match them with errors.Is.
var (
	ErrMalformed    = errors.New("malformed payload")
	ErrUnknownType  = errors.New("unknown event type")
	ErrMissingField = errors.New("missing required field")
)

// inboundFrame mirrors every field an inbound event may carry. Pointers
// distinguish an absent field from an empty string.
type inboundFrame struct {
	Type      *string `json:"type"`
	AuctionID *string `json:"auctionId"`
	Address   *string `json:"address"`
	Content   *string `json:"content"`
	Timestamp *string `json:"timestamp"`
}

// JoinEvent is a request to enter an auction room and receive its history.
type JoinEvent struct {
	AuctionID string
	Address   string
}

// MessageEvent is a chat line sent to an auction room.
type MessageEvent struct {
	AuctionID string
	Address   string
	Content   string
	Timestamp string
}

// MessageFrame is the outbound representation of a chat message, used both
// for live broadcasts and for entries of a history frame.
type MessageFrame struct {
	Type      string `json:"type"`
	AuctionID string `json:"auctionId"`
	Address   string `json:"address"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

// HistoryFrame replays a room's stored messages to a joining client.
type HistoryFrame struct {
	Type     string         `json:"type"`
	Messages []MessageFrame `json:"messages"`
}

// DecodeEvent parses a raw inbound payload into a *JoinEvent or a
// *MessageEvent. Unknown fields are ignored.
func DecodeEvent(raw []byte) (interface{}, error) {
	var in inboundFrame
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, errors.Wrapf(ErrMalformed, "%v", err)
	}
	if in.Type == nil {
		return nil, errors.Wrap(ErrUnknownType, "type field absent")
	}

	switch *in.Type {
	case TypeJoin:
		if in.AuctionID == nil {
			return nil, errors.Wrap(ErrMissingField, "join: auctionId")
		}
		return &JoinEvent{
			AuctionID: *in.AuctionID,
			Address:   deref(in.Address),
		}, nil

	case TypeMessage:
		required := []struct {
			name  string
			value *string
		}{
			{"auctionId", in.AuctionID},
			{"address", in.Address},
			{"content", in.Content},
			{"timestamp", in.Timestamp},
		}
		for _, f := range required {
			if f.value == nil {
				return nil, errors.Wrapf(ErrMissingField, "message: %s", f.name)
			}
		}
		return &MessageEvent{
			AuctionID: *in.AuctionID,
			Address:   *in.Address,
			Content:   *in.Content,
			Timestamp: *in.Timestamp,
		}, nil

	default:
		return nil, errors.Wrapf(ErrUnknownType, "%q", *in.Type)
	}
}

// ChatMessage converts the event into an immutable history entry.
func (e *MessageEvent) ChatMessage() history.Message {
	return history.Message{
		RoomID:    e.AuctionID,
		Sender:    e.Address,
		Content:   e.Content,
		Timestamp: e.Timestamp,
	}
}

func newMessageFrame(m history.Message) MessageFrame {
	return MessageFrame{
		Type:      TypeMessage,
		AuctionID: m.RoomID,
		Address:   m.Sender,
		Content:   m.Content,
		Timestamp: m.Timestamp,
	}
}

func encodeMessage(m history.Message) ([]byte, error) {
	return json.Marshal(newMessageFrame(m))
}

func encodeHistory(msgs []history.Message) ([]byte, error) {
	frame := HistoryFrame{
		Type:     TypeHistory,
		Messages: make([]MessageFrame, 0, len(msgs)),
	}
	for _, m := range msgs {
		frame.Messages = append(frame.Messages, newMessageFrame(m))
	}
	return json.Marshal(frame)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
