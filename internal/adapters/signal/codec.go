package signal

import (
	"encoding/json"
	"fmt"

	"github.com/dkeye/huddle/internal/core"
)

// Decode parses one client frame into its inbound event.
func Decode(data []byte) (core.Inbound, error) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("bad json: %w", err)
	}

	var (
		in  core.Inbound
		err error
	)
	switch env.Type {
	case core.MsgJoinCall:
		in, err = decodeAs[core.JoinCall](data)
	case core.MsgSignal:
		in, err = decodeAs[core.Signal](data)
	case core.MsgChat:
		in, err = decodeAs[core.Chat](data)
	case core.MsgStatusUpdate:
		in, err = decodeAs[core.StatusUpdate](data)
	case core.MsgSpeakerUpdate:
		in, err = decodeAs[core.SpeakerUpdate](data)
	case core.MsgLeaveCall:
		in = core.LeaveCall{}
	case core.MsgPing:
		in = core.Ping{}
	default:
		return nil, fmt.Errorf("unknown message type %q", env.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("bad %s payload: %w", env.Type, err)
	}
	return in, nil
}

func decodeAs[T core.Inbound](data []byte) (T, error) {
	var v T
	err := json.Unmarshal(data, &v)
	return v, err
}
