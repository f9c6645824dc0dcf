// Package rtc turns configured STUN/TURN endpoints into the ICE server list
// clients use to build their peer connections. Media never reaches the
// server.
package rtc

import (
	"fmt"

	"github.com/pion/stun/v3"
	"github.com/pion/webrtc/v4"

	"github.com/dkeye/huddle/internal/config"
)

func DefaultICEServers() []webrtc.ICEServer {
	return []webrtc.ICEServer{
		{
			URLs: []string{"stun:stun.l.google.com:19302"},
		},
	}
}

// ICEServers validates every configured URL and converts the list. An empty
// list falls back to DefaultICEServers.
func ICEServers(cfg []config.ICEServer) ([]webrtc.ICEServer, error) {
	if len(cfg) == 0 {
		return DefaultICEServers(), nil
	}
	out := make([]webrtc.ICEServer, 0, len(cfg))
	for i, s := range cfg {
		if len(s.URLs) == 0 {
			return nil, fmt.Errorf("ice_servers[%d]: no urls", i)
		}
		for _, raw := range s.URLs {
			u, err := stun.ParseURI(raw)
			if err != nil {
				return nil, fmt.Errorf("ice_servers[%d]: %q: %w", i, raw, err)
			}
			if (u.Scheme == stun.SchemeTypeTURN || u.Scheme == stun.SchemeTypeTURNS) && s.Username == "" {
				return nil, fmt.Errorf("ice_servers[%d]: turn server %q needs a username", i, raw)
			}
		}
		srv := webrtc.ICEServer{URLs: s.URLs, Username: s.Username}
		if s.Credential != "" {
			srv.Credential = s.Credential
		}
		out = append(out, srv)
	}
	return out, nil
}
