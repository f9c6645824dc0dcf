// Package domain holds participant and chat entities, their validation
// and the error kinds operations report.
package domain

import (
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// MaxParticipants is the hard per-room capacity.
	MaxParticipants    = 50
	DefaultDisplayName = "Anonymous"
	MaxDisplayNameLen  = 64
)

// ConnID identifies one live transport connection. Never reused.
type ConnID string

type Quality string

const (
	QualityPoor      Quality = "poor"
	QualityFair      Quality = "fair"
	QualityGood      Quality = "good"
	QualityExcellent Quality = "excellent"
)

func ParseQuality(s string) (Quality, error) {
	switch q := Quality(s); q {
	case QualityPoor, QualityFair, QualityGood, QualityExcellent:
		return q, nil
	}
	return "", &ValidationError{Field: "connectionQuality", Reason: "unknown quality " + s}
}

// Participant is the per-connection metadata kept by the registry.
type Participant struct {
	ConnID            ConnID    `json:"connectionId"`
	DisplayName       string    `json:"displayName"`
	AudioEnabled      bool      `json:"audioEnabled"`
	VideoEnabled      bool      `json:"videoEnabled"`
	ConnectionQuality Quality   `json:"connectionQuality"`
	JoinedAt          time.Time `json:"joinedAt"`
	LastUpdated       time.Time `json:"lastUpdated"`
}

// JoinOptions carries the caller's media opt-outs. Nil means enabled.
type JoinOptions struct {
	AudioEnabled *bool `json:"audioEnabled,omitempty"`
	VideoEnabled *bool `json:"videoEnabled,omitempty"`
}

// NormalizeDisplayName trims the name, falls back to DefaultDisplayName
// and truncates to MaxDisplayNameLen runes.
func NormalizeDisplayName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return DefaultDisplayName
	}
	if utf8.RuneCountInString(name) > MaxDisplayNameLen {
		name = string([]rune(name)[:MaxDisplayNameLen])
	}
	return name
}

func NewParticipant(id ConnID, name string, opts JoinOptions, now time.Time) *Participant {
	p := &Participant{
		ConnID:            id,
		DisplayName:       NormalizeDisplayName(name),
		AudioEnabled:      true,
		VideoEnabled:      true,
		ConnectionQuality: QualityGood,
		JoinedAt:          now,
		LastUpdated:       now,
	}
	if opts.AudioEnabled != nil {
		p.AudioEnabled = *opts.AudioEnabled
	}
	if opts.VideoEnabled != nil {
		p.VideoEnabled = *opts.VideoEnabled
	}
	return p
}

// StatusPatch holds the fields present in a status update request.
type StatusPatch struct {
	AudioEnabled      *bool
	VideoEnabled      *bool
	ConnectionQuality *Quality
}

// Apply merges the present fields and bumps LastUpdated.
func (p *Participant) Apply(patch StatusPatch, now time.Time) {
	if patch.AudioEnabled != nil {
		p.AudioEnabled = *patch.AudioEnabled
	}
	if patch.VideoEnabled != nil {
		p.VideoEnabled = *patch.VideoEnabled
	}
	if patch.ConnectionQuality != nil {
		p.ConnectionQuality = *patch.ConnectionQuality
	}
	p.LastUpdated = now
}
