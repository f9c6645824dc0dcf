package app

import "github.com/dkeye/huddle/internal/domain"

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	KickMember
	DropFrame
)

// Policy decides what happens to a recipient whose outbound buffer is full.
type Policy interface {
	OnBackPressure(room domain.RoomID, conn domain.ConnID) BackpressureAction
}

// SimplePolicy kicks slow consumers.
type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(domain.RoomID, domain.ConnID) BackpressureAction {
	return KickMember
}
