package core

// Frame is one encoded outbound message.
type Frame []byte

// SignalConnection abstracts for a system messaging transport
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	// TrySend must not block. A full buffer is reported as an error.
	TrySend(Frame) error
	Close()
}
