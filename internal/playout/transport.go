package playout

// Transport is the outbound RTP collaborator consumed by the scheduler
// (spec §6): exactly one frame per invocation, never touched by anything
// but the scheduler goroutine (invariant I6).
type Transport interface {
	// SendFrame carries exactly one FrameSize-byte frame. timestampUnits is
	// the RTP timestamp to stamp it with; payloadType is fixed per session.
	SendFrame(payload []byte, timestampUnits uint32, payloadType uint8) error
}
