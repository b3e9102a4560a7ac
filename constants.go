package usbip

import (
	"time"

	"github.com/behrlich/go-usbip/internal/constants"
)

// Re-export constants for public API
const (
	HeaderSize         = constants.HeaderSize
	IsoDescSize        = constants.IsoDescSize
	SetupLen           = constants.SetupLen
	NoFrameNumber      = constants.NoFrameNumber
	NegotiationTimeout = constants.NegotiationTimeout
	SendQueueDepth     = constants.SendQueueDepth
)

// Direction mirrors the USB/IP wire direction field.
type Direction = constants.Direction

const (
	DirOut = constants.DirOut
	DirIn  = constants.DirIn
)

// DefaultKeepaliveIdle, DefaultKeepaliveInterval and DefaultKeepaliveCount
// are the default TCP keepalive tuning applied to a Session's connection
// when the caller doesn't override them with WithKeepalive.
const (
	DefaultKeepaliveIdle     = 30 * time.Second
	DefaultKeepaliveInterval = 10 * time.Second
	DefaultKeepaliveCount    = 3
)
