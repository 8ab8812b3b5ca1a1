package model

import "time"

// Session states reported by the messaging backend after normalization.
// Unknown backend states are passed through verbatim.
const (
	SessionStateQRCode    = "qrcode"
	SessionStateConnected = "connected"
	SessionStateAttached  = "attached"
	SessionStateClosed    = "closed"
)

// Session represents a messaging-backend session as seen by the gateway.
// QRCode carries the pairing code (data URI) while the session waits to be
// scanned; it is empty once the session is connected.
type Session struct {
	Name      string    `json:"name"`
	State     string    `json:"state"`
	QRCode    string    `json:"qrcode,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}
