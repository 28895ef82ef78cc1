package model

import "time"

type TunnelState string

const (
	TunnelStopped  TunnelState = "STOPPED"
	TunnelStarting TunnelState = "STARTING"
	TunnelActive   TunnelState = "ACTIVE"
)

// TunnelSession is replaced wholesale on every successful tunnel start.
type TunnelSession struct {
	LocalPort           uint16    `json:"localPort"`
	PublicHost          string    `json:"publicHost"`
	PublicPort          uint16    `json:"publicPort"`
	StartedAt           time.Time `json:"startedAt"`
	ConsecutiveFailures int       `json:"consecutiveFailures"`
}

// TunnelEvent is one journal entry about the tunnel or the connectivity publish cycle.
type TunnelEvent struct {
	ID     int64     `json:"id"`
	Kind   string    `json:"kind"`
	Host   string    `json:"host,omitempty"`
	Port   uint16    `json:"port,omitempty"`
	Detail string    `json:"detail,omitempty"`
	Time   time.Time `json:"time"`
}
