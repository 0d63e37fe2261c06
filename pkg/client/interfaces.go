package client

import "github.com/nsyszr/soilcontrol/pkg/devicecontrol/message"

// Interface sends control plane requests to the gateway.
type Interface interface {
	Command(req *message.CommandRequest) (*message.Reply, error)
	Claim(req *message.ClaimRequest) (*message.Reply, error)
	Close()
}
