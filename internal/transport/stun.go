package transport

import (
	"fmt"
	"net"
	"time"

	"github.com/pion/stun/v3"
)

// stunQueryTimeout bounds a single STUN binding-request round trip.
const stunQueryTimeout = 3 * time.Second

// discoverPublicAddr sends a STUN binding request over pc to stunServer and
// returns the reflexive (public) address the STUN host observed. CreateUDP
// calls it on the client side when Options.UseSTUN is set; the learned
// endpoint is logged and is not sent to the peer, and the client still
// connects to Options.Destination.
func discoverPublicAddr(pc *net.UDPConn, stunServer string) (*net.UDPAddr, error) {
	raddr, err := net.ResolveUDPAddr("udp4", stunServer)
	if err != nil {
		return nil, fmt.Errorf("transport: resolve stun server: %w", err)
	}

	msg, err := stun.Build(stun.TransactionID, stun.BindingRequest)
	if err != nil {
		return nil, fmt.Errorf("transport: build stun request: %w", err)
	}

	if err := pc.SetDeadline(time.Now().Add(stunQueryTimeout)); err != nil {
		return nil, err
	}
	defer pc.SetDeadline(time.Time{})

	if _, err := pc.WriteToUDP(msg.Raw, raddr); err != nil {
		return nil, fmt.Errorf("transport: send stun request: %w", err)
	}

	buf := make([]byte, 1500)
	n, _, err := pc.ReadFromUDP(buf)
	if err != nil {
		return nil, fmt.Errorf("transport: read stun response: %w", err)
	}

	reply := &stun.Message{Raw: buf[:n]}
	if err := reply.Decode(); err != nil {
		return nil, fmt.Errorf("transport: decode stun response: %w", err)
	}

	var xorAddr stun.XORMappedAddress
	if err := xorAddr.GetFrom(reply); err != nil {
		return nil, fmt.Errorf("transport: stun response missing XOR-MAPPED-ADDRESS: %w", err)
	}

	return &net.UDPAddr{IP: xorAddr.IP, Port: xorAddr.Port}, nil
}
