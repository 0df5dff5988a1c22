package probe

import (
	"context"
	"net"
	"os"
	"sync/atomic"
	"time"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

const (
	protocolICMP     = 1
	protocolIPv6ICMP = 58
)

var echoPayload = []byte("switchmonitor")

// ICMP sends a single echo request and waits for the matching reply.
// Unprivileged mode uses datagram ICMP sockets (net.ipv4.ping_group_range on
// Linux); privileged mode needs a raw socket.
type ICMP struct {
	timeout    time.Duration
	privileged bool
	id         int
	seq        atomic.Uint32
}

// NewICMP returns an echo prober.
func NewICMP(timeout time.Duration, privileged bool) *ICMP {
	return &ICMP{
		timeout:    timeout,
		privileged: privileged,
		id:         os.Getpid() & 0xffff,
	}
}

// Probe implements Prober.
func (p *ICMP) Probe(ctx context.Context, ip string) bool {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	dst, err := resolve(ctx, ip)
	if err != nil {
		return false
	}
	v4 := dst.IP.To4() != nil

	network, listen, proto := "ip4:icmp", "0.0.0.0", protocolICMP
	var reqType, replyType icmp.Type = ipv4.ICMPTypeEcho, ipv4.ICMPTypeEchoReply
	if !v4 {
		network, listen, proto = "ip6:ipv6-icmp", "::", protocolIPv6ICMP
		reqType, replyType = ipv6.ICMPTypeEchoRequest, ipv6.ICMPTypeEchoReply
	}
	var target net.Addr = dst
	if !p.privileged {
		network = "udp4"
		if !v4 {
			network = "udp6"
		}
		target = &net.UDPAddr{IP: dst.IP, Zone: dst.Zone}
	}

	conn, err := icmp.ListenPacket(network, listen)
	if err != nil {
		return false
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	// unblock ReadFrom if the parent context is cancelled early
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	seq := int(p.seq.Add(1) & 0xffff)
	msg := icmp.Message{
		Type: reqType,
		Code: 0,
		Body: &icmp.Echo{ID: p.id, Seq: seq, Data: echoPayload},
	}
	wire, err := msg.Marshal(nil)
	if err != nil {
		return false
	}
	if _, err := conn.WriteTo(wire, target); err != nil {
		return false
	}

	buf := make([]byte, 1500)
	for {
		n, peer, err := conn.ReadFrom(buf)
		if err != nil {
			return false
		}
		if !sameHost(peer, dst.IP) {
			continue
		}
		reply, err := icmp.ParseMessage(proto, buf[:n])
		if err != nil || reply.Type != replyType {
			continue
		}
		echo, ok := reply.Body.(*icmp.Echo)
		if !ok || echo.Seq != seq {
			continue
		}
		// the kernel rewrites the id on datagram sockets
		if p.privileged && echo.ID != p.id {
			continue
		}
		return true
	}
}

func resolve(ctx context.Context, host string) (*net.IPAddr, error) {
	if ip := net.ParseIP(host); ip != nil {
		return &net.IPAddr{IP: ip}, nil
	}
	addrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, err
	}
	if len(addrs) == 0 {
		return nil, &net.DNSError{Err: "no addresses", Name: host, IsNotFound: true}
	}
	return &addrs[0], nil
}

func sameHost(addr net.Addr, ip net.IP) bool {
	switch a := addr.(type) {
	case *net.IPAddr:
		return a.IP.Equal(ip)
	case *net.UDPAddr:
		return a.IP.Equal(ip)
	default:
		return false
	}
}
