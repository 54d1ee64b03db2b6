package conn

import (
	"fmt"
	"net"
	"net/netip"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
	"golang.org/x/sys/unix"
)

// A tickle is an ACK with sequence zero. It never matches the peer's
// window, so the peer responds with its own current ACK and retransmits
// from there.
func sendTickleACK(src netip.Addr, srcPort uint16, dst netip.Addr, dstPort uint16) error {
	tcp := &layers.TCP{
		SrcPort: layers.TCPPort(srcPort),
		DstPort: layers.TCPPort(dstPort),
		ACK:     true,
		Window:  1234,
	}

	if src.Is4() {
		return sendTickleACK4(tcp, src, dst)
	}
	return sendTickleACK6(tcp, src, dst)
}

func sendTickleACK4(tcp *layers.TCP, src, dst netip.Addr) error {
	ip := &layers.IPv4{
		Version:  4,
		TTL:      255,
		Protocol: layers.IPProtocolTCP,
		SrcIP:    net.IP(src.AsSlice()),
		DstIP:    net.IP(dst.AsSlice()),
	}
	tcp.SetNetworkLayerForChecksum(ip)

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{ComputeChecksums: true, FixLengths: true}
	if err := gopacket.SerializeLayers(buf, opts, ip, tcp); err != nil {
		return fmt.Errorf("conn: could not build tickle for %v: %w", dst, err)
	}

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_RAW, unix.IPPROTO_RAW)
	if err != nil {
		return fmt.Errorf("conn: could not open raw socket: %w", err)
	}
	defer unix.Close(fd)

	sa := unix.SockaddrInet4{Addr: dst.As4()}
	if err := unix.Sendto(fd, buf.Bytes(), 0, &sa); err != nil {
		return fmt.Errorf("conn: could not send tickle to %v: %w", dst, err)
	}
	return nil
}

func sendTickleACK6(tcp *layers.TCP, src, dst netip.Addr) error {
	// The kernel prepends the IPv6 header on SOCK_RAW/IPPROTO_TCP; the
	// pseudo-header is only needed for the checksum.
	ip := &layers.IPv6{
		Version:    6,
		NextHeader: layers.IPProtocolTCP,
		HopLimit:   255,
		SrcIP:      net.IP(src.AsSlice()),
		DstIP:      net.IP(dst.AsSlice()),
	}
	tcp.SetNetworkLayerForChecksum(ip)

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{ComputeChecksums: true, FixLengths: true}
	if err := gopacket.SerializeLayers(buf, opts, tcp); err != nil {
		return fmt.Errorf("conn: could not build tickle for %v: %w", dst, err)
	}

	fd, err := unix.Socket(unix.AF_INET6, unix.SOCK_RAW, unix.IPPROTO_TCP)
	if err != nil {
		return fmt.Errorf("conn: could not open raw socket: %w", err)
	}
	defer unix.Close(fd)

	sa := unix.SockaddrInet6{Addr: dst.As16()}
	if err := unix.Sendto(fd, buf.Bytes(), 0, &sa); err != nil {
		return fmt.Errorf("conn: could not send tickle to %v: %w", dst, err)
	}
	return nil
}
