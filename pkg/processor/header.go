package processor

import (
	"fmt"
	"net/netip"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/haolipeng/ipv4_packet_forwarder/pkg/types"
)

// ParseHeader 解析原始数据包的IPv4头部
// 返回的头部不引用raw的内存，修改后需调用 WriteTo 写回
func ParseHeader(raw []byte) (*types.IPv4Header, error) {
	if len(raw) < types.MinHeaderLen {
		return nil, types.ErrPacketTooShort
	}
	if version := raw[0] >> 4; version != 4 {
		return nil, fmt.Errorf("%w: version %d", types.ErrNotIPv4, version)
	}
	ihl := raw[0] & 0x0f
	if ihl < 5 {
		return nil, fmt.Errorf("%w: %d words", types.ErrInvalidHeaderLength, ihl)
	}
	if int(ihl)*4 > len(raw) {
		return nil, fmt.Errorf("%w: header %d bytes, captured %d", types.ErrTruncatedHeader, int(ihl)*4, len(raw))
	}

	var ip layers.IPv4
	if err := ip.DecodeFromBytes(raw, gopacket.NilDecodeFeedback); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrMalformedHeader, err)
	}

	src, ok := netip.AddrFromSlice(ip.SrcIP.To4())
	if !ok {
		return nil, fmt.Errorf("%w: bad source address", types.ErrMalformedHeader)
	}
	dst, ok := netip.AddrFromSlice(ip.DstIP.To4())
	if !ok {
		return nil, fmt.Errorf("%w: bad destination address", types.ErrMalformedHeader)
	}

	return &types.IPv4Header{
		Version:  ip.Version,
		IHL:      ip.IHL,
		TOS:      ip.TOS,
		Length:   ip.Length,
		Id:       ip.Id,
		TTL:      ip.TTL,
		Protocol: ip.Protocol,
		Checksum: ip.Checksum,
		SrcIP:    src,
		DstIP:    dst,
	}, nil
}
