package source

import (
	"context"
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/haolipeng/ipv4_packet_forwarder/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serializeIPv4(t *testing.T, src, dst string, payload []byte) []byte {
	t.Helper()
	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    net.ParseIP(src).To4(),
		DstIP:    net.ParseIP(dst).To4(),
	}
	buf := gopacket.NewSerializeBuffer()
	err := gopacket.SerializeLayers(buf, gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true},
		ip, gopacket.Payload(payload))
	require.NoError(t, err)
	return append([]byte(nil), buf.Bytes()...)
}

func writePcap(t *testing.T, linkType layers.LinkType, frames ...[]byte) string {
	t.Helper()
	filename := filepath.Join(t.TempDir(), "input.pcap")
	f, err := os.Create(filename)
	require.NoError(t, err)
	defer f.Close()

	w := pcapgo.NewWriter(f)
	require.NoError(t, w.WriteFileHeader(65536, linkType))
	for _, frame := range frames {
		ci := gopacket.CaptureInfo{Timestamp: time.Now(), CaptureLength: len(frame), Length: len(frame)}
		require.NoError(t, w.WritePacket(ci, frame))
	}
	return filename
}

func TestPcapFileSourceRaw(t *testing.T) {
	p1 := serializeIPv4(t, "192.168.2.4", "192.168.2.1", []byte("one"))
	p2 := serializeIPv4(t, "10.0.0.5", "10.0.0.9", []byte("two"))
	filename := writePcap(t, layers.LinkTypeRaw, p1, p2)

	src, err := NewPcapFileSource(filename)
	require.NoError(t, err)
	defer src.Close()

	buf := make([]byte, types.BufferSize)
	ctx := context.Background()

	n, err := src.ReadPacket(ctx, buf)
	require.NoError(t, err)
	assert.Equal(t, p1, buf[:n])

	n, err = src.ReadPacket(ctx, buf)
	require.NoError(t, err)
	assert.Equal(t, p2, buf[:n])

	_, err = src.ReadPacket(ctx, buf)
	assert.ErrorIs(t, err, io.EOF)

	stats := src.GetStats()
	assert.Equal(t, uint64(2), stats["packets_captured"])
}

// 以太网链路类型：剥离以太网头部，跳过非IPv4帧
func TestPcapFileSourceEthernet(t *testing.T) {
	ipPkt := serializeIPv4(t, "10.0.0.5", "10.0.0.9", []byte("hello"))

	frame := func(ethType layers.EthernetType, payload []byte) []byte {
		eth := &layers.Ethernet{
			SrcMAC:       net.HardwareAddr{0x02, 0, 0, 0, 0, 1},
			DstMAC:       net.HardwareAddr{0x02, 0, 0, 0, 0, 2},
			EthernetType: ethType,
		}
		buf := gopacket.NewSerializeBuffer()
		require.NoError(t, gopacket.SerializeLayers(buf, gopacket.SerializeOptions{}, eth, gopacket.Payload(payload)))
		return append([]byte(nil), buf.Bytes()...)
	}

	filename := writePcap(t, layers.LinkTypeEthernet,
		frame(layers.EthernetTypeARP, make([]byte, 28)),
		frame(layers.EthernetTypeIPv4, ipPkt),
	)

	src, err := NewPcapFileSource(filename)
	require.NoError(t, err)
	defer src.Close()

	buf := make([]byte, types.BufferSize)
	n, err := src.ReadPacket(context.Background(), buf)
	require.NoError(t, err)
	assert.Equal(t, ipPkt, buf[:n])

	stats := src.GetStats()
	assert.Equal(t, uint64(1), stats["packets_skipped"])
}

func TestPcapFileSourceErrors(t *testing.T) {
	_, err := NewPcapFileSource(filepath.Join(t.TempDir(), "missing.pcap"))
	assert.Error(t, err)

	unsupported := writePcap(t, layers.LinkTypeIEEE802_11)
	_, err = NewPcapFileSource(unsupported)
	assert.Error(t, err)

	filename := writePcap(t, layers.LinkTypeRaw, serializeIPv4(t, "10.0.0.5", "10.0.0.9", nil))
	src, err := NewPcapFileSource(filename)
	require.NoError(t, err)
	require.NoError(t, src.Close())
	require.NoError(t, src.Close())

	_, err = src.ReadPacket(context.Background(), make([]byte, 64))
	assert.ErrorIs(t, err, types.ErrSourceClosed)
}

func TestPcapFileSourceCancelled(t *testing.T) {
	filename := writePcap(t, layers.LinkTypeRaw, serializeIPv4(t, "10.0.0.5", "10.0.0.9", nil))
	src, err := NewPcapFileSource(filename)
	require.NoError(t, err)
	defer src.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = src.ReadPacket(ctx, make([]byte, 64))
	assert.ErrorIs(t, err, context.Canceled)
}
