package pipeline_test

import (
	"context"
	"io"
	"net"
	"net/netip"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haolipeng/ipv4_packet_forwarder/pkg/pipeline"
	"github.com/haolipeng/ipv4_packet_forwarder/pkg/processor"
	"github.com/haolipeng/ipv4_packet_forwarder/pkg/ruleEngine"
	"github.com/haolipeng/ipv4_packet_forwarder/pkg/sink"
	"github.com/haolipeng/ipv4_packet_forwarder/pkg/source"
)

func buildPacket(t *testing.T, src, dst string, ttl uint8) []byte {
	t.Helper()
	ip := &layers.IPv4{
		Version:  4,
		TTL:      ttl,
		Protocol: layers.IPProtocolICMPv4,
		SrcIP:    net.ParseIP(src).To4(),
		DstIP:    net.ParseIP(dst).To4(),
	}
	buf := gopacket.NewSerializeBuffer()
	err := gopacket.SerializeLayers(buf, gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true},
		ip, gopacket.Payload([]byte{8, 0, 0xf7, 0xff, 0, 0, 0, 0}))
	require.NoError(t, err)
	return append([]byte(nil), buf.Bytes()...)
}

func writeInput(t *testing.T, frames ...[]byte) string {
	t.Helper()
	filename := filepath.Join(t.TempDir(), "input.pcap")
	f, err := os.Create(filename)
	require.NoError(t, err)
	defer f.Close()

	w := pcapgo.NewWriter(f)
	require.NoError(t, w.WriteFileHeader(65536, layers.LinkTypeRaw))
	for _, frame := range frames {
		ci := gopacket.CaptureInfo{Timestamp: time.Now(), CaptureLength: len(frame), Length: len(frame)}
		require.NoError(t, w.WritePacket(ci, frame))
	}
	return filename
}

func readOutput(t *testing.T, files []string) [][]byte {
	t.Helper()
	var packets [][]byte
	for _, name := range files {
		f, err := os.Open(name)
		require.NoError(t, err)
		r, err := pcapgo.NewReader(f)
		require.NoError(t, err)
		for {
			data, _, err := r.ReadPacketData()
			if err == io.EOF {
				break
			}
			require.NoError(t, err)
			packets = append(packets, data)
		}
		f.Close()
	}
	return packets
}

func TestPipelineForwardsFromPcapToPcap(t *testing.T) {
	input := writeInput(t,
		buildPacket(t, "192.168.2.3", "192.168.2.1", 64), // BLOCK
		buildPacket(t, "192.168.2.4", "192.168.2.1", 5),  // ALLOW
		buildPacket(t, "10.0.0.5", "10.0.0.9", 64),       // DEFAULT
		buildPacket(t, "10.0.0.5", "10.0.0.9", 1),        // DEFAULT，跳数耗尽
		[]byte{0x45, 0x00, 0x00},                         // 过短
	)

	src, err := source.NewPcapFileSource(input)
	require.NoError(t, err)
	out, err := sink.NewPcapSink(filepath.Join(t.TempDir(), "out", "forwarded"), 0)
	require.NoError(t, err)

	logger, _ := test.NewNullLogger()
	proc := processor.NewPacketProcessor(src, out, ruleEngine.NewDefaultEngine(), processor.WithLogger(logger))

	p := pipeline.NewPipeline()
	p.SetSource(src)
	p.SetSink(out)
	p.SetProcessor(proc)
	require.NoError(t, p.Start(context.Background()))

	select {
	case err := <-p.Done():
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("pipeline did not finish")
	}
	assert.Equal(t, "finished", p.Status())

	stats := p.GetStats()
	procStats := stats["processor"].(map[string]interface{})
	assert.Equal(t, uint64(5), procStats["received_packets"])
	assert.Equal(t, uint64(1), procStats["blocked_packets"])
	assert.Equal(t, uint64(1), procStats["allowed_packets"])
	assert.Equal(t, uint64(2), procStats["default_packets"])
	assert.Equal(t, uint64(1), procStats["expired_packets"])
	assert.Equal(t, uint64(1), procStats["discarded_packets"])
	assert.Equal(t, uint64(2), procStats["forwarded_packets"])

	require.NoError(t, p.Stop())
	assert.Equal(t, "stopped", p.Status())

	packets := readOutput(t, out.Files())
	require.Len(t, packets, 2)

	for i, want := range []struct {
		src, dst string
		ttl      uint8
	}{
		{"192.168.2.4", "192.168.2.1", 4},
		{"10.0.0.5", "10.0.0.9", 63},
	} {
		h, err := processor.ParseHeader(packets[i])
		require.NoError(t, err)
		assert.Equal(t, netip.MustParseAddr(want.src), h.SrcIP)
		assert.Equal(t, netip.MustParseAddr(want.dst), h.DstIP)
		assert.Equal(t, want.ttl, h.TTL)
		assert.Equal(t, uint16(0), processor.Checksum(packets[i][:h.HeaderLen()]), "header checksum must verify")
	}
}

type blockingSource struct {
	closed chan struct{}
}

func (s *blockingSource) ReadPacket(ctx context.Context, buf []byte) (int, error) {
	<-ctx.Done()
	return 0, ctx.Err()
}

func (s *blockingSource) Close() error {
	close(s.closed)
	return nil
}

type discardSink struct{ closed bool }

func (s *discardSink) WritePacket(data []byte, dst netip.Addr) (int, error) { return len(data), nil }
func (s *discardSink) Close() error                                         { s.closed = true; return nil }

func TestPipelineStopCancelsLoop(t *testing.T) {
	src := &blockingSource{closed: make(chan struct{})}
	out := &discardSink{}
	logger, _ := test.NewNullLogger()

	p := pipeline.NewPipeline()
	p.SetSource(src)
	p.SetSink(out)
	p.SetProcessor(processor.NewPacketProcessor(src, out, ruleEngine.NewDefaultEngine(), processor.WithLogger(logger)))
	require.NoError(t, p.Start(context.Background()))
	assert.Equal(t, "running", p.Status())

	require.NoError(t, p.Stop())
	assert.True(t, out.closed)
	select {
	case <-src.closed:
	default:
		t.Fatal("source not closed")
	}

	err, ok := <-p.Done()
	assert.True(t, ok)
	assert.NoError(t, err)

	// 重复停止无副作用
	require.NoError(t, p.Stop())
}

func TestPipelineStartValidation(t *testing.T) {
	src := &blockingSource{closed: make(chan struct{})}
	out := &discardSink{}
	proc := processor.NewPacketProcessor(src, out, ruleEngine.NewDefaultEngine())

	p := pipeline.NewPipeline()
	assert.ErrorContains(t, p.Start(context.Background()), "no source")
	p.SetSource(src)
	assert.ErrorContains(t, p.Start(context.Background()), "no sink")
	p.SetSink(out)
	assert.ErrorContains(t, p.Start(context.Background()), "no processor")
	p.SetProcessor(proc)

	require.NoError(t, p.Start(context.Background()))
	assert.ErrorContains(t, p.Start(context.Background()), "already running")
	require.NoError(t, p.Stop())
}
