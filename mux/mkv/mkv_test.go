package mkv

import (
	"bytes"
	"testing"
	"time"

	"github.com/gogpu/overlay/codec"
	"github.com/gogpu/overlay/mux"
)

type closeBuffer struct {
	bytes.Buffer
	closed bool
}

func (b *closeBuffer) Close() error {
	b.closed = true
	return nil
}

func tracks() []mux.TrackRegistration {
	return []mux.TrackRegistration{
		{Kind: codec.Video, Index: 0, Format: codec.Format{Kind: codec.Video, Codec: codec.CodecMJPEG, Width: 64, Height: 48, FrameRate: 30}},
		{Kind: codec.Audio, Index: 1, Format: codec.Format{Kind: codec.Audio, Codec: codec.CodecLPCM, SampleRate: 44100, Channels: 2, BitDepth: 16}},
	}
}

func TestWriter(t *testing.T) {
	buf := &closeBuffer{}
	w := New(buf)
	if err := w.Start(tracks()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	for i, pts := range []int{0, 33, 66} {
		s := codec.Sample{Kind: codec.Video, Payload: []byte{0xff, 0xd8, byte(i)}, PTS: time.Duration(pts) * time.Millisecond, KeyFrame: true}
		if err := w.WriteSample(0, s); err != nil {
			t.Fatalf("WriteSample video: %v", err)
		}
	}
	if err := w.WriteSample(1, codec.Sample{Kind: codec.Audio, Payload: make([]byte, 16), KeyFrame: true}); err != nil {
		t.Fatalf("WriteSample audio: %v", err)
	}
	if err := w.WriteSample(2, codec.Sample{}); err == nil {
		t.Error("WriteSample to missing track succeeded")
	}
	if err := w.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if err := w.Finalize(); err != nil {
		t.Fatalf("second Finalize: %v", err)
	}
	if !buf.closed {
		t.Error("underlying writer not closed")
	}

	data := buf.Bytes()
	if !bytes.HasPrefix(data, []byte{0x1a, 0x45, 0xdf, 0xa3}) {
		t.Fatalf("missing EBML magic: % x", data[:min(4, len(data))])
	}
	for _, id := range []string{CodecIDMJPEG, CodecIDLPCM} {
		if !bytes.Contains(data, []byte(id)) {
			t.Errorf("output lacks codec ID %s", id)
		}
	}
	if err := w.WriteSample(0, codec.Sample{}); err == nil {
		t.Error("WriteSample after Finalize succeeded")
	}
}

func TestUnsupportedCodec(t *testing.T) {
	tr := tracks()
	tr[0].Format.Codec = "h264"
	if err := New(&closeBuffer{}).Start(tr); err == nil {
		t.Error("Start accepted an unsupported codec")
	}
}

func TestFinalizeWithoutStart(t *testing.T) {
	buf := &closeBuffer{}
	if err := New(buf).Finalize(); err != nil {
		t.Fatal(err)
	}
	if !buf.closed {
		t.Error("writer not closed")
	}
}
