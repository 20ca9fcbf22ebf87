package producer_test

import (
	"errors"
	"testing"

	"github.com/pithecene-io/fragstream/producer"
	"github.com/pithecene-io/fragstream/streamerr"
	"github.com/pithecene-io/fragstream/types"
)

func TestSink_OnFrameForwardsInOrder(t *testing.T) {
	engine := producer.NewStubEngine()
	sink := producer.NewSink(engine)

	for i, data := range []string{"a", "bb", "ccc"} {
		if err := sink.OnFrame(t.Context(), types.Frame{Data: []byte(data), Timecode: int64(i)}); err != nil {
			t.Fatalf("OnFrame(%q) failed: %v", data, err)
		}
	}

	if len(engine.Frames) != 3 {
		t.Fatalf("engine received %d frames, want 3", len(engine.Frames))
	}
	for i, want := range []string{"a", "bb", "ccc"} {
		if string(engine.Frames[i].Data) != want || engine.Frames[i].Timecode != int64(i) {
			t.Errorf("frame %d = %+v, want %q", i, engine.Frames[i], want)
		}
	}
}

func TestSink_OnFrameRejectsEmpty(t *testing.T) {
	engine := producer.NewStubEngine()
	sink := producer.NewSink(engine)

	for _, frame := range []types.Frame{{}, {Data: []byte{}}} {
		err := sink.OnFrame(t.Context(), frame)
		if !streamerr.Is(err, streamerr.KindEmptyFrame) {
			t.Errorf("OnFrame(empty) = %v, want KindEmptyFrame", err)
		}
		if !errors.Is(err, producer.ErrEmptyFrame) {
			t.Errorf("OnFrame(empty) cause = %v, want ErrEmptyFrame", err)
		}
	}
	if engine.Calls() != 0 {
		t.Errorf("engine received %d calls, want 0", engine.Calls())
	}
}

func TestSink_EngineErrorsPropagateUnchanged(t *testing.T) {
	engine := producer.NewStubEngine()
	engine.ErrorOnPut = errors.New("engine full")
	sink := producer.NewSink(engine)

	if err := sink.OnFrame(t.Context(), types.Frame{Data: []byte("x")}); err != engine.ErrorOnPut {
		t.Errorf("OnFrame = %v, want engine error unchanged", err)
	}
	if err := sink.OnCodecPrivateData(t.Context(), []byte{1}); err != engine.ErrorOnPut {
		t.Errorf("OnCodecPrivateData = %v, want engine error unchanged", err)
	}
	if err := sink.OnFragmentMetadata(t.Context(), "k", "v", false); err != engine.ErrorOnPut {
		t.Errorf("OnFragmentMetadata = %v, want engine error unchanged", err)
	}
}

func TestSink_CodecPrivateDataAndMetadata(t *testing.T) {
	engine := producer.NewStubEngine()
	sink := producer.NewSink(engine)

	if err := sink.OnCodecPrivateData(t.Context(), []byte{0x01, 0x64}); err != nil {
		t.Fatalf("OnCodecPrivateData failed: %v", err)
	}
	if err := sink.OnCodecPrivateData(t.Context(), nil); err != nil {
		t.Fatalf("OnCodecPrivateData(nil) failed: %v", err)
	}
	if err := sink.OnFragmentMetadata(t.Context(), "camera", "front", true); err != nil {
		t.Fatalf("OnFragmentMetadata failed: %v", err)
	}

	if len(engine.CodecPrivateData) != 2 || engine.CodecPrivateData[1] != nil {
		t.Errorf("codec private data = %v, want [data, nil]", engine.CodecPrivateData)
	}
	want := types.FragmentMetadata{Name: "camera", Value: "front", Persistent: true}
	if len(engine.Metadata) != 1 || engine.Metadata[0] != want {
		t.Errorf("metadata = %+v, want %+v", engine.Metadata, want)
	}
}
