package streamerr

import (
	"errors"
	"fmt"
	"io"
	"testing"
)

func TestError_Format(t *testing.T) {
	err := New(KindConnection, "socket.dial", io.ErrUnexpectedEOF)
	want := "connection error: socket.dial: unexpected EOF"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}

	bare := New(KindEmptyFrame, "producer.on_frame", nil)
	if bare.Error() != "empty_frame error: producer.on_frame" {
		t.Errorf("Error() = %q", bare.Error())
	}
}

func TestError_UnwrapPreservesCause(t *testing.T) {
	err := fmt.Errorf("session: %w", New(KindIO, "conn.write", io.ErrClosedPipe))
	if !errors.Is(err, io.ErrClosedPipe) {
		t.Error("expected wrapped cause to be reachable via errors.Is")
	}
	if !Is(err, KindIO) {
		t.Error("expected Is(err, KindIO) through fmt wrapping")
	}
	if Is(err, KindDecode) {
		t.Error("Is(err, KindDecode) = true, want false")
	}
}

func TestIsFatal(t *testing.T) {
	tests := []struct {
		kind Kind
		want bool
	}{
		{KindEncoding, false},
		{KindConnection, true},
		{KindDecode, false},
		{KindFragment, false},
		{KindEmptyFrame, false},
		{KindCallback, true},
		{KindIO, true},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			if got := IsFatal(New(tt.kind, "op", nil)); got != tt.want {
				t.Errorf("IsFatal(%s) = %v, want %v", tt.kind, got, tt.want)
			}
		})
	}
	if IsFatal(errors.New("plain")) {
		t.Error("plain errors must not be classified fatal")
	}
}

func TestKindOf(t *testing.T) {
	if _, ok := KindOf(errors.New("plain")); ok {
		t.Error("KindOf(plain) reported ok")
	}
	k, ok := KindOf(New(KindFragment, "ack", nil))
	if !ok || k != KindFragment {
		t.Errorf("KindOf = %v, %v; want fragment, true", k, ok)
	}
	if Kind(99).String() != "kind(99)" {
		t.Errorf("unknown kind String() = %q", Kind(99).String())
	}
}
