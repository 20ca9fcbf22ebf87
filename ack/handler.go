package ack

import (
	"context"
	"errors"
	"fmt"

	"github.com/pithecene-io/fragstream/lifecycle"
	"github.com/pithecene-io/fragstream/log"
	"github.com/pithecene-io/fragstream/streamerr"
	"github.com/pithecene-io/fragstream/types"
)

// Handler receives decoded ack events in stream order.
type Handler interface {
	// HandleAck is called once per decoded event. A non-nil error ends the
	// channel.
	HandleAck(ctx context.Context, ev types.AckEvent) error

	// HandleDecodeError reports a record that could not be decoded.
	// The channel keeps reading afterwards.
	HandleDecodeError(record []byte, err error)
}

// Chain dispatches to each handler in order and stops at the first error.
// Nil entries are skipped.
type Chain []Handler

// HandleAck implements Handler.
func (c Chain) HandleAck(ctx context.Context, ev types.AckEvent) error {
	for _, h := range c {
		if h == nil {
			continue
		}
		if err := h.HandleAck(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}

// HandleDecodeError implements Handler.
func (c Chain) HandleDecodeError(record []byte, err error) {
	for _, h := range c {
		if h != nil {
			h.HandleDecodeError(record, err)
		}
	}
}

// LifecycleHandler routes ack events to session lifecycle callbacks.
//
// ERROR acks become StreamError(fragmentTimecode, errorCode). They describe one
// fragment and do not end the session unless the callback itself fails.
// After the callback they are passed to OnFragmentError as a KindFragment
// error. All other types go to OnProgress when set.
type LifecycleHandler struct {
	Callbacks       lifecycle.Callbacks
	OnProgress      func(types.AckEvent)
	OnFragmentError func(error)
	Logger          *log.Logger
}

// NewLifecycleHandler creates a handler reporting to cb.
func NewLifecycleHandler(cb lifecycle.Callbacks, logger *log.Logger) *LifecycleHandler {
	return &LifecycleHandler{Callbacks: lifecycle.OrNop(cb), Logger: logger}
}

// HandleAck implements Handler.
func (h *LifecycleHandler) HandleAck(_ context.Context, ev types.AckEvent) error {
	if ev.Type.IsError() {
		if err := lifecycle.OrNop(h.Callbacks).StreamError(ev.FragmentTimecode, ev.ErrorCode); err != nil {
			return err
		}
		if h.OnFragmentError != nil {
			h.OnFragmentError(FragmentError(ev))
		}
		return nil
	}
	if h.OnProgress != nil {
		h.OnProgress(ev)
	}
	return nil
}

// HandleDecodeError implements Handler.
func (h *LifecycleHandler) HandleDecodeError(record []byte, err error) {
	if h.Logger == nil {
		return
	}
	h.Logger.Warn("undecodable ack record", map[string]any{
		"record": truncate(record),
		"error":  err.Error(),
	})
}

// ErrFragmentRejected is the cause of the errors FragmentError builds.
var ErrFragmentRejected = errors.New("fragment rejected")

// FragmentError describes an ERROR ack as a KindFragment error.
func FragmentError(ev types.AckEvent) error {
	return streamerr.New(streamerr.KindFragment, "ack.fragment",
		fmt.Errorf("%w: timecode %d, error code %d", ErrFragmentRejected, ev.FragmentTimecode, ev.ErrorCode))
}

var (
	_ Handler = Chain(nil)
	_ Handler = (*LifecycleHandler)(nil)
)
