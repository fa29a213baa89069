package framegraph

import (
	"context"
	"errors"
	"fmt"

	"github.com/gogpu/framegraph/media"
)

// ErrNoVideoSource is returned when a video source node has no source
// param.
var ErrNoVideoSource = errors.New("framegraph: video source has no source param")

// VideoStream yields decoded frames of a video by time code.
// Implementations map their failures to VideoError so the executor can
// distinguish temporary conditions (not ready, exhausted) from
// permanent ones (corrupt data).
type VideoStream interface {
	FrameAt(t TimeCode) (*media.Buffer, error)
	Close() error
}

// VideoOpener opens the stream named by a video source node's source
// param.
type VideoOpener func(source string) (VideoStream, error)

// OpenRawVideoStream opens a raw video container file as a VideoStream.
// It is the default opener.
func OpenRawVideoStream(source string) (VideoStream, error) {
	v, err := media.OpenRawVideo(source)
	if err != nil {
		return nil, mapVideoError(source, err)
	}
	return &rawVideoStream{source: source, v: v}, nil
}

// rawVideoStream adapts media.RawVideo to VideoStream.
type rawVideoStream struct {
	source string
	v      *media.RawVideo
}

func (s *rawVideoStream) FrameAt(t TimeCode) (*media.Buffer, error) {
	buf, err := s.v.FrameAt(float64(t))
	if err != nil {
		return nil, mapVideoError(s.source, err)
	}
	return buf, nil
}

func (s *rawVideoStream) Close() error { return s.v.Close() }

// mapVideoError classifies media package failures as VideoError codes.
func mapVideoError(source string, err error) error {
	var verr *VideoError
	if errors.As(err, &verr) {
		return err
	}
	code := VideoCorrupt
	if errors.Is(err, media.ErrFrameOutOfRange) {
		code = VideoExhausted
	}
	return &VideoError{Source: source, Code: code, Err: err}
}

// videoHandler renders video source nodes. The stream is opened on
// first use and kept open across runs; the decode cursor and any
// internal buffering live in the stream.
type videoHandler struct {
	source string
	stream VideoStream
}

func newVideoHandler() Handler { return &videoHandler{} }

func (h *videoHandler) Execute(ctx context.Context, inv *Invocation) (*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	source := inv.Node.Params["source"].Text
	if source == "" {
		return nil, ErrNoVideoSource
	}

	// Reopen when the source param changes.
	if h.stream != nil && h.source != source {
		_ = h.stream.Close()
		h.stream = nil
	}
	if h.stream == nil {
		stream, err := inv.OpenVideo(source)
		if err != nil {
			return nil, err
		}
		h.source = source
		h.stream = stream
	}

	buf, err := h.stream.FrameAt(inv.Time)
	if err != nil {
		return nil, mapVideoError(source, err)
	}

	tex, err := inv.GPU.Stager.Stage(buf.Pix, buf.Width, buf.Height, inv.GPU.TargetFormat)
	if err != nil {
		return nil, fmt.Errorf("framegraph: video %q: %w", source, err)
	}
	return newStagedFrame(tex), nil
}

// Close releases the open stream.
func (h *videoHandler) Close() error {
	if h.stream == nil {
		return nil
	}
	err := h.stream.Close()
	h.stream = nil
	return err
}
