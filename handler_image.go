package framegraph

import (
	"context"
	"errors"
	"fmt"

	"github.com/gogpu/framegraph/media"
)

// ErrNoImageSource is returned when an image source node has neither a
// source path nor inline data.
var ErrNoImageSource = errors.New("framegraph: image source has no source or data param")

// imageHandler renders image source nodes: decode a still image, stage
// it to the GPU. The decoded CPU pixels are memoized per node so a
// downstream-only edit that happens to miss the output cache does not
// re-decode the file.
type imageHandler struct {
	srcKey  string
	decoded *media.Buffer
}

func newImageHandler() Handler { return &imageHandler{} }

func (h *imageHandler) Execute(ctx context.Context, inv *Invocation) (*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	buf, err := h.decode(inv.Node)
	if err != nil {
		return nil, err
	}

	tex, err := inv.GPU.Stager.Stage(buf.Pix, buf.Width, buf.Height, inv.GPU.TargetFormat)
	if err != nil {
		return nil, err
	}
	return newStagedFrame(tex), nil
}

func (h *imageHandler) decode(node *Node) (*media.Buffer, error) {
	var key string
	switch {
	case node.Params["source"].Text != "":
		key = "file:" + node.Params["source"].Text
	case node.Params["data"].Text != "":
		key = "data:" + node.Params["data"].Text
	default:
		return nil, ErrNoImageSource
	}

	if h.decoded != nil && h.srcKey == key {
		return h.decoded, nil
	}

	var (
		buf *media.Buffer
		err error
	)
	if src := node.Params["source"].Text; src != "" {
		buf, err = media.Load(src)
		if err != nil {
			return nil, fmt.Errorf("framegraph: image source %q: %w", src, err)
		}
	} else {
		buf, err = media.DecodeBytes([]byte(node.Params["data"].Text))
		if err != nil {
			return nil, fmt.Errorf("framegraph: inline image data: %w", err)
		}
	}

	h.srcKey = key
	h.decoded = buf
	return buf, nil
}
