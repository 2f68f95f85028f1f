//go:build !nogpu

package surface

import (
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

func TestChoosePresentModeFallback(t *testing.T) {
	modes := []hal.PresentMode{hal.PresentModeFifo}
	if got := choosePresentMode(modes, hal.PresentModeImmediate); got != hal.PresentModeFifo {
		t.Errorf("got %v, want Fifo", got)
	}
	if got := choosePresentMode(modes, gputypes.PresentModeUndefined); got != hal.PresentModeFifo {
		t.Errorf("got %v, want Fifo", got)
	}
}

func TestChooseFormatFallback(t *testing.T) {
	formats := []gputypes.TextureFormat{gputypes.TextureFormatRGBA16Float}
	if got := chooseFormat(formats); got != gputypes.TextureFormatRGBA16Float {
		t.Errorf("got %v, want the only offered format", got)
	}
}

func TestChooseAlphaMode(t *testing.T) {
	if got := chooseAlphaMode(nil); got != gputypes.CompositeAlphaModeOpaque {
		t.Errorf("no modes: got %v, want Opaque", got)
	}
	modes := []hal.CompositeAlphaMode{gputypes.CompositeAlphaModeInherit}
	if got := chooseAlphaMode(modes); got != gputypes.CompositeAlphaModeInherit {
		t.Errorf("got %v, want the only offered mode", got)
	}
}
