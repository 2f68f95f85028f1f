//go:build !nogpu

package gpu

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// ErrInvalidDimensions is returned when an image is requested with a zero
// width or height.
var ErrInvalidDimensions = errors.New("gpu: invalid image dimensions")

// SharedImageFormat is the texel format written by the compute stage and
// sampled by the raster stage.
const SharedImageFormat = gputypes.TextureFormatRGBA8Unorm

// SharedImage is the device-resident image that ties the compute and
// raster stages together. The compute stage writes it through
// StorageView; the raster stage reads it through SampledView.
type SharedImage struct {
	device hal.Device

	texture hal.Texture
	storage hal.TextureView
	sampled hal.TextureView

	width, height uint32
	generation    uint64

	// usage is the state the last recorded barrier left the image in.
	usage gputypes.TextureUsage
}

// NewSharedImage allocates a width×height image with storage and sampled
// usage. generation identifies the image across resizes.
func (c *Context) NewSharedImage(width, height uint32, generation uint64) (*SharedImage, error) {
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, width, height)
	}

	tex, err := c.device.CreateTexture(&hal.TextureDescriptor{
		Label:         "shared_image",
		Size:          hal.Extent3D{Width: width, Height: height, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        SharedImageFormat,
		Usage:         gputypes.TextureUsageStorageBinding | gputypes.TextureUsageTextureBinding,
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: create shared image: %w", err)
	}

	img := &SharedImage{
		device:     c.device,
		texture:    tex,
		width:      width,
		height:     height,
		generation: generation,
	}

	viewDesc := &hal.TextureViewDescriptor{
		Format:        SharedImageFormat,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	}

	viewDesc.Label = "shared_image_storage"
	if img.storage, err = c.device.CreateTextureView(tex, viewDesc); err != nil {
		img.Destroy()
		return nil, fmt.Errorf("gpu: create shared image storage view: %w", err)
	}
	viewDesc.Label = "shared_image_sampled"
	if img.sampled, err = c.device.CreateTextureView(tex, viewDesc); err != nil {
		img.Destroy()
		return nil, fmt.Errorf("gpu: create shared image sampled view: %w", err)
	}

	Logger().Debug("gpu: shared image created", "width", width, "height", height, "generation", generation)
	return img, nil
}

// Texture returns the underlying texture.
func (img *SharedImage) Texture() hal.Texture { return img.texture }

// StorageView returns the write-only view bound by the compute stage.
func (img *SharedImage) StorageView() hal.TextureView { return img.storage }

// SampledView returns the view sampled by the raster stage.
func (img *SharedImage) SampledView() hal.TextureView { return img.sampled }

// Width returns the image width in texels.
func (img *SharedImage) Width() uint32 { return img.width }

// Height returns the image height in texels.
func (img *SharedImage) Height() uint32 { return img.height }

// Generation returns the generation passed to NewSharedImage.
func (img *SharedImage) Generation() uint64 { return img.generation }

// Matches reports whether the image already has the given extent.
func (img *SharedImage) Matches(width, height uint32) bool {
	return img != nil && img.width == width && img.height == height
}

// Transition records a barrier that moves the image into usage. It is a
// no-op when the image is already there.
func (img *SharedImage) Transition(enc hal.CommandEncoder, usage gputypes.TextureUsage) {
	if img.usage == usage {
		return
	}
	enc.TransitionTextures([]hal.TextureBarrier{{
		Texture: img.texture,
		Range:   hal.TextureRange{Aspect: gputypes.TextureAspectAll},
		Usage: hal.TextureUsageTransition{
			OldUsage: img.usage,
			NewUsage: usage,
		},
	}})
	img.usage = usage
}

// Destroy releases the views and the texture. It must only be called once
// the GPU no longer reads the image; use Context.Release for images that
// may still be in flight.
func (img *SharedImage) Destroy() {
	if img.device == nil {
		return
	}
	if img.sampled != nil {
		img.device.DestroyTextureView(img.sampled)
		img.sampled = nil
	}
	if img.storage != nil {
		img.device.DestroyTextureView(img.storage)
		img.storage = nil
	}
	if img.texture != nil {
		img.device.DestroyTexture(img.texture)
		img.texture = nil
	}
	img.device = nil
}
