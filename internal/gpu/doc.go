//go:build !nogpu

// Package gpu owns the device, the queue and the submission chain shared by
// every render stage.
//
// A Context wraps the device and queue that the window host opened together
// with its swapchain. Submit appends a command buffer after the previous
// submission and returns a Token; Wait and Done answer whether a token has
// completed, and Reclaim frees the command buffers and deferred releases
// whose tokens the queue has passed.
//
// SharedImage is the storage texture the compute stage writes and the
// raster stage samples. It is recreated with the surface extent.
//
// Buffers the CPU writes every frame are created mappable and filled with
// WriteMapped. Device-local buffers are filled by CopyToBuffer from a
// staging buffer inside a command encoder, usually one handed out by Upload.
//
// Shaders are WGSL sources compiled by naga at pipeline creation.
package gpu
