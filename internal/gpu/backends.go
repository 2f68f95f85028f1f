//go:build !nogpu

package gpu

import (
	"fmt"
	"runtime"
	"slices"
	"strings"

	"github.com/gogpu/gogpu/gpu/types"
)

// platformAPIs lists the graphics APIs the window host can open per OS.
var platformAPIs = map[string][]types.GraphicsAPI{
	"linux":   {types.GraphicsAPIVulkan, types.GraphicsAPIGLES, types.GraphicsAPISoftware},
	"darwin":  {types.GraphicsAPIMetal, types.GraphicsAPISoftware},
	"windows": {types.GraphicsAPIVulkan, types.GraphicsAPIDX12, types.GraphicsAPIGLES, types.GraphicsAPISoftware},
}

// ParseBackend maps a command-line backend name to a graphics API that
// can run on this platform. The empty name and "auto" let the host pick.
func ParseBackend(name string) (types.GraphicsAPI, error) {
	return parseBackend(name, runtime.GOOS)
}

func parseBackend(name, goos string) (types.GraphicsAPI, error) {
	var api types.GraphicsAPI
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "auto":
		return types.GraphicsAPIAuto, nil
	case "vulkan", "vk":
		api = types.GraphicsAPIVulkan
	case "dx12", "d3d12":
		api = types.GraphicsAPIDX12
	case "metal":
		api = types.GraphicsAPIMetal
	case "gl", "gles", "opengl":
		api = types.GraphicsAPIGLES
	case "software", "sw":
		api = types.GraphicsAPISoftware
	default:
		return types.GraphicsAPIAuto, fmt.Errorf("%w: unknown backend %q", ErrBackendUnavailable, name)
	}
	if !slices.Contains(platformAPIs[goos], api) {
		return types.GraphicsAPIAuto, fmt.Errorf("%w: %s on %s", ErrBackendUnavailable, api, goos)
	}
	return api, nil
}

// Backends returns the names ParseBackend accepts on this platform.
func Backends() []string {
	names := []string{"auto"}
	for _, api := range platformAPIs[runtime.GOOS] {
		names = append(names, strings.ToLower(api.String()))
	}
	return names
}
