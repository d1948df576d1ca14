package ai

import (
	"os"
	"runtime"
)

// Detector reports the available accelerator, if any.
type Detector func() (name string, ok bool)

// devices maps device nodes to the accelerator they indicate.
var devices = []struct{ path, name string }{
	{"/dev/nvidiactl", "cuda"},
	{"/dev/nvidia0", "cuda"},
	{"/dev/kfd", "rocm"},
	{"/dev/dri/renderD128", "vulkan"},
}

// DetectAccelerator looks for GPU device nodes or Apple silicon.
func DetectAccelerator() (string, bool) {
	if runtime.GOOS == "darwin" && runtime.GOARCH == "arm64" {
		return "metal", true
	}
	for _, d := range devices {
		if _, err := os.Stat(d.path); err == nil {
			return d.name, true
		}
	}
	return "", false
}
