//go:build !linux

// control/platform_other.go
// Author: momentics <momentics@gmail.com>

package control

import (
	"os"
	"runtime"
)

// RegisterPlatformProbes registers the portable probes.
func RegisterPlatformProbes(dp *DebugProbes) {
	dp.RegisterProbe("platform.os", func() any {
		return runtime.GOOS
	})
	dp.RegisterProbe("platform.cpus", func() any {
		return runtime.NumCPU()
	})
	dp.RegisterProbe("platform.pagesize", func() any {
		return os.Getpagesize()
	})
}
