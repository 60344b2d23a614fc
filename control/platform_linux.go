//go:build linux

// control/platform_linux.go
// Author: momentics <momentics@gmail.com>
//
// Linux platform probes.

package control

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// RegisterPlatformProbes registers CPU, page size and kernel release probes.
func RegisterPlatformProbes(dp *DebugProbes) {
	dp.RegisterProbe("platform.os", func() any {
		return runtime.GOOS
	})
	dp.RegisterProbe("platform.cpus", func() any {
		return runtime.NumCPU()
	})
	dp.RegisterProbe("platform.pagesize", func() any {
		return unix.Getpagesize()
	})
	dp.RegisterProbe("platform.kernel", func() any {
		var u unix.Utsname
		if err := unix.Uname(&u); err != nil {
			return ""
		}
		return unix.ByteSliceToString(u.Release[:])
	})
}
