package bridge

import (
	"runtime"

	"golang.org/x/sys/cpu"

	"inferbridge/pkg/types"
)

func hostInfo() types.HostInfo {
	return types.HostInfo{
		OS:          runtime.GOOS,
		Arch:        runtime.GOARCH,
		NumCPU:      runtime.NumCPU(),
		CPUFeatures: cpuFeatures(),
	}
}

// cpuFeatures lists the SIMD extensions the quantized kernels can use.
func cpuFeatures() []string {
	var out []string
	add := func(ok bool, name string) {
		if ok {
			out = append(out, name)
		}
	}
	switch runtime.GOARCH {
	case "amd64", "386":
		add(cpu.X86.HasSSE3, "sse3")
		add(cpu.X86.HasSSSE3, "ssse3")
		add(cpu.X86.HasAVX, "avx")
		add(cpu.X86.HasAVX2, "avx2")
		add(cpu.X86.HasFMA, "fma")
		add(cpu.X86.HasAVX512F, "avx512f")
		add(cpu.X86.HasAVX512VNNI, "avx512vnni")
	case "arm64":
		add(cpu.ARM64.HasASIMD, "asimd")
		add(cpu.ARM64.HasFPHP, "fp16")
		add(cpu.ARM64.HasASIMDDP, "dotprod")
		add(cpu.ARM64.HasSVE, "sve")
	}
	if out == nil {
		out = []string{}
	}
	return out
}
