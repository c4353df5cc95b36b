// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package halwgpu

import (
	"fmt"

	"github.com/gogpu/naga"
	whal "github.com/gogpu/wgpu/hal"
)

// CompileComputeShader compiles WGSL source to SPIR-V and creates a
// shader module on the device, for callers recording compute work
// directly against the wgpu encoder (via Device.Raw).
func (d *Device) CompileComputeShader(label, wgsl string) (whal.ShaderModule, error) {
	spirv, err := compileWGSL(wgsl)
	if err != nil {
		return nil, fmt.Errorf("halwgpu: compile %q: %w", label, err)
	}
	module, err := d.raw.CreateShaderModule(&whal.ShaderModuleDescriptor{
		Label:  label,
		Source: whal.ShaderSource{SPIRV: spirv},
	})
	if err != nil {
		return nil, fmt.Errorf("halwgpu: shader module %q: %w", label, err)
	}
	return module, nil
}

// compileWGSL lowers WGSL to SPIR-V words. SPIR-V is little-endian
// 32-bit words.
func compileWGSL(wgsl string) ([]uint32, error) {
	raw, err := naga.Compile(wgsl)
	if err != nil {
		return nil, err
	}
	if len(raw)%4 != 0 {
		return nil, fmt.Errorf("SPIR-V blob length %d not word aligned", len(raw))
	}
	words := make([]uint32, len(raw)/4)
	for i := range words {
		words[i] = uint32(raw[i*4]) |
			uint32(raw[i*4+1])<<8 |
			uint32(raw[i*4+2])<<16 |
			uint32(raw[i*4+3])<<24
	}
	return words, nil
}
