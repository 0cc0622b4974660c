// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"os"
	"strings"

	vk "github.com/devblok/vulkan"
	"github.com/gobuffalo/packr"
	"github.com/gogpu/naga"
	log "github.com/sirupsen/logrus"
	"golang.org/x/exp/mmap"

	"github.com/devblok/vkcompute/src/gfx"
	"github.com/devblok/vkcompute/src/utility/kar"
)

// Kernel path forms understood by KernelLoader.
const (
	BuiltinPrefix   = "builtin:"
	archiveSuffix   = ".kar:"
	wgslSuffix      = ".wgsl"
	kernelEntryName = "main"
)

// Kernel is a word aligned compute kernel binary.
type Kernel struct {
	Name string

	// Code is the SPIR-V binary, zero padded to a multiple of four bytes.
	Code []byte

	// SourceLen is the length of the binary before padding.
	SourceLen int
}

// Len returns the padded length of the binary.
func (k Kernel) Len() int {
	return len(k.Code)
}

// NewKernelLoader creates a loader that resolves builtin kernels from box.
func NewKernelLoader(box packr.Box) *KernelLoader {
	return &KernelLoader{builtin: box}
}

// DefaultKernelLoader resolves builtin kernels from the bundled kernels directory.
func DefaultKernelLoader() *KernelLoader {
	return NewKernelLoader(packr.NewBox("../../kernels"))
}

// KernelLoader reads compute kernels from files, kar archives
// or the bundled box. WGSL sources are compiled to SPIR-V.
type KernelLoader struct {
	builtin packr.Box
}

// Load reads the kernel at path and pads it to a word boundary.
// A kernel that cannot be read fails with ErrKernelNotFound.
func (l *KernelLoader) Load(path string) (Kernel, error) {
	raw, err := l.read(path)
	if err != nil {
		return Kernel{}, err
	}

	if strings.HasSuffix(path, wgslSuffix) {
		spirv, err := naga.Compile(string(raw))
		if err != nil {
			return Kernel{}, gfx.Mark(err, "naga.Compile("+path+")", gfx.ErrPipelineCreation)
		}
		raw = spirv
	}

	if len(raw) == 0 {
		return Kernel{}, gfx.Markf(gfx.ErrKernelNotFound, "kernel %s is empty", path)
	}

	log.WithFields(log.Fields{
		"kernel": path,
		"bytes":  len(raw),
	}).Debug("kernel loaded")

	return Kernel{
		Name:      path,
		Code:      PadWords(raw),
		SourceLen: len(raw),
	}, nil
}

func (l *KernelLoader) read(path string) ([]byte, error) {
	switch {
	case strings.HasPrefix(path, BuiltinPrefix):
		name := strings.TrimPrefix(path, BuiltinPrefix)
		data, err := l.builtin.Find(name)
		if err != nil {
			return nil, gfx.Mark(err, "builtin kernel "+name, gfx.ErrKernelNotFound)
		}
		return data, nil
	case strings.Contains(path, archiveSuffix):
		idx := strings.Index(path, archiveSuffix)
		return readArchived(path[:idx+len(archiveSuffix)-1], path[idx+len(archiveSuffix):])
	default:
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, gfx.Mark(err, "kernel "+path, gfx.ErrKernelNotFound)
		}
		return data, nil
	}
}

func readArchived(archivePath, name string) ([]byte, error) {
	r, err := mmap.Open(archivePath)
	if err != nil {
		return nil, gfx.Mark(err, "kernel archive "+archivePath, gfx.ErrKernelNotFound)
	}
	defer r.Close()

	archive, err := kar.Open(r)
	if err != nil {
		return nil, gfx.Mark(err, "kernel archive "+archivePath, gfx.ErrKernelNotFound)
	}

	data, err := archive.ReadAll(name)
	if err != nil {
		return nil, gfx.Mark(err, "kernel "+name+" in "+archivePath, gfx.ErrKernelNotFound)
	}
	return data, nil
}

// Module wraps the kernel in a shader module on device.
func (k Kernel) Module(device vk.Device) (vk.ShaderModule, error) {
	smci := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(k.Code)),
		PCode:    SliceUint32(k.Code),
	}

	var shader vk.ShaderModule
	if err := vk.Error(vk.CreateShaderModule(device, &smci, nil, &shader)); err != nil {
		return nil, gfx.Mark(err, "vk.CreateShaderModule("+k.Name+")", gfx.ErrPipelineCreation)
	}
	return shader, nil
}
