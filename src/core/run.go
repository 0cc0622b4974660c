// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"image"
	"time"

	"github.com/loov/hrtime"
	log "github.com/sirupsen/logrus"

	"github.com/devblok/vkcompute/src/gfx"
	"github.com/devblok/vkcompute/src/gfx/vkr"
)

// Run performs one complete compute run of variant v: it creates the device,
// uploads the variant's buffers, builds the pipeline, records and submits the
// dispatches, then reads the output back as an image. Every acquired object is
// released before Run returns, in reverse acquisition order.
func Run(cfg Configuration, v gfx.Variant) (*image.RGBA, error) {
	return RunWithLoader(cfg, v, DefaultKernelLoader())
}

// RunWithLoader is Run with an explicit kernel loader.
func RunWithLoader(cfg Configuration, v gfx.Variant, loader *KernelLoader) (*image.RGBA, error) {
	layout := v.DescriptorLayout()
	if err := checkLayout(layout); err != nil {
		return nil, err
	}

	var release gfx.ReleaseStack
	defer release.Release()

	width, height := v.Extent()
	logger := log.WithFields(log.Fields{
		"variant": v.Name(),
		"width":   width,
		"height":  height,
	})
	started := hrtime.Now()
	stage := func(name string, since time.Duration) {
		logger.WithField("elapsed", hrtime.Since(since)).Info(name)
	}

	at := hrtime.Now()
	instance, err := NewVulkanInstance(DefaultVulkanApplicationInfo, cfg.Instance)
	if err != nil {
		return nil, err
	}
	release.Push(instance)

	dc, err := NewDeviceContext(instance)
	if err != nil {
		return nil, err
	}
	release.Push(dc)
	stage("device ready", at)

	/* Buffers */
	at = hrtime.Now()
	allocator := dc.Allocator()
	buffers := make(map[uint32]*vkr.Buffer, len(layout))
	var output *vkr.Buffer
	for _, b := range layout {
		buf, err := vkr.NewBuffer(dc.Device(), b.Size, allocator)
		if err != nil {
			return nil, err
		}
		release.Push(buf)
		if err := buf.Write(b.Contents); err != nil {
			return nil, err
		}
		buffers[b.Index] = buf
		if b.Output {
			output = buf
		}
	}
	stage("buffers uploaded", at)

	/* Pipeline */
	at = hrtime.Now()
	kernelPath := cfg.Run.KernelPath
	if kernelPath == "" {
		kernelPath = v.KernelPath()
	}
	kernel, err := loader.Load(kernelPath)
	if err != nil {
		return nil, err
	}

	pipeline, err := BuildPipeline(dc.Device(), kernel, layout, v.PushConstantSize())
	if err != nil {
		return nil, err
	}
	release.Push(pipeline)
	stage("pipeline built", at)

	/* Descriptors */
	pool, err := NewDescriptorPool(dc.Device(), gfx.PoolSizes(layout))
	if err != nil {
		return nil, err
	}
	release.Push(pool)

	binder := NewDescriptorBinder(dc.Device())
	set, err := binder.Allocate(pool, pipeline)
	if err != nil {
		return nil, err
	}
	for _, b := range layout {
		if err := binder.Bind(set, b.Index, buffers[b.Index]); err != nil {
			return nil, err
		}
	}

	/* Record */
	recorder, err := NewCommandRecorder(dc, pipeline, set)
	if err != nil {
		return nil, err
	}
	release.Push(recorder)

	if err := recorder.Begin(); err != nil {
		return nil, err
	}
	if err := v.RecordDispatches(recorder); err != nil {
		return nil, err
	}
	if err := recorder.End(); err != nil {
		return nil, err
	}
	logger.WithField("dispatches", recorder.Dispatches()).Debug("command buffer recorded")

	/* Submit */
	at = hrtime.Now()
	if err := NewSubmitter(dc, cfg.Run.SubmitTimeout).Submit(recorder); err != nil {
		return nil, err
	}
	stage("submission complete", at)

	/* Readback */
	img, err := ExtractImage(output, width, height, v.OutputScaleFactor())
	if err != nil {
		return nil, err
	}
	v.PostProcess(img)

	stage("run finished", started)
	return img, nil
}
