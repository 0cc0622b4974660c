// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"flag"
	"os"
	"runtime/pprof"
	"runtime/trace"

	log "github.com/sirupsen/logrus"

	"github.com/devblok/vkcompute/src/core"
	"github.com/devblok/vkcompute/src/gfx"
	"github.com/devblok/vkcompute/src/gfx/raster"
	"github.com/devblok/vkcompute/src/variant"
)

func main() {
	if err := core.LoadEnvFiles(".env"); err != nil {
		log.Fatalf("%+v", err)
	}
	cfg, err := core.EnvConfiguration()
	if err != nil {
		log.Fatalf("%+v", err)
	}

	var kind string
	flag.StringVar(&kind, "kind", string(cfg.Run.Kind), "Workload to run, fractal or pathtracer")
	width := flag.Uint("width", uint(cfg.Run.Width), "Output width, 0 derives it from height for the path tracer")
	height := flag.Uint("height", uint(cfg.Run.Height), "Output height")
	samples := flag.Uint("spp", uint(cfg.Run.Samples), "Samples per pixel, path tracer only")
	flag.StringVar(&cfg.Run.KernelPath, "kernel", cfg.Run.KernelPath, "Kernel to load: file.spv, file.wgsl, archive.kar:name or builtin:name")
	flag.StringVar(&cfg.Run.OutputPath, "o", cfg.Run.OutputPath, "Output image, png, bmp or tiff")
	flag.DurationVar(&cfg.Run.SubmitTimeout, "timeout", cfg.Run.SubmitTimeout, "Bound on the wait for the GPU")
	flag.BoolVar(&cfg.Instance.DebugMode, "vkdbg", cfg.Instance.DebugMode, "Load Vulkan validation layers")
	verbose := flag.Bool("v", false, "Verbose logging")
	cpuProfile := flag.String("cpuprof", "", "Profile CPU usage to file")
	traceProfile := flag.String("trace", "", "Trace output for profiling")
	flag.Parse()

	if *verbose {
		log.SetLevel(log.DebugLevel)
	}

	cfg.Run.Kind = gfx.Kind(kind)
	cfg.Run.Width = uint32(*width)
	cfg.Run.Height = uint32(*height)
	cfg.Run.Samples = uint32(*samples)
	if cfg.Run.OutputPath == "" {
		cfg.Run.OutputPath = variant.DefaultOutputPath(cfg.Run.Kind)
	}

	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			log.Fatal(err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			log.Fatal(err)
		}
		defer pprof.StopCPUProfile()
	}

	if *traceProfile != "" {
		f, err := os.Create(*traceProfile)
		if err != nil {
			log.Fatal(err)
		}
		if err := trace.Start(f); err != nil {
			log.Fatal(err)
		}
		defer trace.Stop()
	}

	if err := run(cfg); err != nil {
		log.Errorf("%+v", err)
		pprof.StopCPUProfile()
		trace.Stop()
		os.Exit(1)
	}
}

func run(cfg core.Configuration) error {
	v, err := variant.New(cfg.Run)
	if err != nil {
		return err
	}

	img, err := core.Run(cfg, v)
	if err != nil {
		return err
	}

	if err := raster.WriteFile(cfg.Run.OutputPath, img); err != nil {
		return err
	}
	log.WithField("path", cfg.Run.OutputPath).Info("image written")
	return nil
}
