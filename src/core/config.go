// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"os"
	"strconv"
	"time"

	"github.com/gobuffalo/envy"
	"github.com/joho/godotenv"

	"github.com/devblok/vkcompute/src/gfx"
)

// Environment keys read by EnvConfiguration.
const (
	EnvKind    = "VKCOMPUTE_KIND"
	EnvWidth   = "VKCOMPUTE_WIDTH"
	EnvHeight  = "VKCOMPUTE_HEIGHT"
	EnvSamples = "VKCOMPUTE_SAMPLES"
	EnvKernel  = "VKCOMPUTE_KERNEL"
	EnvOutput  = "VKCOMPUTE_OUTPUT"
	EnvTimeout = "VKCOMPUTE_TIMEOUT"
	EnvDebug   = "VKCOMPUTE_DEBUG"
)

// Configuration defines the configuration of a whole run
type Configuration struct {
	Instance InstanceConfiguration
	Run      gfx.RunConfiguration
}

// InstanceConfiguration is used to configure the vulkan instance
type InstanceConfiguration struct {
	// DebugMode enables the validation layer and debug reporting
	DebugMode  bool
	Extensions []string
	Layers     []string
}

// DefaultConfiguration returns the built in defaults, a fractal render.
// Dimensions and sample count are left zero so the selected variant
// can apply its own.
func DefaultConfiguration() Configuration {
	return Configuration{
		Run: gfx.RunConfiguration{
			Kind:          gfx.FractalKind,
			SubmitTimeout: gfx.DefaultSubmitTimeout,
		},
	}
}

// LoadEnvFiles loads the given dotenv files into the environment.
// Files that do not exist are skipped.
func LoadEnvFiles(files ...string) error {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return gfx.Mark(err, "godotenv.Load("+f+")", gfx.ErrConfiguration)
		}
	}
	envy.Reload()
	return nil
}

// EnvConfiguration returns the defaults overridden by the environment.
func EnvConfiguration() (Configuration, error) {
	cfg := DefaultConfiguration()

	if kind := envy.Get(EnvKind, ""); kind != "" {
		cfg.Run.Kind = gfx.Kind(kind)
	}
	cfg.Run.KernelPath = envy.Get(EnvKernel, cfg.Run.KernelPath)
	cfg.Run.OutputPath = envy.Get(EnvOutput, cfg.Run.OutputPath)

	for key, dst := range map[string]*uint32{
		EnvWidth:   &cfg.Run.Width,
		EnvHeight:  &cfg.Run.Height,
		EnvSamples: &cfg.Run.Samples,
	} {
		raw := envy.Get(key, "")
		if raw == "" {
			continue
		}
		v, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return cfg, gfx.Mark(err, key, gfx.ErrConfiguration)
		}
		*dst = uint32(v)
	}

	if raw := envy.Get(EnvTimeout, ""); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return cfg, gfx.Mark(err, EnvTimeout, gfx.ErrConfiguration)
		}
		cfg.Run.SubmitTimeout = d
	}

	if raw := envy.Get(EnvDebug, ""); raw != "" {
		debug, err := strconv.ParseBool(raw)
		if err != nil {
			return cfg, gfx.Mark(err, EnvDebug, gfx.ErrConfiguration)
		}
		cfg.Instance.DebugMode = debug
	}
	return cfg, nil
}
