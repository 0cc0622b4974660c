// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"encoding/json"
	"flag"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/devblok/vkcompute/src/core"
)

var debug = flag.Bool("vkdbg", false, "Load Vulkan validation layers")

func main() {
	flag.Parse()

	cfg := core.InstanceConfiguration{
		DebugMode:  *debug,
		Extensions: []string{},
		Layers:     []string{},
	}

	coreInstance, err := core.NewVulkanInstance(core.DefaultVulkanApplicationInfo, cfg)
	if err != nil {
		log.Fatalf("%+v", err)
	}
	defer coreInstance.Release()

	bytes, err := json.MarshalIndent(coreInstance.PhysicalDevicesInfo(), "", "  ")
	if err != nil {
		log.Fatalf("%+v", err)
	}
	fmt.Printf("%s\n", bytes)
}
