// Package dummy provides a fully simulated platform: every component type
// behaves like its hardware counterpart but holds state in memory. It backs
// tests and lets controller logic be developed on a workstation before it
// ever touches a device.
package dummy

import (
	"github.com/joshuasello/mycelium-iot/platform"
)

// Default returns a registry with every simulated component type
// registered. The led and motor tags are aliases of toggle, matching the
// usual wiring of single-pin actuators.
func Default() *platform.Registry {
	registry := platform.NewRegistry()

	// Registration of built-in factories cannot collide
	must(registry.Register("toggle", NewToggle))
	must(registry.Alias("led", "toggle"))
	must(registry.Alias("motor", "toggle"))
	must(registry.Register("switch", NewSwitch))
	must(registry.Register("servo", NewServo))
	must(registry.Register("ultrasonic", NewUltrasonic))

	return registry
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}
