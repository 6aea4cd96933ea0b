package cfg

// Rationalize derives dependent settings from primary ones, the way the
// teacher's cfg/rationalize.go reconciles e.g. cache-size flags. Here: the
// write-request reservation (spec.md §4.4 step 3, "writers draw only from
// the lower two-thirds of the pool") is derived rather than configured
// directly. Rationalize does not touch DiskImagePath; the empty-path
// scratch disk is chosen by the boot command.
func (c *Config) Rationalize() {
	if c.WriteRequestReserve() < 1 {
		// NRRequest was already validated >= 3, so this cannot happen;
		// defensive only against a future relaxation of that floor.
		c.NRRequest = 3
	}
}

// WriteRequestReserve returns how many of the NRRequest slots a WRITE may
// draw from (spec.md §4.4 step 3: "for WRITE only from the lower
// two-thirds of the pool").
func (c *Config) WriteRequestReserve() int {
	return (c.NRRequest * 2) / 3
}
