package regmach

// Limits bounds translator resource usage. The zero value is not usable;
// use DefaultLimits for sane defaults.
type Limits struct {
	// MaxRegisters bounds the number of registers (locals + dynamic
	// temporaries) a single function may use.
	MaxRegisters int
	// MaxInstructions bounds the number of Instr slots a single
	// function's compiled code may occupy.
	MaxInstructions int
	// InitialFuel seeds the executor's fuel counter. Zero disables fuel
	// metering (ConsumeFuel instructions become no-ops).
	InitialFuel uint64
}

// DefaultLimits returns the limits used when none are supplied.
func DefaultLimits() Limits {
	return Limits{
		MaxRegisters:    1 << 15, // registers are 16-bit signed; leave headroom for constants
		MaxInstructions: 1 << 20,
		InitialFuel:     0,
	}
}
