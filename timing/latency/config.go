package latency

import (
	"encoding/json"
	"fmt"
	"os"
)

// TimingConfig holds execution latency values for each instruction class.
// The defaults match the classic Tomasulo teaching configuration.
type TimingConfig struct {
	// ALULatency is the execution latency for ADD, SUB and ADDI.
	// Default: 1 cycle.
	ALULatency int `json:"alu_latency"`

	// MultiplyLatency is the latency for MUL. Default: 3 cycles.
	MultiplyLatency int `json:"multiply_latency"`

	// DivideLatency is the latency for DIV. Default: 8 cycles.
	DivideLatency int `json:"divide_latency"`

	// MemoryLatency is the latency for LW and SW: one cycle of effective
	// address computation plus one memory cycle. Default: 2 cycles.
	MemoryLatency int `json:"memory_latency"`

	// BranchLatency is the latency for BEQ, BNE, BLT and BGT.
	// Default: 1 cycle.
	BranchLatency int `json:"branch_latency"`

	// JumpLatency is the latency for J and JAL. Default: 1 cycle.
	JumpLatency int `json:"jump_latency"`

	// NopLatency is the latency for NOP. Default: 1 cycle.
	NopLatency int `json:"nop_latency"`
}

// DefaultTimingConfig returns a TimingConfig with the default latencies.
func DefaultTimingConfig() *TimingConfig {
	return &TimingConfig{
		ALULatency:      1,
		MultiplyLatency: 3,
		DivideLatency:   8,
		MemoryLatency:   2,
		BranchLatency:   1,
		JumpLatency:     1,
		NopLatency:      1,
	}
}

// LoadConfig loads a TimingConfig from a JSON file.
func LoadConfig(path string) (*TimingConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read timing config file: %w", err)
	}

	config := DefaultTimingConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse timing config: %w", err)
	}

	return config, nil
}

// SaveConfig writes a TimingConfig to a JSON file.
func (c *TimingConfig) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize timing config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write timing config file: %w", err)
	}

	return nil
}

// Validate checks that all latency values are valid (> 0).
func (c *TimingConfig) Validate() error {
	if c.ALULatency <= 0 {
		return fmt.Errorf("alu_latency must be > 0")
	}
	if c.MultiplyLatency <= 0 {
		return fmt.Errorf("multiply_latency must be > 0")
	}
	if c.DivideLatency <= 0 {
		return fmt.Errorf("divide_latency must be > 0")
	}
	if c.MemoryLatency <= 0 {
		return fmt.Errorf("memory_latency must be > 0")
	}
	if c.BranchLatency <= 0 {
		return fmt.Errorf("branch_latency must be > 0")
	}
	if c.JumpLatency <= 0 {
		return fmt.Errorf("jump_latency must be > 0")
	}
	if c.NopLatency <= 0 {
		return fmt.Errorf("nop_latency must be > 0")
	}
	return nil
}

// Clone returns a copy of the TimingConfig.
func (c *TimingConfig) Clone() *TimingConfig {
	clone := *c
	return &clone
}
