// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package qfqrl

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config holds scheduler-wide configuration.
type Config struct {
	// SpinCPU is the CPU the dispatcher goroutine pins to. Operators must
	// ensure it is isolated from the general scheduler. A negative value
	// disables pinning (useful under the race detector, which cannot
	// observe affinity-pinned goroutines' acquire/release orderings any
	// differently, but commonly runs inside cgroups that forbid
	// SchedSetaffinity).
	SpinCPU int `toml:"spin_cpu"`
	// LinkSpeedMbps is the link-rate parameter, exposed as configuration
	// rather than a compile-time constant so tests can exercise small,
	// fast link rates.
	LinkSpeedMbps uint64 `toml:"link_speed_mbps"`
}

// DefaultConfig returns the baseline defaults: spin_cpu 2, 9800 Mbps
// link speed.
func DefaultConfig() Config {
	return Config{SpinCPU: 2, LinkSpeedMbps: linkSpeedMbps}
}

// ClassConfig holds per-class configuration.
type ClassConfig struct {
	// Weight is the class's share of the link, default 1, max 2^MAX_WSHIFT.
	// A weight of 0 creates the class disabled.
	Weight uint32
	// Lmax bounds the class's maximum packet length, default 2^MTU_SHIFT,
	// max 2^MTU_SHIFT.
	Lmax uint32
}

// DefaultClassConfig returns weight 1, lmax 2048.
func DefaultClassConfig() ClassConfig {
	return ClassConfig{Weight: 1, Lmax: uint32(lmaxMax)}
}

// ConfigError reports a configuration validation failure. It is distinct
// from SchedulerError because it never wraps a ClassID that exists yet —
// validation runs before a class is admitted.
type ConfigError struct {
	Kind  Kind
	Field string
	Value uint64
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("qfqrl: %s: invalid %s (%d)", e.Kind, e.Field, e.Value)
}

// validate checks weight and lmax against their configured bounds. A
// weight of 0 is valid (disabled class); everything else must be
// strictly positive and within its max.
func (cc ClassConfig) validate() error {
	if cc.Weight != 0 && uint64(cc.Weight) > maxWeight {
		return &ConfigError{Kind: KindInvalidWeight, Field: "weight", Value: uint64(cc.Weight)}
	}
	if cc.Lmax == 0 || uint64(cc.Lmax) > lmaxMax {
		return &ConfigError{Kind: KindInvalidLmax, Field: "lmax", Value: uint64(cc.Lmax)}
	}
	return nil
}

// LoadConfig decodes a Config from a TOML file at path, for hosts that
// keep spin_cpu and link parameters out-of-band rather than wiring a
// Config literal. Fields absent from the file keep DefaultConfig's
// values.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("qfqrl: decoding config: %w", err)
	}
	return cfg, nil
}
