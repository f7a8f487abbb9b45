// Package config holds the simulator configuration and reads and writes
// it as JSON or YAML.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/sarchlab/mmixsim/emu"
	"github.com/sarchlab/mmixsim/fpu"
	"github.com/sarchlab/mmixsim/mem"
	"github.com/sarchlab/mmixsim/mem/cache"
	"github.com/sarchlab/mmixsim/mem/mmu"
	"github.com/sarchlab/mmixsim/mem/tc"
)

// Translation modes.
const (
	// TranslationPageMap maps pages explicitly; loaders map what they load.
	TranslationPageMap = "pagemap"
	// TranslationRV walks the page tables described by rV.
	TranslationRV = "rv"
)

// Config holds the simulator configuration.
type Config struct {
	// MemorySize is the physical memory size in bytes.
	// Default: 64 MiB.
	MemorySize uint64 `json:"memory_size" yaml:"memory_size"`

	// PageShift is log2 of the page size used by the page map.
	// Default: 13 (8 KiB pages).
	PageShift uint `json:"page_shift" yaml:"page_shift"`

	// Translation selects "pagemap" or "rv".
	Translation string `json:"translation" yaml:"translation"`

	// IC and DC are the statistics cache geometries.
	IC cache.Config `json:"ic" yaml:"ic"`
	DC cache.Config `json:"dc" yaml:"dc"`

	// ITC and DTC are the translation cache geometries.
	ITC tc.Config `json:"itc" yaml:"itc"`
	DTC tc.Config `json:"dtc" yaml:"dtc"`

	// RoundingMode is the initial rounding mode: near, off, up or down.
	RoundingMode string `json:"rounding_mode" yaml:"rounding_mode"`

	// GlobalThreshold is the initial rG.
	// Default: 255.
	GlobalThreshold int `json:"global_threshold" yaml:"global_threshold"`

	// BranchPenalty is the cost in cycles of a mispredicted branch.
	// Default: 2.
	BranchPenalty uint64 `json:"branch_penalty" yaml:"branch_penalty"`

	// LoadAddress is where raw images are placed and start executing.
	LoadAddress uint64 `json:"load_address" yaml:"load_address"`

	// TraceOutput, when set, is the file traced instructions stream to.
	TraceOutput string `json:"trace_output,omitempty" yaml:"trace_output,omitempty"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		MemorySize:      mem.DefaultSize,
		PageShift:       mmu.DefaultPageShift,
		Translation:     TranslationPageMap,
		IC:              cache.DefaultICConfig(),
		DC:              cache.DefaultDCConfig(),
		ITC:             tc.DefaultConfig(),
		DTC:             tc.DefaultConfig(),
		RoundingMode:    fpu.RoundNear.String(),
		GlobalThreshold: emu.DefaultGlobalThreshold,
		BranchPenalty:   emu.DefaultBranchPenalty,
	}
}

type format int

const (
	formatJSON format = iota
	formatYAML
)

func formatOf(path string) format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return formatYAML
	}
	return formatJSON
}

// Load reads a configuration file. Fields missing from the file keep their
// default values. Files ending in .yaml or .yml are YAML, others JSON.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	switch formatOf(path) {
	case formatYAML:
		err = yaml.Unmarshal(data, config)
	default:
		err = json.Unmarshal(data, config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// Save writes the configuration to path in the format its extension
// selects.
func (c *Config) Save(path string) error {
	var (
		data []byte
		err  error
	)
	switch formatOf(path) {
	case formatYAML:
		data, err = yaml.Marshal(c)
	default:
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks that the configuration describes a machine that can be
// built.
func (c *Config) Validate() error {
	if c.MemorySize == 0 || c.MemorySize%mem.FrameSize != 0 {
		return fmt.Errorf("memory_size must be a positive multiple of %d", mem.FrameSize)
	}
	if c.PageShift < 13 || c.PageShift > 48 {
		return fmt.Errorf("page_shift must be in 13..48")
	}
	if c.Translation != TranslationPageMap && c.Translation != TranslationRV {
		return fmt.Errorf("translation must be %q or %q", TranslationPageMap, TranslationRV)
	}
	for name, cc := range map[string]cache.Config{"ic": c.IC, "dc": c.DC} {
		if err := validateCache(cc); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	for name, tcc := range map[string]tc.Config{"itc": c.ITC, "dtc": c.DTC} {
		if tcc.Sets <= 0 || tcc.Ways <= 0 {
			return fmt.Errorf("%s: sets and ways must be > 0", name)
		}
	}
	if _, err := c.Rounding(); err != nil {
		return err
	}
	if c.GlobalThreshold < 32 || c.GlobalThreshold > 255 {
		return fmt.Errorf("global_threshold must be in 32..255")
	}
	if c.LoadAddress%4 != 0 {
		return fmt.Errorf("load_address must be tetra-aligned")
	}
	return nil
}

func validateCache(c cache.Config) error {
	if c.Size <= 0 || c.Associativity <= 0 || c.BlockSize <= 0 {
		return fmt.Errorf("size, associativity and block_size must be > 0")
	}
	if c.BlockSize&(c.BlockSize-1) != 0 {
		return fmt.Errorf("block_size must be a power of two")
	}
	if c.Size%(c.Associativity*c.BlockSize) != 0 {
		return fmt.Errorf("size must be a multiple of associativity*block_size")
	}
	return nil
}

// Rounding parses RoundingMode.
func (c *Config) Rounding() (fpu.RoundingMode, error) {
	for _, m := range []fpu.RoundingMode{fpu.RoundNear, fpu.RoundOff, fpu.RoundUp, fpu.RoundDown} {
		if strings.EqualFold(c.RoundingMode, m.String()) {
			return m, nil
		}
	}
	return 0, fmt.Errorf("rounding_mode must be near, off, up or down, got %q", c.RoundingMode)
}

// Clone returns a deep copy of the Config.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// EmulatorOptions returns the options that build the configured machine.
func (c *Config) EmulatorOptions() ([]emu.EmulatorOption, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	mode, _ := c.Rounding()

	phys := mem.NewPhysical(c.MemorySize)
	opts := []emu.EmulatorOption{
		emu.WithMemory(phys),
		emu.WithMMUOptions(
			mmu.WithIC(c.IC),
			mmu.WithDC(c.DC),
			mmu.WithITC(c.ITC),
			mmu.WithDTC(c.DTC),
		),
		emu.WithRoundingMode(mode),
		emu.WithGlobalThreshold(c.GlobalThreshold),
		emu.WithBranchPenalty(c.BranchPenalty),
	}
	if c.Translation == TranslationRV {
		opts = append(opts, emu.WithRVTranslation())
	} else {
		opts = append(opts, emu.WithPageMap(mmu.NewPageMap(c.PageShift, c.MemorySize)))
	}
	return opts, nil
}
