package main

import (
	"strconv"
	"strings"

	config "github.com/rcornwell/vcpu32/config/configparser"
	"github.com/rcornwell/vcpu32/emu/core"
)

// optUint looks up name among options' EqualOpt values, parsing the
// value as hexadecimal with or without a "0x" prefix.
func optUint(options []config.Option, name string, def uint32) uint32 {
	for _, o := range options {
		if !strings.EqualFold(o.Name, name) {
			continue
		}
		v := strings.TrimPrefix(strings.ToLower(o.EqualOpt), "0x")
		if n, err := strconv.ParseUint(v, 16, 32); err == nil {
			return uint32(n)
		}
	}
	return def
}

// registerConfigModels wires configparser's registration callbacks to
// mutate cfg in place as LoadConfigFile walks the model description
// file. Each component line's address field (parsed as hex by
// configparser) plays a different role per component: entry count for
// a TLB, set count for a cache, size in words for a memory region.
func registerConfigModels(cfg *core.Config) {
	noL2 := false
	config.RegisterModel("ITLB", config.TypeModel, func(addr uint16, _ string, opts []config.Option) error {
		cfg.ITlb.Entries = int(addr)
		cfg.ITlb.Latency = optUint(opts, "latency", cfg.ITlb.Latency)
		if cfg.TlbMode == core.TlbNone {
			cfg.TlbMode = core.TlbSplit
		}
		return nil
	})
	config.RegisterModel("DTLB", config.TypeModel, func(addr uint16, _ string, opts []config.Option) error {
		cfg.DTlb.Entries = int(addr)
		cfg.DTlb.Latency = optUint(opts, "latency", cfg.DTlb.Latency)
		if cfg.TlbMode == core.TlbNone {
			cfg.TlbMode = core.TlbSplit
		}
		return nil
	})

	config.RegisterModel("L1I", config.TypeModel, func(addr uint16, _ string, opts []config.Option) error {
		cfg.ICacheL1.Sets = int(addr)
		cfg.ICacheL1.Ways = int(optUint(opts, "ways", uint32(cfg.ICacheL1.Ways)))
		cfg.ICacheL1.BlockWords = int(optUint(opts, "block", uint32(cfg.ICacheL1.BlockWords)))
		cfg.ICacheL1.Latency = optUint(opts, "latency", cfg.ICacheL1.Latency)
		return nil
	})
	config.RegisterModel("L1D", config.TypeModel, func(addr uint16, _ string, opts []config.Option) error {
		cfg.DCacheL1.Sets = int(addr)
		cfg.DCacheL1.Ways = int(optUint(opts, "ways", uint32(cfg.DCacheL1.Ways)))
		cfg.DCacheL1.BlockWords = int(optUint(opts, "block", uint32(cfg.DCacheL1.BlockWords)))
		cfg.DCacheL1.Latency = optUint(opts, "latency", cfg.DCacheL1.Latency)
		return nil
	})
	config.RegisterModel("L2", config.TypeModel, func(addr uint16, _ string, opts []config.Option) error {
		cfg.CacheL2.Sets = int(addr)
		cfg.CacheL2.Ways = int(optUint(opts, "ways", uint32(cfg.CacheL2.Ways)))
		cfg.CacheL2.BlockWords = int(optUint(opts, "block", uint32(cfg.CacheL2.BlockWords)))
		cfg.CacheL2.Latency = optUint(opts, "latency", cfg.CacheL2.Latency)
		if !noL2 {
			cfg.L2Mode = core.L2Unified
		}
		return nil
	})

	config.RegisterModel("RAM", config.TypeModel, func(addr uint16, _ string, opts []config.Option) error {
		size := int(optUint(opts, "size", uint32(addr)))
		cfg.RAM.SizeWords = size
		cfg.RAM.Latency = optUint(opts, "latency", cfg.RAM.Latency)
		cfg.RAM.StartAddr = optUint(opts, "base", cfg.RAM.StartAddr)
		cfg.RAM.EndAddr = cfg.RAM.StartAddr + uint32(size)*4
		return nil
	})
	config.RegisterModel("PDC", config.TypeModel, func(addr uint16, _ string, opts []config.Option) error {
		size := int(optUint(opts, "size", uint32(addr)))
		cfg.PDC.SizeWords = size
		cfg.PDC.Latency = optUint(opts, "latency", cfg.PDC.Latency)
		cfg.PDC.StartAddr = optUint(opts, "base", cfg.PDC.StartAddr)
		cfg.PDC.EndAddr = cfg.PDC.StartAddr + uint32(size)*4
		return nil
	})
	config.RegisterModel("IO", config.TypeModel, func(addr uint16, _ string, opts []config.Option) error {
		size := int(optUint(opts, "size", uint32(addr)))
		cfg.IO.SizeWords = size
		cfg.IO.Latency = optUint(opts, "latency", cfg.IO.Latency)
		cfg.IO.StartAddr = optUint(opts, "base", cfg.IO.StartAddr)
		cfg.IO.EndAddr = cfg.IO.StartAddr + uint32(size)*4
		return nil
	})

	config.RegisterSwitch("UNIFIED", func(uint16, string, []config.Option) error {
		cfg.TlbMode = core.TlbUnified
		return nil
	})
	config.RegisterSwitch("NOL2", func(uint16, string, []config.Option) error {
		noL2 = true
		cfg.L2Mode = core.L2None
		return nil
	})
}
