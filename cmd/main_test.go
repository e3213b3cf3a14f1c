package main

import (
	"testing"
	"time"

	"smartlift_monitor/internal/config"
)

func TestCommanderOptions_UsesCommandToken(t *testing.T) {
	cfg := &config.Config{
		Stream:  config.StreamConfig{URL: "http://feed/stream", Token: "feed-token"},
		Command: config.CommandConfig{URL: "http://ctl/commands", Token: "ctl-token", Timeout: 3 * time.Second},
	}
	opts := commanderOptions(cfg)
	if opts.Token != "ctl-token" {
		t.Fatalf("token = %q; want ctl-token", opts.Token)
	}
	if opts.URL != "http://ctl/commands" || opts.Timeout != 3*time.Second {
		t.Fatalf("unexpected options: %+v", opts)
	}
}

func TestSimulatorOptions(t *testing.T) {
	cfg := &config.Config{Simulator: config.SimulatorConfig{Enabled: false, Lifts: 3, Floors: 8}}
	if simulatorOptions(cfg) != nil {
		t.Fatal("disabled simulator must yield nil options")
	}
	cfg.Simulator.Enabled = true
	opts := simulatorOptions(cfg)
	if opts == nil || opts.Lifts != 3 || opts.Floors != 8 {
		t.Fatalf("unexpected options: %+v", opts)
	}
}
