// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package qfqrl

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestClassConfigValidateWeightBounds(t *testing.T) {
	cc := DefaultClassConfig()
	cc.Weight = 0 // disabled is valid
	if err := cc.validate(); err != nil {
		t.Fatalf("weight 0 should be valid: %v", err)
	}
	cc.Weight = uint32(maxWeight) + 1
	if err := cc.validate(); !IsKind(err, KindInvalidWeight) {
		t.Fatalf("weight over max: got %v, want KindInvalidWeight", err)
	}
}

func TestClassConfigValidateLmaxBounds(t *testing.T) {
	cc := DefaultClassConfig()
	cc.Lmax = 0
	if err := cc.validate(); !IsKind(err, KindInvalidLmax) {
		t.Fatalf("lmax 0: got %v, want KindInvalidLmax", err)
	}
	cc.Lmax = uint32(lmaxMax) + 1
	if err := cc.validate(); !IsKind(err, KindInvalidLmax) {
		t.Fatalf("lmax over max: got %v, want KindInvalidLmax", err)
	}
}

func TestDefaultConfigValues(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.SpinCPU != 2 {
		t.Fatalf("DefaultConfig SpinCPU: got %d, want 2", cfg.SpinCPU)
	}
	if cfg.LinkSpeedMbps != linkSpeedMbps {
		t.Fatalf("DefaultConfig LinkSpeedMbps: got %d, want %d", cfg.LinkSpeedMbps, linkSpeedMbps)
	}
}

func TestLoadConfigRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "qfqrl.toml")
	body := "spin_cpu = 3\nlink_speed_mbps = 1000\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.SpinCPU != 3 || cfg.LinkSpeedMbps != 1000 {
		t.Fatalf("LoadConfig: got %+v, want {SpinCPU:3 LinkSpeedMbps:1000}", cfg)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig("/nonexistent/qfqrl.toml"); err == nil {
		t.Fatal("LoadConfig on a missing file should return an error")
	}
}

func TestLoadConfigPartialKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "partial.toml")
	if err := os.WriteFile(path, []byte("spin_cpu = 5\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.SpinCPU != 5 {
		t.Fatalf("SpinCPU: got %d, want 5", cfg.SpinCPU)
	}
	if cfg.LinkSpeedMbps != linkSpeedMbps {
		t.Fatalf("LinkSpeedMbps should keep the default when absent: got %d, want %d", cfg.LinkSpeedMbps, linkSpeedMbps)
	}
}

// TestConfigLinkSpeedMbpsReachesDispatcher guards against LinkSpeedMbps
// becoming a config field that round-trips through TOML but never changes
// scheduling behavior: a dispatcher built from a slower link should drain
// idle virtual time more slowly than one built at the default speed.
func TestConfigLinkSpeedMbpsReachesDispatcher(t *testing.T) {
	fast := newDispatcher(Config{SpinCPU: -1, LinkSpeedMbps: linkSpeedMbps}, nil, &SchedulerStats{})
	slow := newDispatcher(Config{SpinCPU: -1, LinkSpeedMbps: linkSpeedMbps / 10}, nil, &SchedulerStats{})

	t0 := time.Unix(0, 0)
	fast.vt.update(t0, true)
	slow.vt.update(t0, true)

	t1 := t0.Add(time.Second)
	fast.vt.update(t1, true)
	slow.vt.update(t1, true)

	if slow.vt.v == 0 || fast.vt.v == 0 {
		t.Fatal("both dispatchers should drain V while idle")
	}
	if slow.vt.v >= fast.vt.v {
		t.Fatalf("a 10x slower configured link should drain V more slowly: slow=%d fast=%d", slow.vt.v, fast.vt.v)
	}
}
