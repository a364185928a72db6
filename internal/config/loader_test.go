package config

import "testing"

func TestLoadRejectsInvalidDuration(t *testing.T) {
	cfg := `
LogLevel = "info"
InitialBackoff = "boom"

[Cache]
EnableMemory = true
`
	path := writeTempConfig(t, cfg)
	if _, err := Load(path); err == nil {
		t.Fatalf("无效 Duration 应失败")
	}
}

func TestLoadAcceptsCommaSeparatedOrder(t *testing.T) {
	cfg := `
[Cache]
EnableMemory = true
EnableFile = true
StoragePath = "./data"
Order = "file,memory"
`
	path := writeTempConfig(t, cfg)
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load 返回错误: %v", err)
	}
	tiers := loaded.Cache.EnabledTiers()
	if len(tiers) != 2 || tiers[0] != TierFile {
		t.Fatalf("逗号分隔的 Order 应被解析，得到 %v", tiers)
	}
}
