package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/notionnext/pagecache/internal/config"
	"github.com/notionnext/pagecache/internal/logging"
)

func TestParseCLIFlagsPriority(t *testing.T) {
	t.Setenv("PAGECACHE_CONFIG", "/tmp/env.toml")

	opts, err := parseCLIFlags([]string{})
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if opts.configPath != "/tmp/env.toml" {
		t.Fatalf("应优先使用环境变量，得到 %s", opts.configPath)
	}

	opts, err = parseCLIFlags([]string{"--config", "/tmp/flag.toml"})
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if opts.configPath != "/tmp/flag.toml" {
		t.Fatalf("flag 应高于环境变量，得到 %s", opts.configPath)
	}
}

func TestRunCheckConfigSuccess(t *testing.T) {
	useBufferWriters(t)
	code := run(cliOptions{configPath: configFixture(t, "valid.toml"), checkOnly: true})
	if code != 0 {
		t.Fatalf("期望退出码 0，得到 %d", code)
	}
}

func TestRunCheckConfigFailure(t *testing.T) {
	useBufferWriters(t)
	code := run(cliOptions{configPath: configFixture(t, "missing.toml"), checkOnly: true})
	if code == 0 {
		t.Fatalf("无效配置应返回非零退出码")
	}
	if !strings.Contains(stdErrBuffer().String(), "加载配置失败") {
		t.Fatalf("错误输出应说明配置加载失败，得到 %q", stdErrBuffer().String())
	}
}

func TestRunVersionOutput(t *testing.T) {
	useBufferWriters(t)
	code := run(cliOptions{showVersion: true})
	if code != 0 {
		t.Fatalf("version 模式应成功退出，得到 %d", code)
	}
	if !strings.Contains(stdOutBuffer().String(), "pagecache") {
		t.Fatalf("version 输出应包含 pagecache 标识")
	}
}

func TestParseCLIFlagsRejectsUnknownFlag(t *testing.T) {
	if _, err := parseCLIFlags([]string{"--listen", "80"}); err == nil {
		t.Fatalf("未知参数应返回错误")
	}
}

func TestBuildServicesUsesConfiguredTiers(t *testing.T) {
	dir := t.TempDir()
	cfg, err := config.Load(writeConfigFile(t, fmt.Sprintf(`
ListenPort = 5000

[Cache]
EnableMemory = true
EnableFile = true
StoragePath = "%s"
Order = ["file", "memory"]
`, filepath.Join(dir, "storage"))))
	if err != nil {
		t.Fatalf("加载配置失败: %v", err)
	}

	deps, err := buildServices(cfg, logging.Discard())
	if err != nil {
		t.Fatalf("装配服务失败: %v", err)
	}
	t.Cleanup(func() { _ = deps.cache.Close() })

	tiers := deps.invalidation.Tiers()
	if len(tiers) != 2 || tiers[0] != config.TierFile || tiers[1] != config.TierMemory {
		t.Fatalf("缓存层顺序不符: %v", tiers)
	}
	if deps.pages == nil || deps.registry == nil {
		t.Fatalf("页面服务与指标注册表应已创建")
	}
}
