package observability

import (
	"os"
	"strings"

	"github.com/grafana/pyroscope-go"

	"video-assembly-service/pkg/config"
	"video-assembly-service/pkg/logger"
)

// serverAddress 配置优先，其次 PYROSCOPE_SERVER_ADDRESS
func serverAddress(cfg config.ProfilingConfig) string {
	if v := strings.TrimSpace(cfg.ServerAddress); v != "" {
		return v
	}
	return strings.TrimSpace(os.Getenv("PYROSCOPE_SERVER_ADDRESS"))
}

// StartProfiling 启动持续性能分析，返回停止函数；未启用或启动失败时返回空操作
func StartProfiling(appName string, cfg config.ProfilingConfig) func() {
	addr := serverAddress(cfg)
	if !cfg.Enabled || addr == "" {
		return func() {}
	}
	profiler, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: appName,
		ServerAddress:   addr,
		Tags:            map[string]string{"hostname": hostname()},
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocObjects,
			pyroscope.ProfileAllocSpace,
			pyroscope.ProfileInuseObjects,
			pyroscope.ProfileInuseSpace,
			pyroscope.ProfileGoroutines,
		},
	})
	if err != nil {
		logger.Warnf("pyroscope start failed address=%s error=%v", addr, err)
		return func() {}
	}
	logger.Infof("pyroscope profiling enabled address=%s app=%s", addr, appName)
	return func() {
		if err := profiler.Stop(); err != nil {
			logger.Warnf("pyroscope stop failed: %v", err)
		}
	}
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return h
}
