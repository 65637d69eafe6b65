// internal/pkg/bootstrap/app.go
package bootstrap

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"nexus-delivery/internal/pkg/logger"
	"nexus-delivery/internal/pkg/metrics"
	"nexus-delivery/internal/pkg/nacos"
	"nexus-delivery/internal/tracing"
)

type AppCtx struct {
	Mux    *http.ServeMux
	Nacos  *nacos.Client
	Config *Config
}

// AppInfo 包含了启动一个微服务所需的所有特定信息。
type AppInfo struct {
	ServiceName      string
	Port             int
	RegisterHandlers func(appCtx AppCtx)
	// Background 中的任务随服务启动，收到退出信号后通过 ctx 取消。
	Background []func(ctx context.Context) error
	// Cleanup 在 HTTP 服务器关闭后按注册的逆序执行。
	Cleanup []func(ctx context.Context) error
}

// Init 加载配置、初始化日志，并在配置了 Nacos 时挂上配置中心。
func Init() (*Config, *nacos.Client) {
	cfg, err := LoadConfig(getEnv("CONFIG_FILE", "configs/config.yaml"))
	if err != nil {
		logger.L().Fatal().Err(err).Msg("failed to load config")
	}
	logger.Init(cfg.App.Name, cfg.App.LogLevel)
	SetCurrentConfig(cfg)

	if cfg.Infra.Nacos.Addrs == "" {
		return cfg, nil
	}
	client, err := nacos.NewClient(cfg.Infra.Nacos.Addrs, cfg.Infra.Nacos.Namespace, cfg.Infra.Nacos.Group)
	if err != nil {
		logger.L().Fatal().Err(err).Msg("failed to initialize nacos client")
	}
	watchRemoteConfig(client, cfg.Infra.Nacos.DataID)
	return GetCurrentConfig(), client
}

// watchRemoteConfig 用配置中心的内容覆盖本地配置，并在变更时热替换。
func watchRemoteConfig(client *nacos.Client, dataID string) {
	apply := func(content string) {
		if content == "" {
			return
		}
		cfg, err := ParseConfig([]byte(content))
		if err != nil {
			logger.L().Error().Err(err).Str("data_id", dataID).Msg("ignoring invalid remote config")
			return
		}
		applyEnv(cfg)
		SetCurrentConfig(cfg)
		logger.L().Info().Str("data_id", dataID).Msg("🔄 remote config applied")
	}

	content, err := client.GetConfig(dataID)
	if err != nil {
		logger.L().Warn().Err(err).Str("data_id", dataID).Msg("⚠️ remote config unavailable, keeping local config")
	} else {
		apply(content)
	}
	if err := client.ListenConfig(dataID, apply); err != nil {
		logger.L().Warn().Err(err).Str("data_id", dataID).Msg("⚠️ failed to listen for remote config")
	}
}

// StartService 封装了通用的启动和优雅关停逻辑。
func StartService(info AppInfo, nacosClient *nacos.Client) {
	cfg := GetCurrentConfig()

	tp, err := tracing.InitTracerProvider(info.ServiceName, cfg.Infra.Jaeger.Endpoint, cfg.Infra.Jaeger.SampleRatio)
	if err != nil {
		logger.L().Fatal().Err(err).Msg("failed to initialize tracer provider")
	}

	var ip string
	if nacosClient != nil {
		if ip, err = outboundIP(); err != nil {
			logger.L().Fatal().Err(err).Msg("failed to get outbound IP address")
		}
		if err := nacosClient.RegisterServiceInstance(info.ServiceName, ip, info.Port); err != nil {
			logger.L().Fatal().Err(err).Msg("failed to register service with nacos")
		}
	}

	mux := http.NewServeMux()
	if info.RegisterHandlers != nil {
		info.RegisterHandlers(AppCtx{Mux: mux, Nacos: nacosClient, Config: cfg})
	}
	server := &http.Server{
		Addr:              ":" + strconv.Itoa(info.Port),
		Handler:           metrics.Middleware(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	bgCtx, stopBackground := context.WithCancel(context.Background())
	group, groupCtx := errgroup.WithContext(bgCtx)
	for _, task := range info.Background {
		task := task
		group.Go(func() error { return task(groupCtx) })
	}

	go func() {
		logger.L().Info().Str("service", info.ServiceName).Int("port", info.Port).Msg("🚀 listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.L().Fatal().Err(err).Str("addr", server.Addr).Msg("could not listen")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.L().Info().Str("service", info.ServiceName).Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// 关停顺序：注销 -> 停止接收请求 -> 停后台任务 -> 清理资源 -> 刷出 trace
	if nacosClient != nil {
		if err := nacosClient.DeregisterServiceInstance(info.ServiceName, ip, info.Port); err != nil {
			logger.L().Error().Err(err).Msg("error deregistering from Nacos")
		}
		nacosClient.Close()
	}
	if err := server.Shutdown(ctx); err != nil {
		logger.L().Error().Err(err).Msg("error shutting down http server")
	}
	stopBackground()
	if err := group.Wait(); err != nil {
		logger.L().Error().Err(err).Msg("background task failed")
	}
	for i := len(info.Cleanup) - 1; i >= 0; i-- {
		if err := info.Cleanup[i](ctx); err != nil {
			logger.L().Error().Err(err).Msg("cleanup failed")
		}
	}
	if err := tp.Shutdown(ctx); err != nil {
		logger.L().Error().Err(err).Msg("error shutting down tracer provider")
	}
	logger.L().Info().Str("service", info.ServiceName).Msg("gracefully shut down")
}

// outboundIP 通过一次 UDP "拨号" 得到本机对外使用的地址，不会真正发包。
func outboundIP() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", err
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String(), nil
}
