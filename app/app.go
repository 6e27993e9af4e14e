package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"video-assembly-service/ddd/adapter/component"
	grpcadapter "video-assembly-service/ddd/adapter/grpc"
	httpadapter "video-assembly-service/ddd/adapter/http"
	appsvc "video-assembly-service/ddd/application/app"
	"video-assembly-service/ddd/domain/gateway"
	"video-assembly-service/ddd/domain/port"
	"video-assembly-service/ddd/domain/repo"
	"video-assembly-service/ddd/domain/service"
	"video-assembly-service/ddd/infrastructure/artifact"
	dbpersistence "video-assembly-service/ddd/infrastructure/database/persistence"
	"video-assembly-service/ddd/infrastructure/executor"
	"video-assembly-service/ddd/infrastructure/persistence"
	"video-assembly-service/ddd/infrastructure/progress"
	"video-assembly-service/ddd/infrastructure/storage"
	"video-assembly-service/ddd/infrastructure/worker"
	"video-assembly-service/internal/resource"
	"video-assembly-service/pkg/config"
	"video-assembly-service/pkg/logger"
	"video-assembly-service/pkg/registry"
	"video-assembly-service/pkg/task"
)

const (
	ServiceName     = "video-assembly-service"
	shutdownTimeout = 5 * time.Second
)

// LoadConfig 加载配置并设置为全局配置，失败时退出进程
func LoadConfig() *config.Config {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("[ERROR] Failed to load config (%s): %v\n", cfgPath, err)
		os.Exit(1)
	}
	config.SetGlobalConfig(cfg)
	fmt.Printf("[STARTUP] Config loaded: %s\n", cfgPath)
	return cfg
}

// optionalResources 按配置启用的外部依赖
type optionalResources struct {
	redis *resource.RedisResource
	kafka *resource.KafkaResource
	minio *resource.MinioResource
	mysql *resource.MysqlResource
}

func (r optionalResources) integrations() map[string]bool {
	return map[string]bool{
		"redis": r.redis != nil,
		"kafka": r.kafka != nil,
		"minio": r.minio != nil,
		"mysql": r.mysql != nil,
	}
}

func Run(cfg *config.Config) {
	if cfg == nil {
		cfg = LoadConfig()
	}

	// 立即初始化日志服务（确保所有后续组件都能使用正确的日志器）
	logService := logger.NewLogger(cfg)
	logger.SetGlobalLogger(logService)
	defer logService.Close()

	logger.Infof("Video assembly service starting version=%s mode=%s", "1.0.0", cfg.Server.Mode)

	// FFmpeg/ffprobe 缺失时直接在启动阶段失败
	for _, bin := range []string{cfg.Transcode.FFmpeg.BinaryPath, cfg.Transcode.FFmpeg.ProbePath} {
		if _, err := exec.LookPath(bin); err != nil {
			logger.Fatal(fmt.Sprintf("binary not found, please install or set transcode.ffmpeg.binary_path/probe_path binary=%s error=%s", bin, err.Error()))
		}
	}

	// 资源管理器初始化
	resources := resource.NewManager()
	opt := registerResources(cfg, resources)
	if err := resources.OpenAll(); err != nil {
		logger.Fatal(fmt.Sprintf("Failed to open resources error=%v", err))
	}
	defer resources.CloseAll()

	locator, err := artifact.NewLocalStore(cfg.Storage.ContentRoot)
	if err != nil {
		logger.Fatal(fmt.Sprintf("Failed to prepare content root error=%v", err))
	}
	statusRepo, err := persistence.NewStatusFileRepository(cfg.Storage.StatusDirectory())
	if err != nil {
		logger.Fatal(fmt.Sprintf("Failed to prepare status dir error=%v", err))
	}
	ffExecutor := executor.NewFFmpegExecutor(cfg)

	sinks, archive := buildSinks(cfg, opt)
	store := service.NewJobStatusStore(statusRepo, locator, ffExecutor, service.StatusStoreOptions{
		MinOutputBytes: cfg.Assembly.MinOutputBytes,
		Sinks:          sinks,
	})
	if cfg.Storage.PurgeStatusOnStart {
		n, err := store.PurgeAll(context.Background())
		if err != nil {
			logger.Warnf("Purge status records failed error=%v", err)
		} else {
			logger.Infof("Purged %d status records at startup", n)
		}
	}

	var storageGateway gateway.StorageGateway
	if opt.minio != nil {
		storageGateway = storage.NewMinioStorage(opt.minio)
	}

	assemblyComponent, err := worker.NewAssemblyComponent(worker.Dependencies{
		Config:  cfg,
		Store:   store,
		Locator: locator,
		Encoder: ffExecutor,
		Prober:  ffExecutor,
		Storage: storageGateway,
	})
	if err != nil {
		logger.Fatal(fmt.Sprintf("Failed to build assembly worker error=%v", err))
	}
	assemblyWorker := assemblyComponent.Worker()

	assemblyApp := appsvc.NewAssemblyApp(store, locator, assemblyWorker, archive)
	workerApp := appsvc.NewWorkerApp(assemblyWorker, store, appsvc.HealthInfo{
		FFmpegAvailable:   true,
		FootageConfigured: strings.TrimSpace(cfg.Footage.APIKey) != "",
		Integrations:      opt.integrations(),
	})
	if strings.TrimSpace(cfg.Footage.APIKey) == "" {
		logger.Warnf("footage api key not set, every job will use the static thumbnail mode")
	}

	// 后台任务：worker 池与 kafka 消费者
	tasks := task.NewManager()
	tasks.Register(assemblyComponent)
	if opt.kafka != nil {
		kafkaClient := opt.kafka.Client()
		topic, group := cfg.Kafka.Topics.AssembleRequests, cfg.Kafka.GroupID
		tasks.Register(component.NewAssembleRequestConsumer(assemblyApp, func() component.MessageReader {
			return kafkaClient.Reader(topic, group)
		}, component.ConsumerOptions{
			Topic:               topic,
			GroupID:             group,
			CommitOnDecodeError: cfg.Kafka.CommitOnDecodeError,
		}))
	}
	// worker 的生命周期由 StopAll 控制，不跟随信号 ctx
	if err := tasks.StartAll(context.Background()); err != nil {
		logger.Fatal(fmt.Sprintf("Failed to start background tasks error=%v", err))
	}

	// HTTP
	gin.SetMode(cfg.Server.Mode)
	engine := gin.New()
	router := httpadapter.NewRouter(assemblyApp, workerApp, cfg.JWT.Secret, cfg.JWT.Issuer)
	router.SetupMiddleware(engine)
	router.SetupRoutes(engine)
	httpAddr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
	server := &http.Server{
		Addr:        httpAddr,
		Handler:     engine,
		ReadTimeout: cfg.Server.ReadTimeout,
		// WriteTimeout 为 0 时不限制，下载大文件与 websocket 依赖这一点
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// gRPC 健康检查
	var healthServer *grpcadapter.HealthServer
	if cfg.GRPCServer.Enabled {
		grpcAddr := net.JoinHostPort(cfg.GRPCServer.Host, strconv.Itoa(cfg.GRPCServer.Port))
		healthServer, err = grpcadapter.NewHealthServer(grpcAddr, ServiceName)
		if err != nil {
			logger.Fatal(fmt.Sprintf("Failed to listen on gRPC port address=%s error=%v", grpcAddr, err))
		}
		healthServer.SetServing(assemblyWorker.IsRunning())
	}

	// 服务注册在监听之前完成，关闭时先摘除
	var reg *registry.ServiceRegistry
	if cfg.ServiceRegistry.Enabled {
		reg = registerService(cfg, healthServer)
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(sigCtx)

	g.Go(func() error {
		logger.Infof("HTTP server started address=%s health_url=http://%s/health", httpAddr, httpAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	if healthServer != nil {
		g.Go(healthServer.Serve)
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Infof("Received shutdown signal, shutting down server...")
		if reg != nil {
			if err := reg.Deregister(); err != nil {
				logger.Warnf("Deregister failed error=%v", err)
			}
		}
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if healthServer != nil {
			healthServer.SetServing(false)
			healthServer.Stop(ctx)
		}
		if err := server.Shutdown(ctx); err != nil {
			logger.Errorf("Server forced to close error=%v", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Errorf("Server exited with error error=%v", err)
	}

	// 等待运行中的任务在宽限期内结束
	logger.Infof("Stopping background tasks...")
	if err := tasks.StopAll(); err != nil {
		logger.Warnf("Background tasks stopped with error error=%v", err)
	}
	logger.Infof("Server exited safely")
}

func registerResources(cfg *config.Config, m *resource.Manager) optionalResources {
	var opt optionalResources
	if cfg.Redis.Enabled {
		opt.redis = resource.NewRedisResource(cfg.Redis)
		m.Register(opt.redis)
	}
	if cfg.Kafka.Enabled {
		opt.kafka = resource.NewKafkaResource(cfg.Kafka)
		m.Register(opt.kafka)
	}
	if cfg.Minio.Enabled {
		opt.minio = resource.NewMinioResource(cfg.Minio)
		m.Register(opt.minio)
	}
	if cfg.Database.Enabled {
		opt.mysql = resource.NewMysqlResource(cfg.Database)
		m.Register(opt.mysql)
	}
	return opt
}

// buildSinks 状态写入的旁路同步：归档、redis 快照、kafka 终态事件
func buildSinks(cfg *config.Config, opt optionalResources) ([]port.StatusSink, repo.JobArchiveRepository) {
	var (
		sinks   []port.StatusSink
		archive repo.JobArchiveRepository
	)
	if opt.mysql != nil {
		archiveRepo, err := dbpersistence.NewJobArchiveRepository(opt.mysql.MainDB(), true)
		if err != nil {
			logger.Fatal(fmt.Sprintf("Failed to init job archive error=%v", err))
		}
		archive = archiveRepo
		sinks = append(sinks, progress.NewArchiveSink(archiveRepo))
	}
	if opt.redis != nil {
		sinks = append(sinks, progress.NewRedisStatusSink(opt.redis.Client(), cfg.Redis.StatusTTL))
	}
	if opt.kafka != nil {
		sinks = append(sinks, progress.NewKafkaEventSink(opt.kafka.Client(), cfg.Kafka.Topics.JobEvents))
	}
	return sinks, archive
}

func registerService(cfg *config.Config, healthServer *grpcadapter.HealthServer) *registry.ServiceRegistry {
	host := cfg.ServiceRegistry.RegisterHost
	if host == "" {
		host, _ = os.Hostname()
	}
	instance := registry.Instance{
		ServiceName: cfg.ServiceRegistry.ServiceName,
		ServiceID:   cfg.ServiceRegistry.ServiceID,
		HTTPAddr:    net.JoinHostPort(host, strconv.Itoa(cfg.Server.Port)),
		Metadata:    map[string]string{"version": "1.0.0"},
	}
	if instance.ServiceID == "" {
		instance.ServiceID = fmt.Sprintf("%s-%d", host, cfg.Server.Port)
	}
	if healthServer != nil {
		instance.GRPCAddr = net.JoinHostPort(host, strconv.Itoa(cfg.GRPCServer.Port))
	}
	reg, err := registry.NewServiceRegistry(cfg.ServiceRegistry, instance)
	if err != nil {
		logger.Warnf("Service registry unavailable error=%v", err)
		return nil
	}
	if err := reg.Register(); err != nil {
		logger.Warnf("Service registration failed error=%v", err)
		_ = reg.Deregister()
		return nil
	}
	return reg
}

// resolveConfigPath 根据环境选择配置文件，支持CONFIG_PATH覆盖、CONFIG_ENV区分环境
func resolveConfigPath() string {
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		return path
	}

	env := strings.ToLower(strings.TrimSpace(os.Getenv("CONFIG_ENV")))
	if env == "" {
		env = "dev"
	}

	switch env {
	case "prod", "production":
		return "configs/config.prod.yaml"
	case "dev", "development":
		return "configs/config.dev.yaml"
	default:
		return fmt.Sprintf("configs/config.%s.yaml", env)
	}
}
