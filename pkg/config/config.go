package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// Config 应用配置
type Config struct {
	Server          ServerConfig          `mapstructure:"server"`
	Log             LogConfig             `mapstructure:"log"`
	Storage         StorageConfig         `mapstructure:"storage"`
	Footage         FootageConfig         `mapstructure:"footage"`
	Transcode       TranscodeConfig       `mapstructure:"transcode"`
	Assembly        AssemblyConfig        `mapstructure:"assembly"`
	JWT             JWTConfig             `mapstructure:"jwt"`
	Database        DatabaseConfig        `mapstructure:"database"`
	Redis           RedisConfig           `mapstructure:"redis"`
	Kafka           KafkaConfig           `mapstructure:"kafka"`
	Minio           MinioConfig           `mapstructure:"minio"`
	ServiceRegistry ServiceRegistryConfig `mapstructure:"service_registry"`
	GRPCServer      GRPCServerConfig      `mapstructure:"grpc_server"`
	Profiling       ProfilingConfig       `mapstructure:"profiling"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// StorageConfig 本地产物目录
type StorageConfig struct {
	ContentRoot        string `mapstructure:"content_root"`
	StatusDir          string `mapstructure:"status_dir"`
	PurgeStatusOnStart bool   `mapstructure:"purge_status_on_start"`
}

// FootageConfig 素材库（Pexels）配置
type FootageConfig struct {
	BaseURL          string        `mapstructure:"base_url"`
	APIKey           string        `mapstructure:"api_key"`
	SearchPageSize   int           `mapstructure:"search_page_size"`
	MaxClips         int           `mapstructure:"max_clips"`
	PreferredQuality string        `mapstructure:"preferred_quality"`
	MaxClipSeconds   float64       `mapstructure:"max_clip_seconds"`
	SearchTimeout    time.Duration `mapstructure:"search_timeout"`
	DownloadTimeout  time.Duration `mapstructure:"download_timeout"`
}

// TranscodeConfig 编码配置
type TranscodeConfig struct {
	FFmpeg FFmpegConfig `mapstructure:"ffmpeg"`
}

// FFmpegConfig FFmpeg相关配置
type FFmpegConfig struct {
	BinaryPath   string        `mapstructure:"binary_path"`
	ProbePath    string        `mapstructure:"probe_path"`
	Timeout      time.Duration `mapstructure:"timeout"`
	ProbeTimeout time.Duration `mapstructure:"probe_timeout"`
	VideoCodec   string        `mapstructure:"video_codec"`
	VideoPreset  string        `mapstructure:"video_preset"`
	CRF          int           `mapstructure:"crf"`
	FrameRate    int           `mapstructure:"frame_rate"`
	Width        int           `mapstructure:"width"`
	Height       int           `mapstructure:"height"`
	AudioBitrate string        `mapstructure:"audio_bitrate"`
	Threads      int           `mapstructure:"threads"`
}

// AssemblyConfig 合成任务配置
type AssemblyConfig struct {
	MinOutputBytes       int64         `mapstructure:"min_output_bytes"`
	FinalizeDelay        time.Duration `mapstructure:"finalize_delay"`
	FallbackAudioSeconds float64       `mapstructure:"fallback_audio_seconds"`
	MaxConcurrentJobs    int           `mapstructure:"max_concurrent_jobs"`
	QueueCapacity        int           `mapstructure:"queue_capacity"`
	ShutdownGracePeriod  time.Duration `mapstructure:"shutdown_grace_period"`
}

// JWTConfig JWT配置，secret 为空时不启用鉴权
type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Issuer string `mapstructure:"issuer"`
}

// DatabaseConfig 数据库配置（任务归档）
type DatabaseConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	Charset         string        `mapstructure:"charset"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// RedisConfig Redis配置
type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	EnableTLS    bool          `mapstructure:"enable_tls"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
	StatusTTL    time.Duration `mapstructure:"status_ttl"`
}

// KafkaConfig Kafka配置
type KafkaConfig struct {
	Enabled             bool              `mapstructure:"enabled"`
	BootstrapServers    []string          `mapstructure:"bootstrap_servers"`
	ClientID            string            `mapstructure:"client_id"`
	GroupID             string            `mapstructure:"group_id"`
	Topics              KafkaTopicsConfig `mapstructure:"topics"`
	CommitOnDecodeError bool              `mapstructure:"commit_on_decode_error"`
}

type KafkaTopicsConfig struct {
	AssembleRequests string `mapstructure:"assemble_requests"`
	JobEvents        string `mapstructure:"job_events"`
}

// MinioConfig MinIO配置
type MinioConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"`
	ObjectPrefix    string `mapstructure:"object_prefix"`
}

// ServiceRegistryConfig registration configuration.
type ServiceRegistryConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Endpoints       []string      `mapstructure:"endpoints"`
	ServiceName     string        `mapstructure:"service_name"`
	ServiceID       string        `mapstructure:"service_id"`
	RegisterHost    string        `mapstructure:"register_host"`
	TTL             time.Duration `mapstructure:"ttl"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
}

// GRPCServerConfig gRPC server configuration.
type GRPCServerConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
}

// ProfilingConfig pyroscope 配置
type ProfilingConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	ServerAddress string `mapstructure:"server_address"`
}

var (
	globalConfig *Config
	globalMu     sync.RWMutex
)

// SetGlobalConfig 设置全局配置
func SetGlobalConfig(cfg *Config) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalConfig = cfg
}

// GetGlobalConfig 获取全局配置，未设置时返回默认配置
func GetGlobalConfig() *Config {
	globalMu.RLock()
	cfg := globalConfig
	globalMu.RUnlock()
	if cfg != nil {
		return cfg
	}
	return Default()
}

// Default 返回仅包含默认值的配置
func Default() *Config {
	cfg := &Config{}
	cfg.normalize()
	return cfg
}

// Load 加载配置；文件不存在时只使用默认值和环境变量
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	v.SetDefault("server.port", 8001)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("storage.content_root", "generated_content")
	v.SetDefault("footage.base_url", "https://api.pexels.com")
	v.SetDefault("kafka.client_id", "video-assembly-service")
	v.SetDefault("kafka.group_id", "video-assembly-service-group")
	v.SetDefault("kafka.topics.assemble_requests", "video.assembly.requests")
	v.SetDefault("kafka.topics.job_events", "video.assembly.events")
	v.SetDefault("kafka.commit_on_decode_error", true)

	// 设置环境变量前缀
	v.SetEnvPrefix("VIDEO_ASSEMBLY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("footage.api_key", "VIDEO_ASSEMBLY_FOOTAGE_API_KEY", "PEXELS_API_KEY")

	if strings.TrimSpace(configPath) != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("read config %s: %w", configPath, err)
			}
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	config.normalize()

	return &config, nil
}

// normalize 补全配置的默认值
func (c *Config) normalize() {
	if c.Server.Port == 0 {
		c.Server.Port = 8001
	}
	if c.Server.Mode == "" {
		c.Server.Mode = "release"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Log.Output == "" {
		c.Log.Output = "stdout"
	}

	if c.Storage.ContentRoot == "" {
		c.Storage.ContentRoot = "generated_content"
	}

	if c.Footage.BaseURL == "" {
		c.Footage.BaseURL = "https://api.pexels.com"
	}
	if c.Footage.SearchPageSize <= 0 {
		c.Footage.SearchPageSize = 5
	}
	if c.Footage.MaxClips <= 0 {
		c.Footage.MaxClips = 3
	}
	if c.Footage.PreferredQuality == "" {
		c.Footage.PreferredQuality = "hd"
	}
	if c.Footage.MaxClipSeconds <= 0 {
		c.Footage.MaxClipSeconds = 20
	}
	if c.Footage.SearchTimeout <= 0 {
		c.Footage.SearchTimeout = 30 * time.Second
	}
	if c.Footage.DownloadTimeout <= 0 {
		c.Footage.DownloadTimeout = 60 * time.Second
	}

	// FFmpeg 默认值
	ff := &c.Transcode.FFmpeg
	if ff.BinaryPath == "" {
		ff.BinaryPath = "ffmpeg"
	}
	if ff.ProbePath == "" {
		ff.ProbePath = "ffprobe"
	}
	if ff.Timeout <= 0 {
		ff.Timeout = 600 * time.Second
	}
	if ff.ProbeTimeout <= 0 {
		ff.ProbeTimeout = 10 * time.Second
	}
	if ff.VideoCodec == "" {
		ff.VideoCodec = "libx264"
	}
	if ff.VideoPreset == "" {
		ff.VideoPreset = "fast"
	}
	if ff.CRF <= 0 {
		ff.CRF = 28
	}
	if ff.FrameRate <= 0 {
		ff.FrameRate = 25
	}
	if ff.Width <= 0 || ff.Height <= 0 {
		ff.Width, ff.Height = 1280, 720
	}
	if ff.AudioBitrate == "" {
		ff.AudioBitrate = "128k"
	}
	if ff.Threads < 0 {
		ff.Threads = 0
	}

	if c.Assembly.MinOutputBytes <= 0 {
		c.Assembly.MinOutputBytes = 50000
	}
	if c.Assembly.FinalizeDelay < 0 {
		c.Assembly.FinalizeDelay = 0
	} else if c.Assembly.FinalizeDelay == 0 {
		c.Assembly.FinalizeDelay = 2 * time.Second
	}
	if c.Assembly.FallbackAudioSeconds <= 0 {
		c.Assembly.FallbackAudioSeconds = 60
	}
	if c.Assembly.MaxConcurrentJobs <= 0 {
		c.Assembly.MaxConcurrentJobs = 2
	}
	if c.Assembly.QueueCapacity <= 0 {
		c.Assembly.QueueCapacity = 100
	}
	if c.Assembly.ShutdownGracePeriod == 0 {
		c.Assembly.ShutdownGracePeriod = 30 * time.Second
	}

	if c.Database.Charset == "" {
		c.Database.Charset = "utf8mb4"
	}
	if c.Redis.Port == 0 {
		c.Redis.Port = 6379
	}
	if c.Redis.KeyPrefix == "" {
		c.Redis.KeyPrefix = "video-assembly"
	}
	if c.Redis.StatusTTL <= 0 {
		c.Redis.StatusTTL = 24 * time.Hour
	}
	if len(c.Kafka.BootstrapServers) == 0 {
		c.Kafka.BootstrapServers = []string{"localhost:29092"}
	}
	if c.Kafka.ClientID == "" {
		c.Kafka.ClientID = "video-assembly-service"
	}
	if c.Kafka.GroupID == "" {
		c.Kafka.GroupID = "video-assembly-service-group"
	}
	if c.Kafka.Topics.AssembleRequests == "" {
		c.Kafka.Topics.AssembleRequests = "video.assembly.requests"
	}
	if c.Kafka.Topics.JobEvents == "" {
		c.Kafka.Topics.JobEvents = "video.assembly.events"
	}
	if c.Minio.BucketName == "" {
		c.Minio.BucketName = "assembled-videos"
	}
	if c.Minio.ObjectPrefix == "" {
		c.Minio.ObjectPrefix = "videos"
	}

	if c.GRPCServer.Host == "" {
		c.GRPCServer.Host = "0.0.0.0"
	}
	if c.GRPCServer.Port == 0 {
		c.GRPCServer.Port = 9095
	}
	if len(c.ServiceRegistry.Endpoints) == 0 {
		c.ServiceRegistry.Endpoints = []string{"localhost:2379"}
	}
	if c.ServiceRegistry.ServiceName == "" {
		c.ServiceRegistry.ServiceName = "video-assembly-service"
	}
	if c.ServiceRegistry.TTL == 0 {
		c.ServiceRegistry.TTL = 30 * time.Second
	}
	if c.ServiceRegistry.RefreshInterval == 0 {
		c.ServiceRegistry.RefreshInterval = 10 * time.Second
	}
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=True&loc=Local",
		c.Username, c.Password, c.Host, c.Port, c.Database, c.Charset)
}

// GetRedisAddr 获取Redis地址
func (c *RedisConfig) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// StatusDirectory 状态记录目录，未单独配置时位于 content_root/status
func (c *StorageConfig) StatusDirectory() string {
	if strings.TrimSpace(c.StatusDir) != "" {
		return c.StatusDir
	}
	return strings.TrimRight(c.ContentRoot, "/") + "/status"
}
