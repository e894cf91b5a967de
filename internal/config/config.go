package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	Storage   StorageConfig
	Tracing   TracingConfig `mapstructure:"tracing"`
	Redis     RedisConfig
	Phonetic  PhoneticConfig  `mapstructure:"phonetic"`
	Semantic  SemanticConfig  `mapstructure:"semantic"`
	Assess    AssessConfig    `mapstructure:"assess"`
	Audit     AuditConfig     `mapstructure:"audit"`
	CORS      CORSConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`

	// 运行时标志（非配置文件，通过命令行参数设置）
	ForceMigrate bool `mapstructure:"-"` // 强制执行数据库迁移
	MigrateOnly  bool `mapstructure:"-"` // 仅迁移模式（迁移后退出）
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type RateLimitConfig struct {
	MaxRequests   int `mapstructure:"max_requests"`
	WindowMinutes int `mapstructure:"window_minutes"`
}

type ServerConfig struct {
	Port string
	Mode string
}

type DatabaseConfig struct {
	Host      string
	Port      int
	User      string
	Password  string
	DBName    string
	Charset   string
	ParseTime bool
}

type JWTConfig struct {
	Secret                string `mapstructure:"secret"`
	ExpireHours           int    `mapstructure:"expire_hours"`
	ExamineeExpireMinutes int    `mapstructure:"examinee_expire_minutes"`
}

type StorageConfig struct {
	Type          string `mapstructure:"type"`
	LocalPath     string `mapstructure:"local_path"`
	MinioEndpoint string `mapstructure:"minio_endpoint"`
	MinioAccessID string `mapstructure:"minio_access_key"`
	MinioSecret   string `mapstructure:"minio_secret_key"`
	MinioBucket   string `mapstructure:"minio_bucket"`
	OSSEndpoint   string `mapstructure:"oss_endpoint"`
	OSSAccessKey  string `mapstructure:"oss_access_key"`
	OSSSecretKey  string `mapstructure:"oss_secret_key"`
	OSSBucket     string `mapstructure:"oss_bucket"`
}

type TracingConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	CollectorEndpoint string `mapstructure:"collector_endpoint"`
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// PhoneticConfig 流式声学评分服务配置
type PhoneticConfig struct {
	HostURL           string `mapstructure:"host_url"` // wss 接入地址
	AppID             string `mapstructure:"app_id"`
	APIKey            string `mapstructure:"api_key"`
	APISecret         string `mapstructure:"api_secret"`
	MaxSessions       int    `mapstructure:"max_sessions"`        // 并发会话槽位上限
	PositionPushSecs  int    `mapstructure:"position_push_secs"`  // 等候室位置推送间隔
	SessionCapMinutes int    `mapstructure:"session_cap_minutes"` // 单会话钟面时长上限
	FrameIntervalMs   int    `mapstructure:"frame_interval_ms"`   // 音频帧发送节奏
	FrameSize         int    `mapstructure:"frame_size"`          // 单帧音频字节数
	MaxConnectRetries int    `mapstructure:"max_connect_retries"` // 连续连接失败上限
	RetrySweepMinutes int    `mapstructure:"retry_sweep_minutes"` // 可重试失败的后台补扫间隔
}

// SemanticConfig 批式语义评分服务配置
type SemanticConfig struct {
	BaseURL            string `mapstructure:"base_url"`
	APIKey             string `mapstructure:"api_key"`
	Model              string `mapstructure:"model"`
	RatePerMinute      int    `mapstructure:"rate_per_minute"`    // 对外可见的全局请求预算
	MaxRetries         int    `mapstructure:"max_retries"`        // 单测评评分重试上限
	VisibilitySeconds  int    `mapstructure:"visibility_seconds"` // 任务租约超时,超时后重投
	Workers            int    `mapstructure:"workers"`
	Stream             string `mapstructure:"stream"`
	Group              string `mapstructure:"group"`
	DeadLetterStream   string `mapstructure:"dead_letter_stream"`
	RequestTimeoutSecs int    `mapstructure:"request_timeout_secs"`
}

// RatingTier 评级阶梯的一档,Percent 为该档的总分百分比下限
type RatingTier struct {
	Percent float64 `mapstructure:"percent"`
	Tier    int     `mapstructure:"tier"`
}

// AssessConfig 测评编排配置
type AssessConfig struct {
	EntryTokenTTLMinutes  int          `mapstructure:"entry_token_ttl_minutes"`
	ShareCacheSeconds     int          `mapstructure:"share_cache_seconds"`    // 分享令牌解析缓存,上限30秒
	ReportURLTTLMinutes   int          `mapstructure:"report_url_ttl_minutes"` // 预签名URL有效期,10-30分钟
	ResetsAllowedPerQuota int          `mapstructure:"resets_allowed_per_quota"`
	RatingTiers           []RatingTier `mapstructure:"rating_tiers"`
	HashidsSalt           string       `mapstructure:"hashids_salt"`
	HashidsMinLength      int          `mapstructure:"hashids_min_length"`
}

// AuditConfig 外部审计协作方配置
type AuditConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Endpoint   string `mapstructure:"endpoint"`
	BufferSize int    `mapstructure:"buffer_size"`
}

func LoadConfig(path string) (*Config, error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetEnvPrefix("ORAL_EVAL")
	viper.AutomaticEnv()

	// Database
	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.dbname", "DATABASE_NAME")

	// JWT
	viper.BindEnv("jwt.secret", "JWT_SECRET")

	// Redis
	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")

	// Server
	viper.BindEnv("server.mode", "SERVER_MODE")

	// 流式声学评分服务
	viper.BindEnv("phonetic.host_url", "PHONETIC_HOST_URL")
	viper.BindEnv("phonetic.app_id", "PHONETIC_APP_ID")
	viper.BindEnv("phonetic.api_key", "PHONETIC_API_KEY")
	viper.BindEnv("phonetic.api_secret", "PHONETIC_API_SECRET")

	// 批式语义评分服务
	viper.BindEnv("semantic.base_url", "SEMANTIC_BASE_URL")
	viper.BindEnv("semantic.api_key", "SEMANTIC_API_KEY")
	viper.BindEnv("semantic.model", "SEMANTIC_MODEL")

	// Storage / OSS
	viper.BindEnv("storage.type", "STORAGE_TYPE")
	viper.BindEnv("storage.oss_endpoint", "OSS_ENDPOINT")
	viper.BindEnv("storage.oss_access_key", "OSS_ACCESS_KEY")
	viper.BindEnv("storage.oss_secret_key", "OSS_SECRET_KEY")
	viper.BindEnv("storage.oss_bucket", "OSS_BUCKET")
	viper.BindEnv("storage.minio_endpoint", "MINIO_ENDPOINT")
	viper.BindEnv("storage.minio_access_key", "MINIO_ACCESS_KEY")
	viper.BindEnv("storage.minio_secret_key", "MINIO_SECRET_KEY")
	viper.BindEnv("storage.minio_bucket", "MINIO_BUCKET")

	// Tracing
	viper.BindEnv("tracing.enabled", "TRACING_ENABLED")
	viper.BindEnv("tracing.collector_endpoint", "TRACING_COLLECTOR_ENDPOINT")

	// Audit
	viper.BindEnv("audit.endpoint", "AUDIT_ENDPOINT")

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	// 生产环境校验 JWT Secret 强度
	if cfg.Server.Mode == "release" && len(cfg.JWT.Secret) < 32 {
		return nil, fmt.Errorf("JWT secret is too short (%d chars), must be at least 32 characters in release mode", len(cfg.JWT.Secret))
	}

	if cfg.Assess.ShareCacheSeconds > 30 {
		return nil, fmt.Errorf("assess.share_cache_seconds must not exceed 30, got %d", cfg.Assess.ShareCacheSeconds)
	}
	if cfg.Assess.ReportURLTTLMinutes < 10 || cfg.Assess.ReportURLTTLMinutes > 30 {
		return nil, fmt.Errorf("assess.report_url_ttl_minutes must be within [10,30], got %d", cfg.Assess.ReportURLTTLMinutes)
	}

	if cfg.Storage.Type == "local" {
		if _, err := os.Stat(cfg.Storage.LocalPath); os.IsNotExist(err) {
			os.MkdirAll(cfg.Storage.LocalPath, 0755)
		}
	}

	return &cfg, nil
}

// applyDefaults 填充未配置项的默认值
func applyDefaults(cfg *Config) {
	if cfg.JWT.ExpireHours == 0 {
		cfg.JWT.ExpireHours = 24
	}
	if cfg.JWT.ExamineeExpireMinutes == 0 {
		cfg.JWT.ExamineeExpireMinutes = 90
	}
	if cfg.Phonetic.MaxSessions == 0 {
		cfg.Phonetic.MaxSessions = 50
	}
	if cfg.Phonetic.PositionPushSecs == 0 {
		cfg.Phonetic.PositionPushSecs = 4
	}
	if cfg.Phonetic.SessionCapMinutes == 0 {
		cfg.Phonetic.SessionCapMinutes = 5
	}
	if cfg.Phonetic.FrameIntervalMs == 0 {
		cfg.Phonetic.FrameIntervalMs = 40
	}
	if cfg.Phonetic.FrameSize == 0 {
		cfg.Phonetic.FrameSize = 1280
	}
	if cfg.Phonetic.MaxConnectRetries == 0 {
		cfg.Phonetic.MaxConnectRetries = 3
	}
	if cfg.Phonetic.RetrySweepMinutes == 0 {
		cfg.Phonetic.RetrySweepMinutes = 5
	}
	if cfg.Semantic.RatePerMinute == 0 {
		cfg.Semantic.RatePerMinute = 60
	}
	if cfg.Semantic.MaxRetries == 0 {
		cfg.Semantic.MaxRetries = 3
	}
	if cfg.Semantic.VisibilitySeconds == 0 {
		cfg.Semantic.VisibilitySeconds = 300
	}
	if cfg.Semantic.Workers == 0 {
		cfg.Semantic.Workers = 2
	}
	if cfg.Semantic.Stream == "" {
		cfg.Semantic.Stream = "semantic_jobs"
	}
	if cfg.Semantic.Group == "" {
		cfg.Semantic.Group = "semantic_scorers"
	}
	if cfg.Semantic.DeadLetterStream == "" {
		cfg.Semantic.DeadLetterStream = "semantic_jobs_dead"
	}
	if cfg.Semantic.RequestTimeoutSecs == 0 {
		cfg.Semantic.RequestTimeoutSecs = 120
	}
	if cfg.Assess.EntryTokenTTLMinutes == 0 {
		cfg.Assess.EntryTokenTTLMinutes = 60
	}
	if cfg.Assess.ShareCacheSeconds == 0 {
		cfg.Assess.ShareCacheSeconds = 30
	}
	if cfg.Assess.ReportURLTTLMinutes == 0 {
		cfg.Assess.ReportURLTTLMinutes = 20
	}
	if cfg.Assess.ResetsAllowedPerQuota == 0 {
		cfg.Assess.ResetsAllowedPerQuota = 2
	}
	if len(cfg.Assess.RatingTiers) == 0 {
		// 默认阶梯沿用44分制下 40/32/24/16 的星级折算比例
		cfg.Assess.RatingTiers = []RatingTier{
			{Percent: 90, Tier: 5},
			{Percent: 72, Tier: 4},
			{Percent: 54, Tier: 3},
			{Percent: 36, Tier: 2},
			{Percent: 0, Tier: 1},
		}
	}
	if cfg.Assess.HashidsSalt == "" {
		cfg.Assess.HashidsSalt = "oral-eval-report"
	}
	if cfg.Assess.HashidsMinLength == 0 {
		cfg.Assess.HashidsMinLength = 8
	}
	if cfg.Audit.BufferSize == 0 {
		cfg.Audit.BufferSize = 256
	}
}
