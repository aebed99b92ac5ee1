// Package config 统一配置管理
//
// 配置加载优先级（高→低）：
//  1. 环境变量（通过 .env 文件或 shell/systemd 注入）
//  2. YAML 配置文件（{env}.yaml，如 dev.yaml、test.yaml、prod.yaml）
//  3. 代码硬编码默认值
//
// 凭据单一数据源：
//
//	密码/密钥只存在环境变量中（YAML 中不存储任何密码或云厂商密钥）。
//	dev/test 环境从 .env.{env} 加载，生产环境由 systemd EnvironmentFile 注入。
//
// 配置路径确定策略：
//  1. -config 命令行参数（SetConfigDir）
//  2. CONFIG_DIR 环境变量
//  3. 按 APP_ENV 选择默认路径：
//     - prod → /etc/report-media/
//     - dev/test → ./configs/
package config

import (
	"time"

	"report-media/pkg/logging"
)

// Environment 环境类型
type Environment string

const (
	EnvProduction  Environment = "prod"
	EnvTest        Environment = "test"
	EnvDevelopment Environment = "dev"
)

// YAMLConfig YAML 配置文件结构
type YAMLConfig struct {
	APIServer APIServerConfig `yaml:"api_server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Storage   StorageConfig   `yaml:"storage"`
	Gif       GifConfig       `yaml:"gif"`
	Log       logging.Config  `yaml:"log"`
}

// APIServerConfig API Server 配置
type APIServerConfig struct {
	Port string `yaml:"port"` // 监听端口
	URL  string `yaml:"url"`  // 对外访问地址（memory 存储的签名 URL 以此为前缀）
}

type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // "mongodb"（默认）、"postgres"、"sqlite" 或 "memory"
	Path     string `yaml:"path"`   // SQLite 文件路径
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"-"` // 只从 DB_PASSWORD 环境变量读取
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"sslmode"`
	URI      string `yaml:"uri"` // MongoDB 连接 URI（优先于 host/port）
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"` // 关闭时任务状态只保存在数据库中
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	DB       int    `yaml:"db"`
	Password string `yaml:"-"`   // 只从 REDIS_PASSWORD 环境变量读取
	URL      string `yaml:"url"` // 直接指定 URL（优先于 host/port/db）

	StateTTL     time.Duration `yaml:"state_ttl"`      // 任务状态键过期时间，0 使用默认 1h
	StreamMaxLen int64         `yaml:"stream_max_len"` // 单个事件 Stream 保留条数，0 使用默认值
}

// StorageConfig 对象存储配置
//
// Provider 决定使用哪个后端，其余章节只读取被选中的那一个。
type StorageConfig struct {
	Provider string      `yaml:"provider"` // aws | gcp | azure | minio | memory
	AWS      AWSConfig   `yaml:"aws"`
	GCP      GCPConfig   `yaml:"gcp"`
	Azure    AzureConfig `yaml:"azure"`
	MinIO    MinIOConfig `yaml:"minio"`
}

// AWSConfig S3 配置
type AWSConfig struct {
	Region          string `yaml:"region"`
	Bucket          string `yaml:"bucket"`
	Endpoint        string `yaml:"endpoint"` // 兼容 S3 协议的自建服务
	UsePathStyle    bool   `yaml:"use_path_style"`
	AccessKeyID     string `yaml:"-"` // 只从 AWS_ACCESS_KEY_ID 环境变量读取
	SecretAccessKey string `yaml:"-"` // 只从 AWS_SECRET_ACCESS_KEY 环境变量读取
}

// GCPConfig Google Cloud Storage 配置
type GCPConfig struct {
	Bucket          string `yaml:"bucket"`
	CredentialsFile string `yaml:"credentials_file"` // 服务账号 JSON，留空使用 ADC
	ClientEmail     string `yaml:"-"`                // 只从 GCP_CLIENT_EMAIL 环境变量读取
	PrivateKey      string `yaml:"-"`                // 只从 GCP_PRIVATE_KEY 环境变量读取
}

// AzureConfig Azure Blob 配置
type AzureConfig struct {
	AccountName string `yaml:"account_name"`
	Container   string `yaml:"container"`
	ServiceURL  string `yaml:"service_url"`
	AccountKey  string `yaml:"-"` // 只从 AZURE_ACCOUNT_KEY 环境变量读取
}

// MinIOConfig MinIO 对象存储配置
type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"` // 例如 localhost:9000
	Region    string `yaml:"region"`   // 配置后签名 URL 无需查询 bucket 区域
	AccessKey string `yaml:"-"`        // 只从 MINIO_ROOT_USER 环境变量读取
	SecretKey string `yaml:"-"`        // 只从 MINIO_ROOT_PASSWORD 环境变量读取
	UseSSL    bool   `yaml:"use_ssl"`
	Bucket    string `yaml:"bucket"`
}

// GifConfig GIF 合成任务配置
type GifConfig struct {
	DelayCentiseconds int           `yaml:"delay_centiseconds"` // 帧间隔，120 = 1.2 秒
	Workers           int           `yaml:"workers"`            // 同时运行的合成任务上限
	StaleAfter        time.Duration `yaml:"stale_after"`        // PROCESSING 超过该时长视为任务已丢失
	WaitTimeout       time.Duration `yaml:"wait_timeout"`       // 延迟流程中调用方的最长等待时间
}

// Config 应用配置（最终使用的配置）
type Config struct {
	Env            Environment
	DatabaseDriver string // "mongodb", "postgres", "sqlite" or "memory"
	DatabaseURL    string
	DatabaseDBName string // MongoDB 数据库名称
	RedisEnabled   bool
	RedisURL       string
	Redis          RedisConfig // 仅 StateTTL / StreamMaxLen 在 URL 之外生效
	APIServer      APIServerConfig
	Storage        StorageConfig
	Gif            GifConfig
	Log            logging.Config
	ConfigFilePath string // 实际加载的配置文件路径
}

// yamlConfigInternal 内部包装，记录配置文件来源（不参与 YAML 序列化）
type yamlConfigInternal struct {
	YAMLConfig `yaml:",inline"`
	loadedFrom string
}
