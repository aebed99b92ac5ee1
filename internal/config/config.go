package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// 默认值
const (
	DefaultDelayCentiseconds = 120
	DefaultGifWorkers        = 4
	DefaultStaleAfter        = 10 * time.Minute
	DefaultWaitTimeout       = 120 * time.Second
)

// Load 加载配置
//  1. 加载 .env.{env}（敏感信息）
//  2. 加载 {env}.yaml
//  3. 环境变量覆盖并构建最终配置
func Load() *Config {
	env := parseEnv(getEnv("APP_ENV", "dev"))
	loadEnvFiles(env)

	yamlCfg := loadYAMLConfig(env)
	applySecrets(&yamlCfg.YAMLConfig)

	db := yamlCfg.Database
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		databaseURL = buildDatabaseURL(db, db.Password)
	}
	driver := detectDatabaseDriver(db.Driver, databaseURL)

	redisURL := getEnv("REDIS_URL", buildRedisURL(yamlCfg.Redis))

	if v := os.Getenv("STORAGE_PROVIDER"); v != "" {
		yamlCfg.Storage.Provider = v
	}
	if v := os.Getenv("API_PORT"); v != "" {
		yamlCfg.APIServer.Port = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		yamlCfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		yamlCfg.Log.Format = v
	}

	cfg := &Config{
		Env:            env,
		DatabaseDriver: driver,
		DatabaseURL:    databaseURL,
		DatabaseDBName: db.Name,
		RedisEnabled:   yamlCfg.Redis.Enabled || os.Getenv("REDIS_URL") != "",
		RedisURL:       redisURL,
		Redis:          yamlCfg.Redis,
		APIServer:      yamlCfg.APIServer,
		Storage:        yamlCfg.Storage,
		Gif:            yamlCfg.Gif,
		Log:            yamlCfg.Log,
		ConfigFilePath: yamlCfg.loadedFrom,
	}
	cfg.Storage.Provider = strings.ToLower(strings.TrimSpace(cfg.Storage.Provider))
	cfg.Gif.validate()

	return cfg
}

// defaultYAMLConfig 代码内置默认值
func defaultYAMLConfig() *yamlConfigInternal {
	return &yamlConfigInternal{YAMLConfig: YAMLConfig{
		APIServer: APIServerConfig{Port: "8080", URL: "http://localhost:8080"},
		Database: DatabaseConfig{
			Driver: "mongodb", Host: "localhost", Port: 27017, Name: "report_media", SSLMode: "disable",
		},
		Redis:   RedisConfig{Host: "localhost", Port: 6379, DB: 0},
		Storage: StorageConfig{Provider: "minio", MinIO: MinIOConfig{Endpoint: "localhost:9000", Bucket: "report-media"}},
		Gif: GifConfig{
			DelayCentiseconds: DefaultDelayCentiseconds,
			Workers:           DefaultGifWorkers,
			StaleAfter:        DefaultStaleAfter,
			WaitTimeout:       DefaultWaitTimeout,
		},
		Log: loggingDefaults(),
	}}
}

// loadYAMLConfig 加载 YAML 配置文件
// 加载顺序：默认值 → {env}.yaml
func loadYAMLConfig(env Environment) *yamlConfigInternal {
	cfg := defaultYAMLConfig()

	for _, path := range yamlCandidates(env) {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if err := yaml.Unmarshal(data, &cfg.YAMLConfig); err != nil {
			log.Printf("WARNING: [config] failed to parse %s: %v", path, err)
			continue
		}
		cfg.loadedFrom = path
		break
	}

	return cfg
}

// applySecrets 从环境变量读取全部凭据
func applySecrets(c *YAMLConfig) {
	c.Database.Password = firstEnv("DB_PASSWORD", "MONGO_ROOT_PASSWORD")
	c.Redis.Password = os.Getenv("REDIS_PASSWORD")

	c.Storage.AWS.AccessKeyID = os.Getenv("AWS_ACCESS_KEY_ID")
	c.Storage.AWS.SecretAccessKey = os.Getenv("AWS_SECRET_ACCESS_KEY")
	c.Storage.GCP.ClientEmail = os.Getenv("GCP_CLIENT_EMAIL")
	c.Storage.GCP.PrivateKey = normalizePEM(os.Getenv("GCP_PRIVATE_KEY"))
	c.Storage.Azure.AccountKey = os.Getenv("AZURE_ACCOUNT_KEY")
	c.Storage.MinIO.AccessKey = os.Getenv("MINIO_ROOT_USER")
	c.Storage.MinIO.SecretKey = os.Getenv("MINIO_ROOT_PASSWORD")
}

// normalizePEM 还原 .env 中以字面量 \n 书写的换行
func normalizePEM(key string) string {
	return strings.ReplaceAll(key, `\n`, "\n")
}

// validate 填充 GIF 任务默认值
func (g *GifConfig) validate() {
	if v, err := strconv.Atoi(os.Getenv("GIF_DELAY_CENTISECONDS")); err == nil && v > 0 {
		g.DelayCentiseconds = v
	}
	if g.DelayCentiseconds <= 0 {
		g.DelayCentiseconds = DefaultDelayCentiseconds
	}
	if g.Workers <= 0 {
		g.Workers = DefaultGifWorkers
	}
	if g.StaleAfter <= 0 {
		g.StaleAfter = DefaultStaleAfter
	}
	if g.WaitTimeout <= 0 {
		g.WaitTimeout = DefaultWaitTimeout
	}
}
