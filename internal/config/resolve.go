package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// prodConfigDir 生产环境 YAML 目录
const prodConfigDir = "/etc/report-media"

// configDir 由 -config 命令行参数设置，优先于 CONFIG_DIR
var configDir string

// SetConfigDir 指定 YAML 所在目录（需在 Load 之前调用）
func SetConfigDir(dir string) {
	configDir = dir
}

// yamlCandidates 按优先级返回 {env}.yaml 的候选路径
//
// 显式目录（-config 或 CONFIG_DIR）只返回一个候选；
// 否则 prod 读 /etc/report-media，dev/test 依次尝试 ./configs 与 ../configs。
func yamlCandidates(env Environment) []string {
	name := string(env) + ".yaml"

	dir := configDir
	if dir == "" {
		dir = os.Getenv("CONFIG_DIR")
	}
	if dir != "" {
		return []string{filepath.Join(dir, name)}
	}
	if env == EnvProduction {
		return []string{filepath.Join(prodConfigDir, name)}
	}
	return []string{filepath.Join("configs", name), filepath.Join("..", "configs", name)}
}

// loadEnvFiles 加载 .env.{env}，找不到时退回 .env
//
// 生产环境跳过。godotenv 不覆盖已存在的环境变量。
func loadEnvFiles(env Environment) {
	if env == EnvProduction {
		return
	}
	for _, name := range []string{fmt.Sprintf(".env.%s", env), ".env"} {
		for _, dir := range []string{".", ".."} {
			path := filepath.Join(dir, name)
			if err := godotenv.Load(path); err == nil {
				log.Printf("[config] loaded %s", path)
				return
			}
		}
	}
}
