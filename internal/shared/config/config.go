package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// 节点心跳超时常量
const (
	// NodeOnlineTimeout 节点在线判断超时时间（2分钟）
	NodeOnlineTimeout = 2 * time.Minute

	// NodeOfflineTimeout 节点离线标记超时时间（2分钟）
	NodeOfflineTimeout = 2 * time.Minute
)

// ServerConfig 控制面服务配置。
// 配置通过构造函数显式注入各服务，不使用全局可变状态
type ServerConfig struct {
	App struct {
		Name           string        `yaml:"name"`
		Port           int           `yaml:"port"`
		Mode           string        `yaml:"mode"`
		Secret         string        `yaml:"secret"`
		Listen         string        `yaml:"listen"`
		ReadTimeout    time.Duration `yaml:"read_timeout"`
		WriteTimeout   time.Duration `yaml:"write_timeout"`
		IdleTimeout    time.Duration `yaml:"idle_timeout"`
		MaxHeaderBytes int           `yaml:"max_header_bytes"`
	} `yaml:"app"`

	Database struct {
		Type string `yaml:"type"`
		Path string `yaml:"path"`
	} `yaml:"database"`

	Auth struct {
		AdminUsername  string        `yaml:"admin_username"`
		AdminPassword  string        `yaml:"admin_password"`
		JWTSecret      string        `yaml:"jwt_secret"`
		RefreshSecret  string        `yaml:"refresh_secret"`
		AccessExpiry   time.Duration `yaml:"access_expiry"`
		RefreshExpiry  time.Duration `yaml:"refresh_expiry"`
		SessionTimeout time.Duration `yaml:"session_timeout"`
	} `yaml:"auth"`

	// Features 功能开关，替代散落的环境变量读取
	Features struct {
		EnforceSuspension bool `yaml:"enforce_suspension"` // 暂停的服务器禁止变更操作
	} `yaml:"features"`
}

// findConfigFile 智能查找配置文件
func findConfigFile(filename string) (string, error) {
	// 候选路径列表
	candidates := []string{
		filename,                                    // 当前目录
		filepath.Join("configs", filename),          // 当前目录的 configs 子目录
		filepath.Join("..", filename),               // 上级目录
		filepath.Join("..", "configs", filename),    // 上级目录的 configs 子目录
		filepath.Join("../..", "configs", filename), // 上上级目录的 configs 子目录
	}

	// 依次检查每个候选路径
	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			abs, err := filepath.Abs(candidate)
			if err != nil {
				return candidate, nil // 返回相对路径
			}
			return abs, nil
		}
	}

	return "", fmt.Errorf("配置文件 %s 未找到，已搜索路径: %v", filename, candidates)
}

// LoadServerConfig 加载服务配置
func LoadServerConfig(configPath string) (*ServerConfig, error) {
	config := &ServerConfig{}

	// 设置默认值
	config.App.Name = "GSHost Server"
	config.App.Port = 8080
	config.App.Mode = "release"
	config.App.Listen = ":8080"
	config.App.ReadTimeout = 15 * time.Second
	config.App.WriteTimeout = 15 * time.Second
	config.App.IdleTimeout = 60 * time.Second
	config.App.MaxHeaderBytes = 1 << 20
	config.Database.Type = "sqlite"
	config.Database.Path = "data/gshost.db"
	config.Auth.AdminUsername = "admin"
	config.Auth.AdminPassword = "admin123"
	config.Auth.JWTSecret = "your-jwt-secret-key"
	config.Auth.RefreshSecret = "your-refresh-secret-key"
	config.Auth.AccessExpiry = 1 * time.Hour
	config.Auth.RefreshExpiry = 24 * time.Hour
	config.Auth.SessionTimeout = 24 * time.Hour
	config.Features.EnforceSuspension = true

	if configPath != "" {
		// 智能查找配置文件
		actualPath, err := findConfigFile(configPath)
		if err != nil {
			return nil, err
		}

		data, err := os.ReadFile(actualPath)
		if err != nil {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}

		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("解析配置文件失败: %w", err)
		}
	}

	// 验证必需配置
	if config.App.Secret == "" {
		return nil, fmt.Errorf("app.secret 不能为空")
	}

	return config, nil
}

// SaveServerConfig 保存服务配置
func SaveServerConfig(config *ServerConfig, configPath string) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("序列化配置失败: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("保存配置文件失败: %w", err)
	}

	return nil
}
