package config

import (
	"fmt"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// ConfigWatcher 配置文件监听器
// 只有可以安全热更新的字段(日志级别、限流)会被回调使用,账本参数需要重启生效
type ConfigWatcher struct {
	config    *Config
	viper     *viper.Viper
	callbacks []func(*Config)
	onError   func(error)
	mu        sync.RWMutex
	stopped   bool
	stopMu    sync.RWMutex
}

// NewConfigWatcher 创建配置监听器
func NewConfigWatcher(cfg *Config, configPath string) *ConfigWatcher {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(configPath)
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &ConfigWatcher{
		config: cfg,
		viper:  v,
	}
}

// OnConfigChange 注册配置变更回调
func (w *ConfigWatcher) OnConfigChange(callback func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, callback)
}

// OnError 注册重新加载失败时的回调
func (w *ConfigWatcher) OnError(fn func(error)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onError = fn
}

// Start 启动配置监听
func (w *ConfigWatcher) Start() error {
	if err := w.viper.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	w.viper.OnConfigChange(func(e fsnotify.Event) {
		w.stopMu.RLock()
		stopped := w.stopped
		w.stopMu.RUnlock()
		if stopped {
			return
		}
		w.reload()
	})
	w.viper.WatchConfig()

	return nil
}

// reload 重新解析配置并通知回调
func (w *ConfigWatcher) reload() {
	var newCfg Config
	if err := w.viper.Unmarshal(&newCfg); err != nil {
		w.mu.RLock()
		onError := w.onError
		w.mu.RUnlock()
		if onError != nil {
			onError(fmt.Errorf("failed to unmarshal config: %w", err))
		}
		return
	}

	w.mu.Lock()
	w.config = &newCfg
	callbacks := make([]func(*Config), len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.mu.Unlock()

	// 在锁外执行回调,避免回调中调用 GetConfig 死锁
	for _, callback := range callbacks {
		callback(&newCfg)
	}
}

// Stop 停止配置监听
func (w *ConfigWatcher) Stop() {
	w.stopMu.Lock()
	defer w.stopMu.Unlock()
	w.stopped = true
}

// GetConfig 获取当前配置
func (w *ConfigWatcher) GetConfig() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.config
}
