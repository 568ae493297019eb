package configwatcher

import (
	"path/filepath"
	"sync"
	"time"

	"course_form_backend/internal/config"
	"course_form_backend/pkg/logger"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ConfigReloader 配置文件变更并重新加载成功后的回调。
type ConfigReloader func(cfg *config.Config)

// WatchConfig 监听配置文件变更，防抖一秒后重新加载并回调。
// 监听失败不致命，只是失去热更新能力，服务继续运行。
func WatchConfig(configPath string, reloader ConfigReloader) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Log.Error("Failed to create config watcher", zap.Error(err))
		return
	}
	defer watcher.Close()

	absPath, err := filepath.Abs(configPath)
	if err != nil {
		logger.Log.Error("Failed to resolve config path", zap.Error(err))
		return
	}

	if err := watcher.Add(absPath); err != nil {
		logger.Log.Error("Failed to watch config file", zap.String("path", absPath), zap.Error(err))
		return
	}

	var mu sync.Mutex
	timer := time.NewTimer(0)
	<-timer.C

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&fsnotify.Write == fsnotify.Write {
				// 防抖处理
				mu.Lock()
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(1 * time.Second)
				mu.Unlock()
			}
		case <-timer.C:
			// 重新加载配置
			newCfg, err := config.LoadConfig(filepath.Dir(absPath))
			if err != nil {
				logger.Log.Error("Failed to reload config", zap.Error(err))
				continue
			}
			reloader(newCfg)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.Log.Error("Config watcher error", zap.Error(err))
		}
	}
}
