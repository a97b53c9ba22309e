package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config 日誌配置
type Config struct {
	// Level: "debug", "info", "warn", "error"
	Level string `yaml:"level"`
	// Format: "json" 或 "console"
	Format string `yaml:"format"`
}

// NewLogger 依配置建立 zap logger
//
// 參數:
//
//	cfg: Config - 日誌配置，空值時使用 info / json
//
// 回傳值:
//
//	*zap.Logger: logger 實例
//	error: 配置不合法時回傳錯誤
func NewLogger(cfg Config) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		var err error
		level, err = zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, err
		}
	}

	zapCfg := zap.NewProductionConfig()
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return zapCfg.Build()
}
