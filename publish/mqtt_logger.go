package publish

import (
	"context"
	"fmt"
	"log/slog"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// mqttLogger routes the paho client loggers to slog at a fixed level.
type mqttLogger struct {
	logger *slog.Logger
	level  slog.Level
}

func (l mqttLogger) Println(v ...any) {
	l.logger.Log(context.Background(), l.level, fmt.Sprint(v...))
}

func (l mqttLogger) Printf(format string, v ...any) {
	l.logger.Log(context.Background(), l.level, fmt.Sprintf(format, v...))
}

var _ mqtt.Logger = mqttLogger{}

// bridgeMqttLogs is global for the paho package.
func bridgeMqttLogs(logger *slog.Logger) {
	mqtt.CRITICAL = mqttLogger{logger: logger, level: slog.LevelError}
	mqtt.ERROR = mqttLogger{logger: logger, level: slog.LevelError}
	mqtt.WARN = mqttLogger{logger: logger, level: slog.LevelWarn}
}
