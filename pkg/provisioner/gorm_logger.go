package provisioner

import (
	"fmt"
	"time"

	"github.com/golang/glog"
	"gorm.io/gorm/logger"
)

// glogWriter routes gorm's log output to glog.
type glogWriter struct{}

func (glogWriter) Printf(format string, args ...interface{}) {
	glog.InfoDepth(3, fmt.Sprintf(format, args...))
}

func newGormLogger() logger.Interface {
	level := logger.Warn
	if glog.V(1) {
		level = logger.Info
	}
	return logger.New(glogWriter{}, logger.Config{
		SlowThreshold:             time.Second,
		LogLevel:                  level,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}
