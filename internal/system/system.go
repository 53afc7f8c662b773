package system

import (
	"syscall"

	"github.com/sirupsen/logrus"
)

// InitResourceLimits raises the open-file limit. A long session serves
// frame files, the SQLite archive and HTTP clients at the same time
// and the default soft limit can be as low as 256 on macOS.
func InitResourceLimits(logger *logrus.Logger) {
	var rLimit syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		logger.Warnf("Cannot read open-file limit: %v", err)
		return
	}

	rLimit.Cur = 2048
	if rLimit.Cur > rLimit.Max {
		rLimit.Cur = rLimit.Max
	}

	if err := syscall.Setrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		logger.Warnf("Cannot raise open-file limit: %v", err)
	} else {
		logger.Debugf("Open-file limit raised to %d", rLimit.Cur)
	}
}
