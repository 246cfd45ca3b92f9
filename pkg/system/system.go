package system

import (
	"time"
)

var StartTime = time.Now()

func InitStartTime() {
	StartTime = time.Now()
}

// Uptime is the number of whole seconds since InitStartTime.
func Uptime() int64 {
	return int64(time.Since(StartTime).Seconds())
}
