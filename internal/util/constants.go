package util

import "time"

const (
	DateFormat = "2006-01-02"
	TimeFormat = "2006-01-02 15:04:05"
)

const (
	StorageLocal = "local"
	StorageMinio = "minio"
	StorageOSS   = "oss"
)

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

// 分页
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

const (
	RequestIDHeader = "X-Request-ID"
	RequestIDKey    = "request_id"
	ClockKey        = "clock"
)

// Clock 注入的时钟，便于测试固定时间
type Clock func() time.Time

func SystemClock() time.Time {
	return time.Now()
}

// NormalizePage page<1 视为 1；size<=0 取默认，超过上限截断
func NormalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return page, size
}
