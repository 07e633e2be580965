package util

const (
	DateFormat = "2006-01-02"
	TimeFormat = "2006-01-02 15:04:05"
)

// gin.Context 中保存 JWT Claims 的键
const ContextUserKey = "user"

const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 100
)
