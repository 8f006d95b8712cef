package ipam

import "errors"

// IPAM错误类型，调用方通过errors.Is区分处理
var (
	// ErrInvalidAddress IP地址格式错误
	ErrInvalidAddress = errors.New("无效的IP地址")

	// ErrInvalidCIDR CIDR格式错误或前缀越界
	ErrInvalidCIDR = errors.New("无效的CIDR网段")

	// ErrRangeOutOfBounds 配置的起止地址或请求的地址超出网段有效范围
	ErrRangeOutOfBounds = errors.New("地址超出网段有效范围")

	// ErrAddressReserved 请求的地址在保留列表中
	ErrAddressReserved = errors.New("地址已被保留")

	// ErrAddressInUse 请求的地址已被其他服务器占用
	ErrAddressInUse = errors.New("地址已被占用")

	// ErrPoolExhausted 地址池已没有可分配的地址
	ErrPoolExhausted = errors.New("地址池已耗尽")

	// ErrPoolNotConfigured 该(节点,网络)没有配置地址池。
	// 与耗尽不同，bridge/host等网络本就没有池，调用方自行决定严重程度
	ErrPoolNotConfigured = errors.New("地址池未配置")
)
