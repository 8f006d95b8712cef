package ipam

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// Range 一段连续的IPv4地址区间，闭区间
type Range struct {
	Start uint32
	End   uint32
}

// Size 区间内地址数量
func (r Range) Size() int64 {
	return int64(r.End) - int64(r.Start) + 1
}

// Contains 判断地址是否落在区间内
func (r Range) Contains(v uint32) bool {
	return v >= r.Start && v <= r.End
}

// ParseIPv4 解析点分十进制IPv4地址为32位整数。
// 每段必须是规范十进制写法，前导零和正负号均视为非法：
// 地址在分配引擎和唯一索引里按字符串比较，同一地址只能有一种写法
func ParseIPv4(s string) (uint32, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 4 {
		return 0, fmt.Errorf("%w: %s", ErrInvalidAddress, s)
	}

	var v uint32
	for _, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 || n > 255 || strconv.Itoa(n) != part {
			return 0, fmt.Errorf("%w: %s", ErrInvalidAddress, s)
		}
		v = v<<8 | uint32(n)
	}
	return v, nil
}

// FormatIPv4 将32位整数格式化为点分十进制IPv4地址
func FormatIPv4(v uint32) string {
	return fmt.Sprintf("%d.%d.%d.%d", v>>24&0xff, v>>16&0xff, v>>8&0xff, v&0xff)
}

// ParseCIDR 解析CIDR网段，返回有效主机地址区间。
// 前缀小于31时排除网络地址和广播地址；/31和/32按点对点/单主机惯例两端都可用
func ParseCIDR(s string) (Range, error) {
	idx := strings.Index(s, "/")
	if idx < 0 {
		return Range{}, fmt.Errorf("%w: %s", ErrInvalidCIDR, s)
	}

	ip, err := ParseIPv4(s[:idx])
	if err != nil {
		return Range{}, fmt.Errorf("%w: %s", ErrInvalidCIDR, s)
	}

	prefix, err := strconv.Atoi(s[idx+1:])
	if err != nil || prefix < 0 || prefix > 32 {
		return Range{}, fmt.Errorf("%w: %s", ErrInvalidCIDR, s)
	}

	var mask uint32
	if prefix > 0 {
		mask = ^uint32(0) << (32 - prefix)
	}

	network := ip & mask
	broadcast := network | ^mask

	if prefix >= 31 {
		return Range{Start: network, End: broadcast}, nil
	}
	return Range{Start: network + 1, End: broadcast - 1}, nil
}

// NormalizeHostIP 校验host网络模式下的宿主机IP，非法或回环地址返回空串
func NormalizeHostIP(value string) string {
	value = strings.TrimSpace(value)
	if _, err := ParseIPv4(value); err != nil {
		return ""
	}

	ip := net.ParseIP(value)
	if ip == nil || ip.IsLoopback() {
		return ""
	}
	return value
}

// ShouldUseIPAM 网络模式是否由IP池管理，仅bridge和host不参与分配
func ShouldUseIPAM(networkMode string) bool {
	return networkMode != "bridge" && networkMode != "host"
}
