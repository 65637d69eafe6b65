// Package idgen 生成对外展示的订单号与支付网关使用的数字单号。
package idgen

import (
	"fmt"
	"math/rand/v2"
	"time"
)

// OrderCode 形如 FD250318482913：前缀 + yyMMdd + 6 位随机数。唯一性由数据库唯一索引兜底。
func OrderCode(now time.Time) string {
	return fmt.Sprintf("FD%s%06d", now.Format("060102"), rand.IntN(1_000_000))
}

// PaymentCode 返回一个正的 int64，保持在 2^53 以内，网关侧按 JSON number 处理。
func PaymentCode(now time.Time) int64 {
	return now.UnixMilli()%1_000_000_000_000*1000 + rand.Int64N(1000)
}
