// Package money 定义账本使用的金额类型
//
// 所有余额以最小单位(百万分之一)的 int64 存储,费用按基点整数计算,
// 十进制字符串只出现在配置和 API 边界。
package money

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// Decimals 最小单位精度
const Decimals = 6

// Unit 一个完整单位对应的最小单位数量
const Unit Amount = 1_000_000

// BasisPoints 基点分母
const BasisPoints int64 = 10_000

// MaxAmount 单笔金额上限,保证乘以任意基点后仍在 int64 范围内
const MaxAmount = Amount(math.MaxInt64 / BasisPoints)

var (
	ErrNegativeAmount = errors.New("amount must not be negative")
	ErrTooPrecise     = fmt.Errorf("amount has more than %d decimal places", Decimals)
	ErrAmountTooLarge = fmt.Errorf("amount exceeds maximum of %s", MaxAmount)
)

// Amount 以最小单位计的金额
type Amount int64

// Parse 解析十进制字符串,例如 "0.975"
func Parse(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return FromDecimal(d)
}

// MustParse 解析金额,失败时 panic,仅用于常量和测试
func MustParse(s string) Amount {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

// FromDecimal 将十进制数转换为最小单位
func FromDecimal(d decimal.Decimal) (Amount, error) {
	if d.IsNegative() {
		return 0, ErrNegativeAmount
	}
	scaled := d.Shift(Decimals)
	if !scaled.Equal(scaled.Truncate(0)) {
		return 0, ErrTooPrecise
	}
	if scaled.GreaterThan(decimal.NewFromInt(int64(MaxAmount))) {
		return 0, ErrAmountTooLarge
	}
	return Amount(scaled.IntPart()), nil
}

// Decimal 转换为十进制数
func (a Amount) Decimal() decimal.Decimal {
	return decimal.New(int64(a), -Decimals)
}

// String 返回十进制字符串表示
func (a Amount) String() string {
	return a.Decimal().String()
}

// MarshalText 序列化为十进制字符串,避免 JSON 中出现浮点数
func (a Amount) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText 从十进制字符串解析
func (a *Amount) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Fee 按基点计算费用: amount × bps / 10000,向下取整。
// 乘积在十进制下计算,余额累计超过 MaxAmount 时也不会溢出
func (a Amount) Fee(bps int64) Amount {
	product := decimal.NewFromInt(int64(a)).Mul(decimal.NewFromInt(bps))
	quotient, _ := product.QuoRem(decimal.NewFromInt(BasisPoints), 0)
	return Amount(quotient.IntPart())
}

// Split 拆分为费用和剩余金额,两者之和恒等于原金额
func (a Amount) Split(bps int64) (fee Amount, net Amount) {
	fee = a.Fee(bps)
	return fee, a - fee
}

// WithBonus 返回金额加上按基点计算的奖励
func (a Amount) WithBonus(bps int64) Amount {
	return a + a.Fee(bps)
}
