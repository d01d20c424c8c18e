package money_test

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/mautops/bounty-gin/internal/money"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParse 测试十进制字符串解析
func TestParse(t *testing.T) {
	a, err := money.Parse("1.0")
	require.NoError(t, err)
	assert.Equal(t, money.Unit, a)

	a, err = money.Parse("0.000001")
	require.NoError(t, err)
	assert.Equal(t, money.Amount(1), a)

	_, err = money.Parse("0.0000001")
	assert.ErrorIs(t, err, money.ErrTooPrecise)

	_, err = money.Parse("-1")
	assert.ErrorIs(t, err, money.ErrNegativeAmount)

	_, err = money.Parse("abc")
	assert.Error(t, err)
}

// TestParse_Bounds 测试超出上限的金额被拒绝而不是截断
func TestParse_Bounds(t *testing.T) {
	a, err := money.Parse("922337203.685477")
	require.NoError(t, err)
	assert.Equal(t, money.MaxAmount, a)

	for _, s := range []string{"922337203.685478", "40000000000", "18446744073709.552616"} {
		_, err := money.Parse(s)
		assert.ErrorIs(t, err, money.ErrAmountTooLarge, s)
	}

	var decoded money.Amount
	assert.ErrorIs(t, decoded.UnmarshalText([]byte("18446744073709.552616")), money.ErrAmountTooLarge)
	assert.Zero(t, decoded)
}

// TestSplit 测试平台费拆分
func TestSplit(t *testing.T) {
	fee, net := money.MustParse("1.0").Split(250)
	assert.Equal(t, "0.025", fee.String())
	assert.Equal(t, "0.975", net.String())

	fee, net = money.MustParse("1.0").Split(500)
	assert.Equal(t, "0.05", fee.String())
	assert.Equal(t, "0.95", net.String())

	// 费用向下取整,拆分不丢失金额
	odd := money.Amount(7)
	fee, net = odd.Split(250)
	assert.Equal(t, money.Amount(0), fee)
	assert.Equal(t, odd, fee+net)
}

// TestSplit_LargeAmounts 测试大额拆分不溢出
func TestSplit_LargeAmounts(t *testing.T) {
	fee, net := money.MaxAmount.Split(250)
	assert.Equal(t, money.MaxAmount, fee+net)
	assert.True(t, fee > 0 && net > 0)

	huge := money.Amount(math.MaxInt64)
	fee, net = huge.Split(250)
	assert.Equal(t, money.Amount(230584300921369395), fee)
	assert.Equal(t, huge, fee+net)
	assert.LessOrEqual(t, net, huge)

	assert.Equal(t, money.Amount(922337203685477580), huge.Fee(1000))
	assert.Equal(t, money.MustParse("10000000"), money.MustParse("100000000").Fee(1000))
}

// TestWithBonus 测试审核人奖励计算
func TestWithBonus(t *testing.T) {
	assert.Equal(t, "0.11", money.MustParse("0.1").WithBonus(1000).String())
}

// TestJSON 测试 JSON 序列化使用字符串
func TestJSON(t *testing.T) {
	payload := struct {
		Amount money.Amount `json:"amount"`
	}{Amount: money.MustParse("2.5")}

	data, err := json.Marshal(payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{"amount":"2.5"}`, string(data))

	var decoded struct {
		Amount money.Amount `json:"amount"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"amount":"0.5"}`), &decoded))
	assert.Equal(t, money.MustParse("0.5"), decoded.Amount)
}
