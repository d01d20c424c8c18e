package utils

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestHaversineDistance 测试大圆距离
func TestHaversineDistance(t *testing.T) {
	paris := Point{Latitude: 48.8566, Longitude: 2.3522}
	london := Point{Latitude: 51.5074, Longitude: -0.1278}

	// 巴黎到伦敦约 343.5 公里
	assert.InDelta(t, 343_500, HaversineDistance(paris, london), 1_500)
	assert.Equal(t, 0.0, HaversineDistance(paris, paris))

	// 对称
	assert.InDelta(t, HaversineDistance(paris, london), HaversineDistance(london, paris), 1e-6)
}

// TestHaversineDistance_HighLatitude 测试高纬度下经度差的距离收缩
func TestHaversineDistance_HighLatitude(t *testing.T) {
	equator := HaversineDistance(Point{0, 0}, Point{0, 1})
	arctic := HaversineDistance(Point{80, 0}, Point{80, 1})

	assert.InDelta(t, 111_195, equator, 10)
	assert.InDelta(t, equator*math.Cos(80*math.Pi/180), arctic, 50)
}

// TestWithinRadius 测试地理围栏
func TestWithinRadius(t *testing.T) {
	center := Point{Latitude: 37.7749, Longitude: -122.4194}
	near := Point{Latitude: 37.7758, Longitude: -122.4194} // 约 100 米
	far := Point{Latitude: 37.7849, Longitude: -122.4194}  // 约 1.1 公里

	assert.True(t, WithinRadius(center, near, 200))
	assert.False(t, WithinRadius(center, far, 200))
}

// TestPointValid 测试坐标校验
func TestPointValid(t *testing.T) {
	assert.True(t, Point{Latitude: 90, Longitude: -180}.Valid())
	assert.False(t, Point{Latitude: 91, Longitude: 0}.Valid())
	assert.False(t, Point{Latitude: 0, Longitude: 181}.Valid())
	assert.False(t, Point{Latitude: math.NaN(), Longitude: 0}.Valid())
}

// TestValidateIdentity 测试身份格式
func TestValidateIdentity(t *testing.T) {
	assert.NoError(t, ValidateIdentity("component:escrow"))
	assert.NoError(t, ValidateIdentity("worker-1"))
	assert.Equal(t, ErrEmptyIdentity, ValidateIdentity(""))
	assert.Equal(t, ErrInvalidIdentity, ValidateIdentity("bad identity"))
}

// TestValidateContentHash 测试内容哈希格式
func TestValidateContentHash(t *testing.T) {
	assert.NoError(t, ValidateContentHash("QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG"))
	assert.Equal(t, ErrEmptyHash, ValidateContentHash(""))
	assert.Equal(t, ErrInvalidHash, ValidateContentHash("abc/def"))
}
