package utils

import "math"

// EarthRadiusMeters 平均地球半径
const EarthRadiusMeters = 6_371_000.0

// Point 地理坐标(度)
type Point struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Valid 判断坐标是否在合法范围内
func (p Point) Valid() bool {
	if math.IsNaN(p.Latitude) || math.IsNaN(p.Longitude) {
		return false
	}
	return p.Latitude >= -90 && p.Latitude <= 90 && p.Longitude >= -180 && p.Longitude <= 180
}

// HaversineDistance 计算两点之间的大圆距离(米)
func HaversineDistance(a, b Point) float64 {
	lat1 := toRadians(a.Latitude)
	lat2 := toRadians(b.Latitude)
	dLat := lat2 - lat1
	dLng := toRadians(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	// 浮点误差可能让 h 略大于 1
	h = math.Min(1, h)

	return 2 * EarthRadiusMeters * math.Asin(math.Sqrt(h))
}

// WithinRadius 判断 p 是否在以 center 为圆心、radius 米为半径的范围内
func WithinRadius(center, p Point, radius float64) bool {
	return HaversineDistance(center, p) <= radius
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
