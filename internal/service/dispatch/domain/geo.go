// Package domain 负责按距离为订单挑选骑手。
package domain

import (
	"math"
	"sort"
	"time"
)

// EarthRadiusMeters 是球面距离计算使用的地球半径。
const EarthRadiusMeters = 6_371_000.0

// Point 是一个经纬度坐标（度）。
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Candidate 是一名骑手的最新位置快照。
type Candidate struct {
	ShipperID  string
	Lat        float64
	Lng        float64
	IsOnline   bool
	LastSeenAt time.Time
}

// Match 是一名在范围内的骑手及其距离。
type Match struct {
	ShipperID string  `json:"shipper_id"`
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	Distance  float64 `json:"distance_meters"`
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}

// Haversine 返回两点间的大圆距离（米）。
func Haversine(a, b Point) float64 {
	dLat := radians(b.Lat - a.Lat)
	dLng := radians(b.Lng - a.Lng)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(radians(a.Lat))*math.Cos(radians(b.Lat))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * EarthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(h)))
}

// FindNearby 返回在线且距离不超过 radiusMeters 的骑手，按距离升序，距离相同按 ShipperID 排序。
func FindNearby(candidates []Candidate, origin Point, radiusMeters float64) []Match {
	matches := make([]Match, 0, len(candidates))
	for _, c := range candidates {
		if !c.IsOnline {
			continue
		}
		dist := Haversine(origin, Point{Lat: c.Lat, Lng: c.Lng})
		if dist <= radiusMeters {
			matches = append(matches, Match{ShipperID: c.ShipperID, Lat: c.Lat, Lng: c.Lng, Distance: dist})
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Distance != matches[j].Distance {
			return matches[i].Distance < matches[j].Distance
		}
		return matches[i].ShipperID < matches[j].ShipperID
	})
	return matches
}

// ValidPoint 判断坐标是否在合法范围内。
func ValidPoint(p Point) bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180 &&
		!math.IsNaN(p.Lat) && !math.IsNaN(p.Lng)
}
