package region

// Coordinate is a WGS84 point.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// ForecastLocation is one of the fixed points on the forecast map.
type ForecastLocation struct {
	ID         string     `json:"id"`
	RegionName string     `json:"regionName"`
	Coordinate Coordinate `json:"coordinate"`
}

// Geography is the static map data shared by the realtime and forecast panels.
type Geography struct {
	// ProvinceCenters positions the representative-station card of each province.
	ProvinceCenters map[string]Coordinate

	// RealtimeTargets lists, per institution code, the provinces that get a card.
	RealtimeTargets map[string][]string

	ForecastLocations []ForecastLocation
}

// Center returns the card position for province.
func (g Geography) Center(province string) (Coordinate, bool) {
	c, ok := g.ProvinceCenters[province]
	return c, ok
}

// DefaultGeography returns the built-in map data.
func DefaultGeography() Geography {
	return Geography{
		ProvinceCenters: map[string]Coordinate{
			"경기도":     {Lat: 37.55, Lng: 127.15},
			"경상북도":    {Lat: 36.30, Lng: 128.90},
			"경상남도":    {Lat: 35.35, Lng: 128.30},
			"충청남도":    {Lat: 36.50, Lng: 126.75},
			"충청북도":    {Lat: 36.85, Lng: 127.70},
			"강원특별자치도": {Lat: 37.70, Lng: 128.50},
			"전북특별자치도": {Lat: 35.70, Lng: 127.00},
			"전라남도":    {Lat: 34.90, Lng: 126.90},
		},
		RealtimeTargets: map[string][]string{
			"RDA": {"경기도", "경상북도", "충청남도", "충청북도", "강원특별자치도", "전북특별자치도"},
			"KMA": {"경기도", "경상북도", "경상남도", "충청남도", "충청북도", "강원특별자치도", "전북특별자치도", "전라남도"},
		},
		ForecastLocations: []ForecastLocation{
			{ID: "gwanak", RegionName: "관악구", Coordinate: Coordinate{Lat: 37.4674, Lng: 126.9453}},
			{ID: "yuseong", RegionName: "유성구", Coordinate: Coordinate{Lat: 36.3617, Lng: 127.3561}},
			{ID: "deokjin", RegionName: "전주시덕진구", Coordinate: Coordinate{Lat: 35.8383, Lng: 127.1244}},
			{ID: "dalseo", RegionName: "달서구", Coordinate: Coordinate{Lat: 35.8244, Lng: 128.5389}},
			{ID: "haeundae", RegionName: "해운대구", Coordinate: Coordinate{Lat: 35.1631, Lng: 129.1635}},
			{ID: "gangneung", RegionName: "강릉시", Coordinate: Coordinate{Lat: 37.7206, Lng: 128.7955}},
		},
	}
}
