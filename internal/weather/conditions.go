package weather

import (
	"math"
	"strconv"
	"strings"
)

var compassPoints = [16]string{
	"N", "NNE", "NE", "ENE", "E", "ESE", "SE", "SSE",
	"S", "SSW", "SW", "WSW", "W", "WNW", "NW", "NNW",
}

// WindDirection converts a bearing in degrees to a 16-point compass label.
// A nil bearing yields "-".
func WindDirection(deg *float64) string {
	if deg == nil || math.IsNaN(*deg) {
		return "-"
	}
	idx := int(math.Floor(*deg/22.5+0.5)) % 16
	if idx < 0 {
		idx += 16
	}
	return compassPoints[idx]
}

// ConditionFromSkyPty maps short-range SKY (sky state) and PTY (precipitation
// type) codes to a condition. Missing codes are nil.
func ConditionFromSkyPty(sky, pty *int) Condition {
	if sky != nil && *sky == 1 {
		return ConditionClear
	}
	if sky != nil && (*sky == 3 || *sky == 4) {
		if pty == nil || *pty == 0 {
			return ConditionCloudy
		}
		switch *pty {
		case 1, 4:
			return ConditionRain
		case 2, 3:
			return ConditionSnow
		}
	}
	return ConditionCloudy
}

// ConditionFromPty maps a realtime precipitation type code. Zero means no
// precipitation and yields the empty condition.
func ConditionFromPty(pty *float64) Condition {
	if pty == nil {
		return ""
	}
	switch int(*pty) {
	case 0:
		return ""
	case 1, 4, 5:
		return ConditionRain
	case 2, 3, 6, 7:
		return ConditionSnow
	}
	return ConditionUnknown
}

// ConditionFromText maps a mid-range forecast description to a condition.
func ConditionFromText(text string) Condition {
	switch {
	case text == "":
		return ConditionUnknown
	case strings.Contains(text, "맑음"):
		return ConditionClear
	case strings.Contains(text, "눈"), strings.Contains(text, "적설"):
		return ConditionSnow
	case strings.Contains(text, "비"), strings.Contains(text, "소나기"):
		return ConditionRain
	case strings.Contains(text, "구름많음"):
		return ConditionPartlyCloudy
	}
	return ConditionCloudy
}

func parseCode(v string) *int {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return nil
	}
	return &n
}
