package weather

import "math"

// Group is a normalized high-level weather category.
type Group string

const (
	GroupUnknown Group = "unknown"
	GroupClear   Group = "clear"
	GroupCloudy  Group = "cloudy"
	GroupRain    Group = "rain"
	GroupSnow    Group = "snow"
	GroupStorm   Group = "storm"
	GroupMist    Group = "mist"
)

// ConditionGroup maps an OpenWeatherMap condition code to a Group.
// See https://openweathermap.org/weather-conditions.
func ConditionGroup(code int) Group {
	switch {
	case code >= 200 && code < 300:
		return GroupStorm
	case code >= 300 && code < 600:
		return GroupRain
	case code >= 600 && code < 700:
		return GroupSnow
	case code >= 700 && code < 800:
		return GroupMist
	case code == 800:
		return GroupClear
	case code > 800 && code < 900:
		return GroupCloudy
	default:
		return GroupUnknown
	}
}

// Primary returns the group of the first condition, the one upstream ranks
// highest.
func Primary(conds []Condition) Group {
	if len(conds) == 0 {
		return GroupUnknown
	}
	return ConditionGroup(conds[0].Code)
}

var cardinals = [...]string{"N", "NE", "E", "SE", "S", "SW", "W", "NW"}

// CardinalDirection converts a wind bearing in degrees to an 8-point
// compass direction. Negative and >360 bearings are normalized.
func CardinalDirection(degrees float64) string {
	d := math.Mod(degrees, 360)
	if d < 0 {
		d += 360
	}
	return cardinals[int((d+22.5)/45.0)%8]
}
