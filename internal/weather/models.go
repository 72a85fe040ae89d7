package weather

import (
	"math"
	"time"
)

// Coordinates is a WGS 84 latitude/longitude pair.
type Coordinates struct {
	Latitude  float64 `json:"lat" validate:"gte=-90,lte=90"`
	Longitude float64 `json:"lon" validate:"gte=-180,lte=180"`
}

// Valid reports whether both components are within their geographic ranges.
func (c Coordinates) Valid() bool {
	return c.Latitude >= -90 && c.Latitude <= 90 &&
		c.Longitude >= -180 && c.Longitude <= 180 &&
		!math.IsNaN(c.Latitude) && !math.IsNaN(c.Longitude)
}

// Near reports whether c and o agree within eps degrees on both axes.
func (c Coordinates) Near(o Coordinates, eps float64) bool {
	return math.Abs(c.Latitude-o.Latitude) <= eps && math.Abs(c.Longitude-o.Longitude) <= eps
}

// Condition is a single upstream weather condition entry.
type Condition struct {
	Code        int    `json:"code"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

// Wind holds wind measurements. Gust is nil when the upstream omitted it.
type Wind struct {
	Speed            float64  `json:"speed"`
	DirectionDegrees int      `json:"directionDegrees"`
	Gust             *float64 `json:"gust,omitempty"`
}

// Summary is the "current weather by city name" view.
type Summary struct {
	CityName              string      `json:"cityName"`
	Coordinates           Coordinates `json:"coordinates"`
	Temperature           float64     `json:"temperature"`
	FeelsLike             float64     `json:"feelsLike"`
	TempMin               float64     `json:"tempMin"`
	TempMax               float64     `json:"tempMax"`
	Pressure              int         `json:"pressure"`
	Humidity              int         `json:"humidity"`
	Conditions            []Condition `json:"conditions"`
	Wind                  *Wind       `json:"wind,omitempty"`
	Sunrise               int64       `json:"sunrise"`
	Sunset                int64       `json:"sunset"`
	TimezoneOffsetSeconds int         `json:"timezoneOffsetSeconds"`
}

// Current is the "now" block of a Detail. Optional members are nil when absent.
type Current struct {
	Temperature          float64     `json:"temperature"`
	FeelsLike            float64     `json:"feelsLike"`
	UVIndex              float64     `json:"uvIndex"`
	WindSpeed            float64     `json:"windSpeed"`
	WindDirectionDegrees int         `json:"windDirectionDegrees"`
	WindGust             *float64    `json:"windGust,omitempty"`
	Humidity             int         `json:"humidity"`
	Sunrise              *int64      `json:"sunrise,omitempty"`
	Sunset               *int64      `json:"sunset,omitempty"`
	Conditions           []Condition `json:"conditions"`
}

// Hourly is one hourly forecast entry.
type Hourly struct {
	Timestamp   int64       `json:"timestamp"`
	Temperature float64     `json:"temperature"`
	Conditions  []Condition `json:"conditions"`
}

// Daily is one daily forecast entry.
type Daily struct {
	Timestamp  int64       `json:"timestamp"`
	TempMin    float64     `json:"tempMin"`
	TempMax    float64     `json:"tempMax"`
	Conditions []Condition `json:"conditions"`
}

// Detail is the "current + hourly + daily by coordinates" view.
// Hourly and Daily are ordered as returned upstream (ascending time).
type Detail struct {
	Coordinates Coordinates `json:"coordinates"`
	Current     Current     `json:"current"`
	Hourly      []Hourly    `json:"hourly"`
	Daily       []Daily     `json:"daily"`
}

// IsDaytime reports whether t falls between sunrise and sunset.
// Without both timestamps it is never daytime.
func (d Detail) IsDaytime(t time.Time) bool {
	if d.Current.Sunrise == nil || d.Current.Sunset == nil {
		return false
	}
	now := t.Unix()
	return now >= *d.Current.Sunrise && now < *d.Current.Sunset
}

// Part names one half of a Snapshot.
type Part string

const (
	PartNone    Part = ""
	PartSummary Part = "summary"
	PartDetail  Part = "detail"
)

// Snapshot is the merged view for a place. It is replaced wholesale, never
// mutated in place. A nil half means that half has never been fetched.
type Snapshot struct {
	Query      string    `json:"query,omitempty"`
	Summary    *Summary  `json:"summary,omitempty"`
	Detail     *Detail   `json:"detail,omitempty"`
	ResolvedAt time.Time `json:"resolvedAt"`

	// Stale names the half carried over from an earlier resolution because
	// its fetch failed in the latest one.
	Stale Part `json:"stale,omitempty"`
}

// Empty reports whether nothing has been fetched yet.
func (s Snapshot) Empty() bool {
	return s.Summary == nil && s.Detail == nil
}

// Complete reports whether both halves are present and fresh.
func (s Snapshot) Complete() bool {
	return s.Summary != nil && s.Detail != nil && s.Stale == PartNone
}

// Partial reports whether the snapshot holds some data but is not complete.
func (s Snapshot) Partial() bool {
	return !s.Empty() && !s.Complete()
}

// Consistent reports whether summary and detail describe the same place.
// A snapshot missing either half is trivially consistent.
func (s Snapshot) Consistent(eps float64) bool {
	if s.Summary == nil || s.Detail == nil {
		return true
	}
	return s.Summary.Coordinates.Near(s.Detail.Coordinates, eps)
}
