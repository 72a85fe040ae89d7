package weather

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// Units selects the unit system requested from the upstream.
type Units string

const (
	UnitsMetric   Units = "metric"
	UnitsImperial Units = "imperial"
)

const (
	DefaultBaseURL = "https://api.openweathermap.org"
	DefaultTimeout = 15 * time.Second

	summaryPath = "/data/2.5/weather"
	detailPath  = "/data/3.0/onecall"
)

// ClientConfig holds the upstream settings for Client.
type ClientConfig struct {
	APIKey  string
	BaseURL string
	Units   Units
	Timeout time.Duration
	Backoff BackoffConfig
}

// Client fetches and decodes OpenWeatherMap summary and detail payloads.
// It holds no mutable state beyond its circuit breakers and is safe for
// concurrent use.
type Client struct {
	apiKey  string
	baseURL string
	units   Units

	summary *Transport
	detail  *Transport
}

// NewClient builds a Client. A nil httpClient gets one with cfg.Timeout,
// or DefaultTimeout when that is unset.
func NewClient(httpClient *http.Client, cfg ClientConfig) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("openweather api key is not configured")
	}

	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		base = DefaultBaseURL
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", base, err)
	}

	units := cfg.Units
	if units == "" {
		units = UnitsMetric
	}
	if units != UnitsMetric && units != UnitsImperial {
		return nil, fmt.Errorf("unsupported units %q", units)
	}

	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	backoff := cfg.Backoff
	if backoff == (BackoffConfig{}) {
		backoff = DefaultBackoff()
	}

	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(base, "/"),
		units:   units,
		summary: NewTransport("openweather-summary", httpClient, backoff),
		detail:  NewTransport("openweather-onecall", httpClient, backoff),
	}, nil
}

// FetchSummary retrieves current conditions for a city by name.
func (c *Client) FetchSummary(ctx context.Context, cityName string) (Summary, error) {
	const op = "fetch summary"

	name := strings.TrimSpace(cityName)
	if name == "" {
		return Summary{}, ErrInvalidQuery
	}

	values := url.Values{}
	values.Set("q", name)
	values.Set("units", string(c.units))
	values.Set("appid", c.apiKey)

	body, err := c.summary.Get(ctx, op, c.baseURL+summaryPath+"?"+values.Encode())
	if err != nil {
		return Summary{}, err
	}
	return decodeSummary(op, body)
}

// FetchDetail retrieves current, hourly and daily data for a coordinate pair.
func (c *Client) FetchDetail(ctx context.Context, coords Coordinates) (Detail, error) {
	const op = "fetch detail"

	if !coords.Valid() {
		return Detail{}, fmt.Errorf("%s: coordinates out of range: %v", op, coords)
	}

	values := url.Values{}
	values.Set("lat", strconv.FormatFloat(coords.Latitude, 'f', -1, 64))
	values.Set("lon", strconv.FormatFloat(coords.Longitude, 'f', -1, 64))
	values.Set("units", string(c.units))
	values.Set("appid", c.apiKey)

	body, err := c.detail.Get(ctx, op, c.baseURL+detailPath+"?"+values.Encode())
	if err != nil {
		return Detail{}, err
	}
	return decodeDetail(op, body)
}

type conditionPayload struct {
	ID          int    `json:"id"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

type summaryPayload struct {
	Name     *string `json:"name"`
	Timezone int     `json:"timezone"`
	Coord    *struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	} `json:"coord"`
	Main *struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		TempMin   float64 `json:"temp_min"`
		TempMax   float64 `json:"temp_max"`
		Pressure  int     `json:"pressure"`
		Humidity  int     `json:"humidity"`
	} `json:"main"`
	Weather []conditionPayload `json:"weather"`
	Wind    *struct {
		Speed float64  `json:"speed"`
		Deg   int      `json:"deg"`
		Gust  *float64 `json:"gust"`
	} `json:"wind"`
	Sys *struct {
		Sunrise int64 `json:"sunrise"`
		Sunset  int64 `json:"sunset"`
	} `json:"sys"`
}

type detailPayload struct {
	Lat     *float64 `json:"lat"`
	Lon     *float64 `json:"lon"`
	Current *struct {
		Sunrise   *int64             `json:"sunrise"`
		Sunset    *int64             `json:"sunset"`
		Temp      float64            `json:"temp"`
		FeelsLike float64            `json:"feels_like"`
		Humidity  int                `json:"humidity"`
		UVI       float64            `json:"uvi"`
		WindSpeed float64            `json:"wind_speed"`
		WindDeg   int                `json:"wind_deg"`
		WindGust  *float64           `json:"wind_gust"`
		Weather   []conditionPayload `json:"weather"`
	} `json:"current"`
	Hourly []struct {
		Dt      int64              `json:"dt"`
		Temp    float64            `json:"temp"`
		Weather []conditionPayload `json:"weather"`
	} `json:"hourly"`
	Daily []struct {
		Dt   int64 `json:"dt"`
		Temp struct {
			Min float64 `json:"min"`
			Max float64 `json:"max"`
		} `json:"temp"`
		Weather []conditionPayload `json:"weather"`
	} `json:"daily"`
}

func decodeSummary(op string, body []byte) (Summary, error) {
	var p summaryPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return Summary{}, &DecodeError{Op: op, Details: "malformed summary payload", Cause: err}
	}

	var missing []string
	if p.Name == nil {
		missing = append(missing, "name")
	}
	if p.Coord == nil {
		missing = append(missing, "coord")
	}
	if p.Main == nil {
		missing = append(missing, "main")
	}
	if p.Sys == nil {
		missing = append(missing, "sys")
	}
	if len(missing) > 0 {
		return Summary{}, &DecodeError{Op: op, Details: "missing required members: " + strings.Join(missing, ", ")}
	}

	s := Summary{
		CityName:              *p.Name,
		Coordinates:           Coordinates{Latitude: p.Coord.Lat, Longitude: p.Coord.Lon},
		Temperature:           p.Main.Temp,
		FeelsLike:             p.Main.FeelsLike,
		TempMin:               p.Main.TempMin,
		TempMax:               p.Main.TempMax,
		Pressure:              p.Main.Pressure,
		Humidity:              p.Main.Humidity,
		Conditions:            toConditions(p.Weather),
		Sunrise:               p.Sys.Sunrise,
		Sunset:                p.Sys.Sunset,
		TimezoneOffsetSeconds: p.Timezone,
	}
	if p.Wind != nil {
		s.Wind = &Wind{
			Speed:            p.Wind.Speed,
			DirectionDegrees: p.Wind.Deg,
			Gust:             p.Wind.Gust,
		}
	}
	return s, nil
}

func decodeDetail(op string, body []byte) (Detail, error) {
	var p detailPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return Detail{}, &DecodeError{Op: op, Details: "malformed onecall payload", Cause: err}
	}

	var missing []string
	if p.Lat == nil {
		missing = append(missing, "lat")
	}
	if p.Lon == nil {
		missing = append(missing, "lon")
	}
	if p.Current == nil {
		missing = append(missing, "current")
	}
	if len(missing) > 0 {
		return Detail{}, &DecodeError{Op: op, Details: "missing required members: " + strings.Join(missing, ", ")}
	}

	d := Detail{
		Coordinates: Coordinates{Latitude: *p.Lat, Longitude: *p.Lon},
		Current: Current{
			Temperature:          p.Current.Temp,
			FeelsLike:            p.Current.FeelsLike,
			UVIndex:              p.Current.UVI,
			WindSpeed:            p.Current.WindSpeed,
			WindDirectionDegrees: p.Current.WindDeg,
			WindGust:             p.Current.WindGust,
			Humidity:             p.Current.Humidity,
			Sunrise:              p.Current.Sunrise,
			Sunset:               p.Current.Sunset,
			Conditions:           toConditions(p.Current.Weather),
		},
		Hourly: make([]Hourly, 0, len(p.Hourly)),
		Daily:  make([]Daily, 0, len(p.Daily)),
	}
	for _, h := range p.Hourly {
		d.Hourly = append(d.Hourly, Hourly{
			Timestamp:   h.Dt,
			Temperature: h.Temp,
			Conditions:  toConditions(h.Weather),
		})
	}
	for _, day := range p.Daily {
		d.Daily = append(d.Daily, Daily{
			Timestamp:  day.Dt,
			TempMin:    day.Temp.Min,
			TempMax:    day.Temp.Max,
			Conditions: toConditions(day.Weather),
		})
	}
	return d, nil
}

func toConditions(items []conditionPayload) []Condition {
	out := make([]Condition, 0, len(items))
	for _, w := range items {
		out = append(out, Condition{Code: w.ID, Description: w.Description, Icon: w.Icon})
	}
	return out
}
