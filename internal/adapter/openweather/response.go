package openweather

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/couchcryptid/weather-apps/internal/domain"
)

const unknownError = "Unknown error"

// OpenWeatherMap API response types. Fields whose default is not the Go zero
// value are pointers so that absence can be told apart from an explicit value.

type envelope struct {
	Cod     statusCode `json:"cod"`
	Message string     `json:"message"`
}

// statusCode holds the payload "cod", which the API encodes either as a
// number or as a string depending on the endpoint.
type statusCode string

func (s *statusCode) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*s = ""
	case len(b) > 0 && b[0] == '"':
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*s = statusCode(str)
	default:
		f, err := strconv.ParseFloat(string(b), 64)
		if err != nil {
			return err
		}
		*s = statusCode(strconv.FormatFloat(f, 'f', -1, 64))
	}
	return nil
}

func (s statusCode) ok() bool { return s == "200" }

type currentResponse struct {
	Name    *string            `json:"name"`
	Main    mainPayload        `json:"main"`
	Wind    windPayload        `json:"wind"`
	Weather []conditionPayload `json:"weather"`
	Sys     sysPayload         `json:"sys"`
	Clouds  cloudsPayload      `json:"clouds"`
	Rain    *precipPayload     `json:"rain"`
	Snow    *precipPayload     `json:"snow"`
}

type mainPayload struct {
	Temp      float64 `json:"temp"`
	FeelsLike float64 `json:"feels_like"`
	Pressure  float64 `json:"pressure"`
	Humidity  float64 `json:"humidity"`
}

type windPayload struct {
	Speed float64 `json:"speed"`
}

type conditionPayload struct {
	Description string  `json:"description"`
	Icon        *string `json:"icon"`
}

type sysPayload struct {
	Sunrise float64 `json:"sunrise"`
	Sunset  float64 `json:"sunset"`
}

type cloudsPayload struct {
	All float64 `json:"all"`
}

type precipPayload struct {
	OneHour   *float64 `json:"1h"`
	ThreeHour *float64 `json:"3h"`
}

type forecastResponse struct {
	List []forecastItem `json:"list"`
}

type forecastItem struct {
	Dt      float64            `json:"dt"`
	Main    mainPayload        `json:"main"`
	Weather []conditionPayload `json:"weather"`
}

func parseCurrent(p currentResponse) domain.CurrentWeather {
	city := domain.UnknownCity
	if p.Name != nil {
		city = *p.Name
	}
	cond := firstCondition(p.Weather)

	return domain.CurrentWeather{
		City:            city,
		Temperature:     p.Main.Temp,
		FeelsLike:       p.Main.FeelsLike,
		Pressure:        int(p.Main.Pressure),
		Humidity:        percent(p.Main.Humidity),
		WindSpeed:       p.Wind.Speed,
		Description:     cond.Description,
		Icon:            iconOrDefault(cond.Icon),
		Sunrise:         int64(p.Sys.Sunrise),
		Sunset:          int64(p.Sys.Sunset),
		Clouds:          percent(p.Clouds.All),
		PrecipitationMM: precipitation(p.Rain, p.Snow),
	}
}

func parseForecast(p forecastResponse, hours int) []domain.ForecastEntry {
	n := min(max(hours, 0), len(p.List))
	entries := make([]domain.ForecastEntry, 0, n)
	for _, item := range p.List[:n] {
		cond := firstCondition(item.Weather)
		entries = append(entries, domain.ForecastEntry{
			Timestamp:   int64(item.Dt),
			Temperature: item.Main.Temp,
			FeelsLike:   item.Main.FeelsLike,
			Description: cond.Description,
			Icon:        iconOrDefault(cond.Icon),
		})
	}
	return entries
}

// precipitation returns the first present reading among rain.1h, rain.3h,
// snow.1h and snow.3h, or 0.
func precipitation(rain, snow *precipPayload) float64 {
	var candidates []*float64
	if rain != nil {
		candidates = append(candidates, rain.OneHour, rain.ThreeHour)
	}
	if snow != nil {
		candidates = append(candidates, snow.OneHour, snow.ThreeHour)
	}
	for _, v := range candidates {
		if v != nil {
			return max(*v, 0)
		}
	}
	return 0
}

func firstCondition(conds []conditionPayload) conditionPayload {
	if len(conds) == 0 {
		return conditionPayload{}
	}
	return conds[0]
}

func iconOrDefault(icon *string) string {
	if icon == nil {
		return domain.DefaultIcon
	}
	return *icon
}

// percent clamps v into [0, 100].
func percent(v float64) int {
	return int(min(max(v, 0), 100))
}
