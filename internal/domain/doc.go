// Package domain models weather data returned by the OpenWeatherMap REST API.
//
// # Data Source
//
// Two endpoints of the OpenWeatherMap 2.5 API are consumed:
//
//	GET /weather   current conditions for a city name (q=)
//	GET /forecast  5 day forecast in 3-hour steps (list[])
//
// Both take q (city), appid (API key), units and lang query parameters.
//
// # Units
//
//	metric    temperature °C, wind m/s
//	imperial  temperature °F, wind mph
//	standard  temperature K,  wind m/s
//
// Pressure is always hPa, humidity and cloud cover are percentages, and
// precipitation is millimetres over the last 1h or 3h window.
//
// # Payload status
//
// The payload carries its own status in "cod". The current weather endpoint
// encodes it as a number (200) and the forecast endpoint as a string ("200").
// Error payloads look like:
//
//	{"cod":"404","message":"city not found"}
//
// # Defaults
//
// Any field the upstream omits takes a fixed default: numbers are zero, the
// description is empty, the icon is [DefaultIcon] and the city is [UnknownCity].
// Precipitation is the first present value among rain.1h, rain.3h, snow.1h and
// snow.3h, favouring the most recent and most granular reading.
//
// # Errors
//
// Failures are reported as one of [ConfigurationError], [NetworkError] or
// [UpstreamError]; [KindOf] classifies an error for adapters that need to map
// it to an exit code or HTTP status.
package domain
