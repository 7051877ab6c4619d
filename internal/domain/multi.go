package domain

import (
	"context"
	"strings"
	"sync"
)

// FetchMany looks up the current weather for each city concurrently and
// returns the results in input order. Blank entries are skipped. A failed
// lookup is reported in its CityWeather and never aborts the others.
func FetchMany(ctx context.Context, p WeatherProvider, cities []string, opts QueryOptions) []CityWeather {
	var names []string
	for _, c := range cities {
		if name := strings.TrimSpace(c); name != "" {
			names = append(names, name)
		}
	}

	results := make([]CityWeather, len(names))
	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w, err := p.CurrentWeather(ctx, name, opts)
			if err != nil {
				results[i] = CityWeather{City: name, Error: err.Error()}
				return
			}
			results[i] = CityWeather{City: name, Data: &w}
		}()
	}
	wg.Wait()
	return results
}
