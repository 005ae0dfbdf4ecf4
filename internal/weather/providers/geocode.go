package providers

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/kelvins/geocoder"
)

var (
	errEmptyAddress = errors.New("empty address")

	// geocoder keeps its key in a package variable.
	geocodeMu sync.Mutex
	geocode   = geocoder.Geocoding
)

// GridLocation geocodes a free-text address such as "湛江市, 广东, 中国"
// to the "lon,lat" form accepted by the warning API. Coordinates are
// rounded to two decimals.
func GridLocation(address, apiKey string) (string, error) {
	addr, err := parseAddress(address)
	if err != nil {
		return "", err
	}

	geocodeMu.Lock()
	geocoder.ApiKey = apiKey
	loc, err := geocode(addr)
	geocodeMu.Unlock()
	if err != nil {
		return "", fmt.Errorf("geocoding %q: %w", address, err)
	}
	return strconv.FormatFloat(loc.Longitude, 'f', 2, 64) + "," + strconv.FormatFloat(loc.Latitude, 'f', 2, 64), nil
}

// parseAddress maps "city[, state[, country]]" onto a geocoder address.
func parseAddress(s string) (geocoder.Address, error) {
	var parts []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return geocoder.Address{}, errEmptyAddress
	}
	addr := geocoder.Address{City: parts[0]}
	if len(parts) > 1 {
		addr.State = parts[1]
	}
	if len(parts) > 2 {
		addr.Country = parts[2]
	}
	return addr, nil
}
