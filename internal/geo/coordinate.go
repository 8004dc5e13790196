package geo

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Coordinate is a WGS-84 position with an optional GPS-reported accuracy.
type Coordinate struct {
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	AccuracyMeters float64 `json:"accuracy,omitempty"`
}

// Validate checks coordinate ranges. Out-of-range values are rejected,
// never clamped.
func (c Coordinate) Validate() error {
	if c.Latitude < -90 || c.Latitude > 90 {
		return fmt.Errorf("latitude %v out of range [-90, 90]", c.Latitude)
	}
	if c.Longitude < -180 || c.Longitude > 180 {
		return fmt.Errorf("longitude %v out of range [-180, 180]", c.Longitude)
	}
	if c.AccuracyMeters < 0 {
		return fmt.Errorf("accuracy %v must be >= 0", c.AccuracyMeters)
	}
	return nil
}

// ParseCoordinate builds a validated Coordinate from loosely typed inputs.
// Clients send coordinates as JSON numbers or numeric strings; anything
// else is rejected. A nil accuracy is treated as zero.
func ParseCoordinate(lat, lon, accuracy any) (Coordinate, error) {
	latF, err := toFloat(lat)
	if err != nil {
		return Coordinate{}, fmt.Errorf("latitude: %w", err)
	}
	lonF, err := toFloat(lon)
	if err != nil {
		return Coordinate{}, fmt.Errorf("longitude: %w", err)
	}
	var accF float64
	if accuracy != nil {
		accF, err = toFloat(accuracy)
		if err != nil {
			return Coordinate{}, fmt.Errorf("accuracy: %w", err)
		}
	}
	c := Coordinate{Latitude: latF, Longitude: lonF, AccuracyMeters: accF}
	if err := c.Validate(); err != nil {
		return Coordinate{}, err
	}
	return c, nil
}

func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case json.Number:
		return x.Float64()
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0, errors.New("empty value")
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", x)
		}
		return f, nil
	case nil:
		return 0, errors.New("missing value")
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
}
