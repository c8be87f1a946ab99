package document

// Point is the native geo point representation.
type Point struct {
	Longitude float64 `json:"longitude" msgpack:"longitude"`
	Latitude  float64 `json:"latitude" msgpack:"latitude"`
}

// Geometry is the GeoJSON shaped geometry tagged for the database.
type Geometry struct {
	Type        string      `json:"type" msgpack:"type"`
	Coordinates interface{} `json:"coordinates" msgpack:"coordinates"`
}

func pointFrom(value interface{}) (interface{}, bool) {
	switch v := value.(type) {
	case Point, *Point, Geometry, *Geometry:
		return v, true
	case map[string]interface{}:
		if lat, ok := toFloat(v["latitude"]); ok {
			if lon, ok := toFloat(v["longitude"]); ok && len(v) == 2 {
				return Point{Longitude: lon, Latitude: lat}, true
			}
		}
		tp, ok := v["type"].(string)
		if !ok {
			return value, false
		}
		coordinates, ok := v["coordinates"]
		if !ok {
			return value, false
		}
		return Geometry{Type: tp, Coordinates: coordinates}, true
	case []interface{}:
		if len(v) != 2 {
			return value, false
		}
		lon, ok := toFloat(v[0])
		if !ok {
			return value, false
		}
		lat, ok := toFloat(v[1])
		if !ok {
			return value, false
		}
		return Point{Longitude: lon, Latitude: lat}, true
	case []float64:
		if len(v) != 2 {
			return value, false
		}
		return Point{Longitude: v[0], Latitude: v[1]}, true
	}
	return value, false
}

func toFloat(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	}
	return 0, false
}
