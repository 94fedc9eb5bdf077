package addok

import (
	"encoding/json"
	"strconv"

	"github.com/mohammed-shakir/csv-geocoder/internal/geocoder"
)

type featureCollection struct {
	Type     string    `json:"type"`
	Features []feature `json:"features"`
}

type feature struct {
	Geometry struct {
		Type        string    `json:"type"`
		Coordinates []float64 `json:"coordinates"` // [lon,lat]
	} `json:"geometry"`
	Properties map[string]any `json:"properties"`
}

func (f feature) result() geocoder.Result {
	r := geocoder.Result{Attributes: make(map[string]string, len(f.Properties))}
	if len(f.Geometry.Coordinates) == 2 {
		r.Lon = f.Geometry.Coordinates[0]
		r.Lat = f.Geometry.Coordinates[1]
	}
	for k, v := range f.Properties {
		s := propString(v)
		switch k {
		case "label":
			r.Label = s
		case "score":
			r.Score = propFloat(v)
		case "distance":
			r.Distance = propFloat(v)
		case "type":
			r.Type = s
		case "id":
			r.ID = s
		case "housenumber":
			r.HouseNumber = s
		}
		r.Attributes[k] = s
	}
	return r
}

func propString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return geocoder.FormatFloat(t)
	case bool:
		return strconv.FormatBool(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

func propFloat(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}
