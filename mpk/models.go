package mpk

import (
	"errors"
	"fmt"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/kroma-labs/transit-go/decode"
)

// VehicleType is the kind of a tracked vehicle.
type VehicleType int

const (
	VehicleUnknown VehicleType = iota
	VehicleBus
	VehicleTram
)

func (t VehicleType) String() string {
	switch t {
	case VehicleBus:
		return "BUS"
	case VehicleTram:
		return "TRAM"
	default:
		return "UNKNOWN"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (t VehicleType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText accepts both the short ("b", "t") and the long ("BUS",
// "TRAM") spelling.
func (t *VehicleType) UnmarshalText(text []byte) error {
	switch string(text) {
	case "b", "BUS":
		*t = VehicleBus
	case "t", "TRAM":
		*t = VehicleTram
	default:
		return fmt.Errorf("mpk: unknown vehicle type %q", text)
	}
	return nil
}

// Bus is one vehicle position.
//
// The upstream sends either single-letter keys or full names depending on
// the endpoint version; both decode to the same value.
type Bus struct {
	Code      int         `json:"code"`
	Course    int         `json:"course"`
	Latitude  float64     `json:"latitude"`
	Longitude float64     `json:"longitude"`
	Line      string      `json:"line"`
	Type      VehicleType `json:"type"`
	Symbol    string      `json:"symbol"`
	Direction string      `json:"direction"`
	Delay     int         `json:"delay"`
}

type busWire struct {
	V         *int         `json:"v"`
	Code      *int         `json:"code"`
	C         *int         `json:"c"`
	Course    *int         `json:"course"`
	X         *float64     `json:"x"`
	Y         *float64     `json:"y"`
	L         *string      `json:"l"`
	Line      *string      `json:"line"`
	T         *VehicleType `json:"t"`
	Type      *VehicleType `json:"type"`
	S         *string      `json:"s"`
	Symbol    *string      `json:"symbol"`
	D         *string      `json:"d"`
	Direction *string      `json:"direction"`
	E         *int         `json:"e"`
	Delay     *int         `json:"delay"`
}

// UnmarshalJSON decodes either key spelling. Every field is required.
func (b *Bus) UnmarshalJSON(data []byte) error {
	var w busWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	var (
		out  Bus
		errs []string
	)
	out.Code = pick(&errs, "code", w.V, w.Code)
	out.Course = pick(&errs, "course", w.C, w.Course)
	out.Latitude = pick(&errs, "x", w.X)
	out.Longitude = pick(&errs, "y", w.Y)
	out.Line = pick(&errs, "line", w.L, w.Line)
	out.Type = pick(&errs, "type", w.T, w.Type)
	out.Symbol = pick(&errs, "symbol", w.S, w.Symbol)
	out.Direction = pick(&errs, "direction", w.D, w.Direction)
	out.Delay = pick(&errs, "delay", w.E, w.Delay)

	if len(errs) > 0 {
		return fmt.Errorf("mpk: bus missing %s", strings.Join(errs, ", "))
	}
	*b = out
	return nil
}

// pick returns the first non-nil candidate and records name when all are nil.
func pick[T any](missing *[]string, name string, candidates ...*T) T {
	for _, c := range candidates {
		if c != nil {
			return *c
		}
	}
	*missing = append(*missing, name)
	var zero T
	return zero
}

// Positions is the answer of getPositions: the upstream timestamp followed by
// every tracked vehicle.
type Positions = decode.PositionalBatch[Bus]

// BusStop is one departure from a stop, as returned by getPostInfo.
type BusStop struct {
	Label     string `json:"l"`
	Direction string `json:"d"`
	Time      string `json:"t"`
	Course    uint32 `json:"c"`
}

// CourseInfo is the route of one course, as returned by getCoursePosts.
// Polyline is a Google encoded polyline.
type CourseInfo struct {
	Course   uint32       `json:"c"`
	Polyline string       `json:"p"`
	Stops    []CourseStop `json:"r"`
}

// CourseStop is a scheduled stop of a course.
type CourseStop struct {
	Symbol string `json:"s"`
	Time   string `json:"t"`
}

var errPlateIncomplete = errors.New("mpk: post plate missing line or post")

// PostPlate is the printed timetable of a line at a stop.
type PostPlate struct {
	Line          string           `json:"l"`
	Post          string           `json:"p"`
	Abbreviations []string         `json:"s"`
	Timetables    []PlateTimetable `json:"t"`
}

// UnmarshalJSON requires l and p so an error-shaped object never decodes as
// an empty plate.
func (p *PostPlate) UnmarshalJSON(data []byte) error {
	type plate PostPlate
	var out plate
	if err := json.Unmarshal(data, &out); err != nil {
		return err
	}

	var keys struct {
		Line *string `json:"l"`
		Post *string `json:"p"`
	}
	if err := json.Unmarshal(data, &keys); err != nil {
		return err
	}
	if keys.Line == nil || keys.Post == nil {
		return errPlateIncomplete
	}

	*p = PostPlate(out)
	return nil
}

// PlateTimetable is one validity period of a plate.
type PlateTimetable struct {
	ValidFrom  string           `json:"t"`
	Directions []PlateDirection `json:"v"`
}

// PlateDirection groups the departures towards one direction.
type PlateDirection struct {
	Direction string     `json:"n"`
	Days      []PlateDay `json:"d"`
}

// PlateDay is one day type (weekday, saturday, ...) of a direction.
type PlateDay struct {
	Name  string      `json:"d"`
	Order uint32      `json:"o"`
	Hours []PlateHour `json:"h"`
}

// PlateHour lists the departures within one hour. Minutes are in the form
// <minute><abbreviation>, for example "05" or "35a".
type PlateHour struct {
	Hour    int16    `json:"h"`
	Minutes []string `json:"m"`
}
