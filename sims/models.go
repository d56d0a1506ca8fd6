package sims

import (
	"errors"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

// Vehicle is the last report of one vehicle.
type Vehicle struct {
	SideNumber        string    `json:"sideNumber"`
	ReceiveTime       time.Time `json:"receiveTime"`
	IsConnected       bool      `json:"isConnected"`
	Latitude          float64   `json:"latitude"`
	Longitude         float64   `json:"longitude"`
	PreviousLatitude  float64   `json:"previousLatitude"`
	PreviousLongitude float64   `json:"previousLongitude"`
	Brigade           *string   `json:"brigade,omitempty"`
	Direction         *string   `json:"direction,omitempty"`
	// Line is set only while the vehicle is connected.
	Line  *string `json:"line,omitempty"`
	Delay *int    `json:"delay,omitempty"`
}

type vehicleWire struct {
	SideNumber        *string `json:"sideNumber"`
	RecieveTime       *int64  `json:"recieveTime"`
	IsConnected       bool    `json:"isConnected"`
	Latitude          float64 `json:"latitude"`
	Longitude         float64 `json:"longitude"`
	PreviousLatitude  float64 `json:"previousLatitude"`
	PreviousLongitude float64 `json:"previousLongitude"`
	Brigade           *string `json:"brigade"`
	Direction         *string `json:"direction"`
	Line              *string `json:"line"`
	Delay             *int    `json:"delay"`
}

var (
	errNoSideNumber  = errors.New("sims: vehicle missing sideNumber")
	errNoReceiveTime = errors.New("sims: vehicle missing recieveTime")
	errNoDeparture   = errors.New("sims: timetable missing timetableDepartureTime")
)

// UnmarshalJSON decodes the upstream spelling "recieveTime" as epoch
// milliseconds and turns empty strings into nil.
func (v *Vehicle) UnmarshalJSON(data []byte) error {
	var w vehicleWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if w.SideNumber == nil {
		return errNoSideNumber
	}
	if w.RecieveTime == nil {
		return errNoReceiveTime
	}

	*v = Vehicle{
		SideNumber:        *w.SideNumber,
		ReceiveTime:       fromMillis(*w.RecieveTime),
		IsConnected:       w.IsConnected,
		Latitude:          w.Latitude,
		Longitude:         w.Longitude,
		PreviousLatitude:  w.PreviousLatitude,
		PreviousLongitude: w.PreviousLongitude,
		Brigade:           emptyAsNil(w.Brigade),
		Direction:         emptyAsNil(w.Direction),
		Line:              emptyAsNil(w.Line),
		Delay:             w.Delay,
	}
	return nil
}

// BusStop is a stop served by the mirrors.
type BusStop struct {
	Code      string  `json:"busStopCode"`
	Name      string  `json:"busStopName"`
	Latitude  float64 `json:"busStopLatitude"`
	Longitude float64 `json:"busStopLongitude"`
}

// Timetable is one departure from a stop.
type Timetable struct {
	Line          TimetableLine      `json:"line"`
	Direction     TimetableDirection `json:"direction"`
	DepartureTime time.Time          `json:"timetableDepartureTime"`
	ShowType      int                `json:"showType"`
	DepartureHide bool               `json:"departureHide"`
}

// UnmarshalJSON decodes timetableDepartureTime as epoch milliseconds.
func (t *Timetable) UnmarshalJSON(data []byte) error {
	var w struct {
		Line          TimetableLine      `json:"line"`
		Direction     TimetableDirection `json:"direction"`
		DepartureTime *int64             `json:"timetableDepartureTime"`
		ShowType      int                `json:"showType"`
		DepartureHide bool               `json:"departureHide"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if w.DepartureTime == nil {
		return errNoDeparture
	}

	*t = Timetable{
		Line:          w.Line,
		Direction:     w.Direction,
		DepartureTime: fromMillis(*w.DepartureTime),
		ShowType:      w.ShowType,
		DepartureHide: w.DepartureHide,
	}
	return nil
}

// TimetableLine identifies the line of a departure.
type TimetableLine struct {
	ID     uint32 `json:"id"`
	Name   string `json:"name"`
	Number string `json:"number"`
}

// UnmarshalJSON trims the padding the upstream puts around Number.
func (l *TimetableLine) UnmarshalJSON(data []byte) error {
	type line TimetableLine
	var out line
	if err := json.Unmarshal(data, &out); err != nil {
		return err
	}
	out.Number = strings.TrimSpace(out.Number)
	*l = TimetableLine(out)
	return nil
}

// TimetableDirection is the headsign of a departure.
type TimetableDirection struct {
	ID   uint32 `json:"id"`
	Name string `json:"name"`
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func emptyAsNil(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}
