package model

import (
	"fmt"
	"strings"
)

// BarSize identifies a metric rebar designation ("10M" through "55M").
type BarSize string

const (
	Bar10M BarSize = "10M"
	Bar15M BarSize = "15M"
	Bar20M BarSize = "20M"
	Bar25M BarSize = "25M"
	Bar30M BarSize = "30M"
	Bar35M BarSize = "35M"
	Bar45M BarSize = "45M"
	Bar55M BarSize = "55M"
)

// barDiameters holds the nominal diameter in mm for every known size.
var barDiameters = map[BarSize]float64{
	Bar10M: 11.3,
	Bar15M: 16.0,
	Bar20M: 19.5,
	Bar25M: 25.2,
	Bar30M: 29.9,
	Bar35M: 35.7,
	Bar45M: 43.7,
	Bar55M: 56.4,
}

// BarSizes lists every known size in ascending diameter order.
var BarSizes = []BarSize{Bar10M, Bar15M, Bar20M, Bar25M, Bar30M, Bar35M, Bar45M, Bar55M}

// ParseBarSize normalizes user input such as "15m" or " 20M " into a BarSize.
func ParseBarSize(s string) (BarSize, error) {
	b := BarSize(strings.ToUpper(strings.TrimSpace(s)))
	if !b.Valid() {
		return "", fmt.Errorf("unknown bar size %q", s)
	}
	return b, nil
}

// Valid reports whether b is one of the known sizes.
func (b BarSize) Valid() bool {
	_, ok := barDiameters[b]
	return ok
}

// DiameterMM returns the nominal bar diameter, or 0 for an unknown size.
func (b BarSize) DiameterMM() float64 {
	return barDiameters[b]
}

// Less orders sizes by physical diameter.
func (b BarSize) Less(other BarSize) bool {
	return b.DiameterMM() < other.DiameterMM()
}

func (b BarSize) String() string {
	return string(b)
}
