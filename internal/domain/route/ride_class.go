package route

import (
	"fmt"
	"strings"
	"time"
)

// RideClass is the vehicle tier a fare is quoted for.
type RideClass string

const (
	RideClassEconomy RideClass = "economy"
	RideClassPremium RideClass = "premium"
	RideClassSUV     RideClass = "suv"
)

// AllRideClasses lists the classes in display order.
var AllRideClasses = []RideClass{RideClassEconomy, RideClassPremium, RideClassSUV}

// IsValid returns true if the class is a recognized ride class.
func (c RideClass) IsValid() bool {
	for _, rc := range AllRideClasses {
		if rc == c {
			return true
		}
	}
	return false
}

// String returns the string representation of the class.
func (c RideClass) String() string {
	return string(c)
}

// ParseRideClass converts a string to a RideClass, returning an error if invalid.
func ParseRideClass(s string) (RideClass, error) {
	class := RideClass(strings.ToLower(strings.TrimSpace(s)))
	if !class.IsValid() {
		return "", fmt.Errorf("invalid ride class: %s", s)
	}
	return class, nil
}

// DepartNow is the departure value meaning "leave immediately".
const DepartNow = "now"

// DepartAt is either "now" or a fixed departure instant.
type DepartAt struct {
	at *time.Time
}

// Now returns a DepartAt meaning "leave immediately".
func Now() DepartAt {
	return DepartAt{}
}

// At returns a DepartAt for a fixed instant.
func At(t time.Time) DepartAt {
	u := t.UTC()
	return DepartAt{at: &u}
}

// ParseDepartAt accepts "now", an empty string or an RFC 3339 timestamp.
func ParseDepartAt(s string) (DepartAt, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, DepartNow) {
		return Now(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return DepartAt{}, fmt.Errorf("invalid departure time %q: expected \"now\" or RFC 3339", s)
	}
	return At(t), nil
}

// IsNow reports whether the departure is immediate.
func (d DepartAt) IsNow() bool {
	return d.at == nil
}

// Time returns the fixed instant, if any.
func (d DepartAt) Time() (time.Time, bool) {
	if d.at == nil {
		return time.Time{}, false
	}
	return *d.at, true
}

// String formats the value the way the routing service expects it.
func (d DepartAt) String() string {
	if d.at == nil {
		return DepartNow
	}
	return d.at.Format(time.RFC3339)
}
