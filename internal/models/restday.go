package models

import (
	"strings"
	"time"
)

// RestDaySet is a vendor's exclusion calendar. A date is a rest day when it
// matches any of the three rules.
type RestDaySet struct {
	Dates    []Date         `json:"dates"`
	Ranges   []DateRange    `json:"ranges"`
	Weekdays []time.Weekday `json:"weekdays"`
}

func (s RestDaySet) Contains(d Date) bool {
	for _, rest := range s.Dates {
		if rest == d {
			return true
		}
	}
	for _, r := range s.Ranges {
		if r.Contains(d) {
			return true
		}
	}
	wd := d.Weekday()
	for _, rest := range s.Weekdays {
		if rest == wd {
			return true
		}
	}
	return false
}

func (s RestDaySet) IsEmpty() bool {
	return len(s.Dates) == 0 && len(s.Ranges) == 0 && len(s.Weekdays) == 0
}

var weekdayNames = map[string]time.Weekday{
	"일": time.Sunday, "월": time.Monday, "화": time.Tuesday, "수": time.Wednesday,
	"목": time.Thursday, "금": time.Friday, "토": time.Saturday,
	"sun": time.Sunday, "mon": time.Monday, "tue": time.Tuesday, "wed": time.Wednesday,
	"thu": time.Thursday, "fri": time.Friday, "sat": time.Saturday,
}

// ParseWeekday understands 금, 금요일, fri and Friday.
func ParseWeekday(name string) (time.Weekday, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.TrimSuffix(name, "요일")
	if wd, ok := weekdayNames[name]; ok {
		return wd, true
	}
	if len(name) >= 3 {
		if wd, ok := weekdayNames[name[:3]]; ok {
			return wd, true
		}
	}
	return 0, false
}
