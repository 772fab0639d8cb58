// Package activity defines the fixed taxonomy of daily activity categories and
// the mappings between raw survey activity codes, compact codes and labels.
package activity

import (
	"iter"
	"strconv"
)

// Category is the compact code of an activity category. Codes are dense,
// start at 0 and MissingData is always the largest one.
type Category uint8

// Activity categories in compact-code order.
const (
	Sleeping Category = iota
	PersonalCare
	HouseholdChores
	Childcare
	AdultCare
	Work
	Classes
	Extracurricular
	Homework
	OtherEducation
	Shopping
	Services
	CivicDuties
	EatingDrinking
	Leisure
	Exercise
	ReligiousActivities
	Volunteering
	Calls
	Travel
	MissingData
)

const (
	// Sentinel is the category used for blocks with no observed activity.
	Sentinel = MissingData
	// MaxCode is the largest valid compact code.
	MaxCode = uint8(MissingData)
	// Count is the number of categories, sentinel included.
	Count = int(MissingData) + 1
)

var labels = [Count]string{
	Sleeping:            "Sleeping",
	PersonalCare:        "Personal Care",
	HouseholdChores:     "Household Chores",
	Childcare:           "Childcare",
	AdultCare:           "Adult Care",
	Work:                "Work",
	Classes:             "Classes",
	Extracurricular:     "Extracurricular",
	Homework:            "Homework",
	OtherEducation:      "Other Education",
	Shopping:            "Shopping",
	Services:            "Services",
	CivicDuties:         "Civic Duties",
	EatingDrinking:      "Eating and Drinking",
	Leisure:             "Leisure",
	Exercise:            "Exercise",
	ReligiousActivities: "Religious Activities",
	Volunteering:        "Volunteering",
	Calls:               "Calls",
	Travel:              "Travel",
	MissingData:         "Missing Data",
}

// Code returns the compact code of c.
func (c Category) Code() uint8 { return uint8(c) }

// Valid reports whether c is a known category.
func (c Category) Valid() bool { return uint8(c) <= MaxCode }

// Label returns the display label of c.
func (c Category) Label() string {
	if !c.Valid() {
		return "Category(" + strconv.Itoa(int(c)) + ")"
	}
	return labels[c]
}

// String implements fmt.Stringer.
func (c Category) String() string { return c.Label() }

// FromCode returns the category with the given compact code.
func FromCode(code uint8) (Category, bool) {
	if code > MaxCode {
		return 0, false
	}
	return Category(code), true
}

// Selectable yields every category except the sentinel, in compact-code order.
// Each call starts a fresh enumeration.
func Selectable() iter.Seq[Category] {
	return func(yield func(Category) bool) {
		for c := Category(0); c < Sentinel; c++ {
			if !yield(c) {
				return
			}
		}
	}
}

// All returns every category including the sentinel.
func All() []Category {
	out := make([]Category, Count)
	for i := range out {
		out[i] = Category(i)
	}
	return out
}
