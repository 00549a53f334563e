package model

import (
	"strings"
	"time"
)

// Borough is an NYC borough as reported by the inspection authority.
type Borough string

const (
	BoroughManhattan    Borough = "MANHATTAN"
	BoroughBrooklyn     Borough = "BROOKLYN"
	BoroughQueens       Borough = "QUEENS"
	BoroughBronx        Borough = "BRONX"
	BoroughStatenIsland Borough = "STATEN ISLAND"
	BoroughUnknown      Borough = "UNKNOWN"
)

// ParseBorough maps free text onto the closed borough enumeration.
func ParseBorough(s string) Borough {
	switch b := Borough(strings.ToUpper(strings.TrimSpace(s))); b {
	case BoroughManhattan, BoroughBrooklyn, BoroughQueens, BoroughBronx, BoroughStatenIsland:
		return b
	case "STATEN_ISLAND", "STATENISLAND":
		return BoroughStatenIsland
	default:
		return BoroughUnknown
	}
}

// Grade is a letter grade assigned at inspection. The empty Grade means no
// grade was recorded.
type Grade string

const (
	GradeA Grade = "A"
	GradeB Grade = "B"
	GradeC Grade = "C"
	GradeZ Grade = "Z" // grade pending
	GradeP Grade = "P" // grade pending, issued on re-opening after closure
	GradeN Grade = "N" // not yet graded
)

// Grades lists every grade in reporting order.
var Grades = []Grade{GradeA, GradeB, GradeC, GradeZ, GradeP, GradeN}

// ParseGrade returns the grade for s, or "" when s is not a known grade.
func ParseGrade(s string) Grade {
	g := Grade(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range Grades {
		if g == known {
			return g
		}
	}
	return ""
}

// Pending reports whether g is one of the pending/ungraded states.
func (g Grade) Pending() bool {
	return g == GradeZ || g == GradeP || g == GradeN
}

// InspectionRecord is one inspection-violation pair. A restaurant has many.
type InspectionRecord struct {
	CAMIS                string    `json:"camis"`
	DBA                  string    `json:"dba"`
	Boro                 Borough   `json:"boro"`
	CuisineDescription   string    `json:"cuisine_description,omitempty"`
	InspectionDate       time.Time `json:"inspection_date"`
	Action               string    `json:"action,omitempty"`
	ViolationCode        string    `json:"violation_code,omitempty"`
	ViolationDescription string    `json:"violation_description,omitempty"`
	Critical             bool      `json:"critical"`
	Grade                Grade     `json:"grade,omitempty"`
}

// InspectionIndex groups inspection records by CAMIS. Each slice keeps the
// source order of the dataset.
type InspectionIndex map[string][]InspectionRecord

// GroupByCAMIS builds an index over records, preserving source order within
// each restaurant.
func GroupByCAMIS(records []InspectionRecord) InspectionIndex {
	idx := make(InspectionIndex)
	for _, r := range records {
		if r.CAMIS == "" {
			continue
		}
		idx[r.CAMIS] = append(idx[r.CAMIS], r)
	}
	return idx
}

// MappingEntry is the curated resolution of an order restaurant name to an
// inspection-dataset restaurant.
type MappingEntry struct {
	CAMIS string  `json:"camis" yaml:"camis"`
	DBA   string  `json:"dba" yaml:"dba"`
	Boro  Borough `json:"boro" yaml:"boro"`
}
