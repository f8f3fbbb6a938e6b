package ticket

import (
	"sort"
	"strings"
	"time"
)

// Lookup tables for ticket code segments. External reports parse the joined
// code, so table values are a string-formatting contract: never change an
// existing entry, only add.
var deptCodes = map[string]string{
	"IT":              "IT",
	"Human Resources": "HR",
	"HR":              "HR",
	"Finance":         "FIN",
	"Accounting":      "ACC",
	"Operations":      "OPS",
	"Marketing":       "MKT",
	"Sales":           "SLS",
	"Procurement":     "PRC",
	"Administration":  "ADM",
}

var locationCodes = map[string]string{
	"IT Server":   "ITV",
	"Head Office": "HO",
	"Main Office": "MO",
	"Warehouse":   "WH",
	"Branch":      "BR",
	"Factory":     "FAC",
	"Remote":      "RMT",
}

var deviceCodes = map[string]string{
	"Laptop":   "LP",
	"Desktop":  "DT",
	"Printer":  "PR",
	"Scanner":  "SC",
	"Monitor":  "MN",
	"Phone":    "PH",
	"Network":  "NW",
	"Server":   "SV",
	"Software": "SW",
	"Other":    "OT",
}

var activityCodes = map[string]string{
	"Repair":      "RPR",
	"Install":     "INS",
	"Maintenance": "MNT",
	"Upgrade":     "UPG",
	"Replacement": "RPL",
	"Setup":       "STP",
	"Training":    "TRN",
}

// CodeInput carries the ticket attributes the code is derived from. Activity
// is an optional hint that overrides the device-derived segment.
type CodeInput struct {
	Department string
	Device     string
	Location   string
	StoreID    string
	Activity   string
}

// GenerateCode produces the human-readable ticket identifier
// {DEPT}-{LOC}-{SEG}-{YYMM}-{ID3}. It is pure and deterministic: the same
// inputs at the same date always yield the same string.
func GenerateCode(in CodeInput, now time.Time) string {
	dept := segment(deptCodes, in.Department, "GEN")
	loc := segment(locationCodes, in.Location, "OT")
	seg := segment(deviceCodes, in.Device, "OT")
	if code, ok := lookup(activityCodes, in.Activity); ok {
		seg = code
	}

	date := now.Format("0601") // YYMM
	return strings.Join([]string{dept, loc, seg, date, idSuffix(in.StoreID)}, "-")
}

// lookup finds a table code by exact match, then case-insensitive substring
// in either direction.
func lookup(table map[string]string, raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	if code, ok := table[raw]; ok {
		return code, true
	}
	lower := strings.ToLower(raw)
	keys := make([]string, 0, len(table))
	for key := range table {
		keys = append(keys, key)
	}
	// Sorted scan keeps substring resolution deterministic when more than
	// one key matches.
	sort.Strings(keys)
	for _, key := range keys {
		lowerKey := strings.ToLower(key)
		if strings.Contains(lowerKey, lower) || strings.Contains(lower, lowerKey) {
			return table[key], true
		}
	}
	return "", false
}

// segment resolves a raw value through a lookup table: exact match first,
// then case-insensitive substring in either direction, then the first three
// letters of the raw value upper-cased. Empty values get the field sentinel.
func segment(table map[string]string, raw, sentinel string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return sentinel
	}
	if code, ok := lookup(table, raw); ok {
		return code
	}
	if len(raw) < 3 {
		return strings.ToUpper(raw)
	}
	return strings.ToUpper(raw[:3])
}

// idSuffix takes the last three characters of the store-assigned id,
// upper-cased; "XXX" when the id is absent or too short.
func idSuffix(storeID string) string {
	if len(storeID) < 3 {
		return "XXX"
	}
	return strings.ToUpper(storeID[len(storeID)-3:])
}

// CodeFor stamps a freshly created ticket once the store has assigned
// its id.
func CodeFor(t Ticket, activity string, now time.Time) string {
	return GenerateCode(CodeInput{
		Department: t.OwnerDepartment,
		Device:     t.Device,
		Location:   t.Location,
		StoreID:    t.ID,
		Activity:   activity,
	}, now)
}
