package query

import "ninex/internal/airtable"

const (
	SortLatest     = "latest"
	SortOldest     = "oldest"
	SortAZ         = "az"
	SortZA         = "za"
	SortExpiryDesc = "expiry_desc"
)

// SortFor maps a UI sort option to store sort fields; unknown options fall back to latest.
func SortFor(option string) []airtable.SortField {
	switch option {
	case SortOldest:
		return []airtable.SortField{{Field: "createdTime", Direction: airtable.Asc}}
	case SortAZ:
		return []airtable.SortField{{Field: "Username", Direction: airtable.Asc}}
	case SortZA:
		return []airtable.SortField{{Field: "Username", Direction: airtable.Desc}}
	case SortExpiryDesc:
		return []airtable.SortField{{Field: "Expiry", Direction: airtable.Desc}}
	default:
		return []airtable.SortField{{Field: "createdTime", Direction: airtable.Desc}}
	}
}

// NormalizeSort returns the option SortFor actually applies.
func NormalizeSort(option string) string {
	switch option {
	case SortOldest, SortAZ, SortZA, SortExpiryDesc:
		return option
	}
	return SortLatest
}
