package vectorstore

import "errors"

// ownerFilterKeys are keys that cannot appear in caller filters.
var ownerFilterKeys = []string{"owner_id"}

// ErrOwnerFilterInUserFilters indicates a caller tried to inject owner
// fields through query filters.
var ErrOwnerFilterInUserFilters = errors.New("user filters cannot contain owner fields")

// ApplyOwnerFilters merges caller filters with owner filters from the
// isolation layer. Owner filters always win, and caller filters naming
// owner fields are rejected outright rather than silently overwritten.
func ApplyOwnerFilters(userFilters, ownerFilters map[string]interface{}) (map[string]interface{}, error) {
	if userFilters == nil && ownerFilters == nil {
		return nil, nil
	}
	if userFilters == nil {
		return ownerFilters, nil
	}

	for _, key := range ownerFilterKeys {
		if _, exists := userFilters[key]; exists {
			return nil, ErrOwnerFilterInUserFilters
		}
	}

	if ownerFilters == nil {
		result := make(map[string]interface{}, len(userFilters))
		for k, v := range userFilters {
			result[k] = v
		}
		return result, nil
	}

	result := make(map[string]interface{}, len(userFilters)+len(ownerFilters))
	for k, v := range userFilters {
		result[k] = v
	}
	for k, v := range ownerFilters {
		result[k] = v
	}
	return result, nil
}
