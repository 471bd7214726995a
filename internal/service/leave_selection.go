package service

import (
	"fmt"
	"strings"

	"github.com/prabandh/portal-api/internal/models"
	appErrors "github.com/prabandh/portal-api/pkg/errors"
)

// SelectionAction describes an edit to a leave-type selection.
type SelectionAction string

const (
	SelectionAdd    SelectionAction = "add"
	SelectionRemove SelectionAction = "remove"
)

// ValidateSelection applies the combination rules to a selection edit and
// returns the resulting selection. Pure: no balance lookups here; a zero
// remaining balance blocks submission, not selection.
func ValidateSelection(existing []string, candidate string, action SelectionAction) ([]string, error) {
	if _, ok := models.LeaveTypeByID(candidate); !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("unknown leave type %q", candidate))
	}

	if action == SelectionRemove {
		result := make([]string, 0, len(existing))
		for _, id := range existing {
			if id != candidate {
				result = append(result, id)
			}
		}
		return result, nil
	}

	for _, id := range existing {
		if id == candidate {
			return append([]string(nil), existing...), nil
		}
	}

	switch len(existing) {
	case 0:
		return []string{candidate}, nil
	case 1:
		if models.IsSanctionedPair(existing[0], candidate) {
			return []string{existing[0], candidate}, nil
		}
		return nil, appErrors.Clone(appErrors.ErrIncompatibleCombination,
			fmt.Sprintf("%s cannot be combined with %s", candidate, existing[0]))
	default:
		return nil, appErrors.Clone(appErrors.ErrMaxSelectionExceeded,
			fmt.Sprintf("%s cannot be added to {%s}", candidate, strings.Join(existing, ", ")))
	}
}

// ValidateSelectedTypes checks a complete submitted selection by replaying
// it through the add rules.
func ValidateSelectedTypes(selected []string) error {
	var current []string
	for _, id := range selected {
		next, err := ValidateSelection(current, id, SelectionAdd)
		if err != nil {
			return err
		}
		if len(next) == len(current) {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("duplicate leave type %q", id))
		}
		current = next
	}
	if len(current) == 0 {
		return appErrors.Clone(appErrors.ErrValidation, "at least one leave type must be selected")
	}
	return nil
}
