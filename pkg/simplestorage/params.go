package simplestorage

import (
	"fmt"

	"github.com/google/uuid"
)

// idsFromParams extracts the id filter. present is false when params carry
// no id at all.
func idsFromParams(params Params) (ids []uuid.UUID, present bool, err error) {
	raw, ok := params[ParamID]
	if !ok || raw == nil {
		return nil, false, nil
	}
	switch v := raw.(type) {
	case uuid.UUID:
		return []uuid.UUID{v}, true, nil
	case string:
		id, err := parseID(v)
		if err != nil {
			return nil, true, err
		}
		return []uuid.UUID{id}, true, nil
	case []uuid.UUID:
		return v, true, nil
	case []string:
		ids = make([]uuid.UUID, 0, len(v))
		for _, s := range v {
			id, err := parseID(s)
			if err != nil {
				return nil, true, err
			}
			ids = append(ids, id)
		}
		return ids, true, nil
	case []any:
		ids = make([]uuid.UUID, 0, len(v))
		for _, item := range v {
			switch x := item.(type) {
			case uuid.UUID:
				ids = append(ids, x)
			case string:
				id, err := parseID(x)
				if err != nil {
					return nil, true, err
				}
				ids = append(ids, id)
			default:
				return nil, true, fmt.Errorf("unsupported id value of type %T", item)
			}
		}
		return ids, true, nil
	default:
		return nil, true, fmt.Errorf("unsupported id parameter of type %T", raw)
	}
}

// singleIDFromParams resolves the one id a removal targets.
func singleIDFromParams(params Params) (uuid.UUID, error) {
	ids, present, err := idsFromParams(params)
	if err != nil {
		return uuid.Nil, newValidationError("resolve id", []string{err.Error()})
	}
	if !present || len(ids) != 1 {
		return uuid.Nil, newValidationError("resolve id", []string{"exactly one id is required"})
	}
	return ids[0], nil
}

func parseID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid id %q: %w", s, err)
	}
	return id, nil
}
