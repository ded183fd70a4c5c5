// Package assignee maps a step's assignee specification to concrete user ids.
package assignee

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/garyjia/oa-approval/internal/application/port"
	"github.com/garyjia/oa-approval/internal/domain/entity"
	domainwf "github.com/garyjia/oa-approval/internal/domain/workflow"
)

// Resolver resolves step assignees against the Directory.
type Resolver struct {
	directory port.Directory
}

// NewResolver creates a Resolver
func NewResolver(directory port.Directory) *Resolver {
	return &Resolver{directory: directory}
}

// Resolve returns the assignee set for step when activated for a request owned by owner.
// The result may be empty for role and quorum kinds; callers create a stalled task then.
func (r *Resolver) Resolve(ctx context.Context, step entity.StepDefinition, owner *entity.User) ([]int64, error) {
	switch step.AssigneeKind {
	case entity.AssigneeManager:
		return r.resolveManager(ctx, owner)

	case entity.AssigneeRole:
		users, err := r.directory.ListActiveByRole(ctx, strings.TrimSpace(step.AssigneeValue))
		if err != nil {
			return nil, fmt.Errorf("list role %q: %w", step.AssigneeValue, err)
		}
		return userIDs(users, 0), nil

	case entity.AssigneeUser:
		id, err := strconv.ParseInt(strings.TrimSpace(step.AssigneeValue), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: step %d user id %q", domainwf.ErrInvalidDefinition, step.StepOrder, step.AssigneeValue)
		}
		return []int64{id}, nil

	case entity.AssigneeUsersAny, entity.AssigneeUsersAll:
		value := strings.TrimSpace(step.AssigneeValue)
		if entity.AllUsersTokens[strings.ToLower(value)] {
			users, err := r.directory.ListActive(ctx)
			if err != nil {
				return nil, fmt.Errorf("list active users: %w", err)
			}
			return userIDs(users, owner.ID), nil
		}
		ids, err := ParseIDList(value)
		if err != nil {
			return nil, fmt.Errorf("%w: step %d: %v", domainwf.ErrInvalidDefinition, step.StepOrder, err)
		}
		return ids, nil

	default:
		return nil, fmt.Errorf("%w: unknown assignee kind %q", domainwf.ErrInvalidDefinition, step.AssigneeKind)
	}
}

func (r *Resolver) resolveManager(ctx context.Context, owner *entity.User) ([]int64, error) {
	if owner.ManagerID == nil {
		return nil, fmt.Errorf("%w: user %d", domainwf.ErrNoManagerConfigured, owner.ID)
	}

	manager, err := r.directory.GetUser(ctx, *owner.ManagerID)
	if err != nil {
		if errors.Is(err, domainwf.ErrNotFound) {
			return nil, fmt.Errorf("%w: manager %d of user %d does not exist", domainwf.ErrNoManagerConfigured, *owner.ManagerID, owner.ID)
		}
		return nil, fmt.Errorf("lookup manager: %w", err)
	}
	if !manager.Active {
		return nil, fmt.Errorf("%w: manager %d of user %d is inactive", domainwf.ErrNoManagerConfigured, manager.ID, owner.ID)
	}
	return []int64{manager.ID}, nil
}

// ValidateValue checks the assignee value is well-formed for kind.
func ValidateValue(kind, value string) error {
	value = strings.TrimSpace(value)
	switch kind {
	case entity.AssigneeManager:
		return nil
	case entity.AssigneeRole:
		if value == "" {
			return fmt.Errorf("role assignee needs a role name")
		}
		return nil
	case entity.AssigneeUser:
		if _, err := strconv.ParseInt(value, 10, 64); err != nil {
			return fmt.Errorf("user assignee %q is not a user id", value)
		}
		return nil
	case entity.AssigneeUsersAny, entity.AssigneeUsersAll:
		if entity.AllUsersTokens[strings.ToLower(value)] {
			return nil
		}
		ids, err := ParseIDList(value)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			return fmt.Errorf("%s assignee needs user ids or \"all\"", kind)
		}
		return nil
	case "":
		return fmt.Errorf("assignee_kind is required")
	default:
		return fmt.Errorf("unknown assignee kind %q", kind)
	}
}

// ParseIDList parses a comma or semicolon separated id list, dropping duplicates
// while keeping the first-seen order.
func ParseIDList(value string) ([]int64, error) {
	seen := make(map[int64]bool)
	var ids []int64
	for _, part := range strings.FieldsFunc(value, func(r rune) bool { return r == ',' || r == ';' }) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid user id %q", part)
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func userIDs(users []*entity.User, exclude int64) []int64 {
	ids := make([]int64, 0, len(users))
	for _, u := range users {
		if u.ID == exclude || !u.Active {
			continue
		}
		ids = append(ids, u.ID)
	}
	return ids
}
