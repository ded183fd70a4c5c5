// Package seed loads workflow definitions and directory users from YAML.
package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/garyjia/oa-approval/internal/application/catalog"
	"github.com/garyjia/oa-approval/internal/application/port"
	"github.com/garyjia/oa-approval/internal/domain/entity"
)

type workflowFile struct {
	Workflows []workflowRecord `yaml:"workflows"`
}

type userFile struct {
	Users []userRecord `yaml:"users"`
}

// workflowRecord mirrors entity.WorkflowDefinition; enabled defaults to true
// and scope to global.
type workflowRecord struct {
	Key         string                  `yaml:"key"`
	Name        string                  `yaml:"name"`
	RequestType string                  `yaml:"request_type"`
	Category    string                  `yaml:"category"`
	ScopeKind   string                  `yaml:"scope_kind"`
	ScopeValue  string                  `yaml:"scope_value"`
	Enabled     *bool                   `yaml:"enabled"`
	IsDefault   bool                    `yaml:"is_default"`
	Steps       []entity.StepDefinition `yaml:"steps"`
}

func (w workflowRecord) definition() *entity.WorkflowDefinition {
	def := &entity.WorkflowDefinition{
		Key:         w.Key,
		Name:        w.Name,
		RequestType: w.RequestType,
		Category:    w.Category,
		ScopeKind:   w.ScopeKind,
		ScopeValue:  w.ScopeValue,
		Enabled:     w.Enabled == nil || *w.Enabled,
		IsDefault:   w.IsDefault,
		Steps:       w.Steps,
	}
	if def.ScopeKind == "" {
		def.ScopeKind = entity.ScopeGlobal
	}
	return def
}

// userRecord mirrors entity.User; active defaults to true
type userRecord struct {
	ID          int64  `yaml:"id"`
	Username    string `yaml:"username"`
	DisplayName string `yaml:"display_name"`
	Role        string `yaml:"role"`
	ManagerID   *int64 `yaml:"manager_id"`
	Department  string `yaml:"department"`
	Active      *bool  `yaml:"active"`
	LarkOpenID  string `yaml:"lark_open_id"`
}

func (u userRecord) user() *entity.User {
	return &entity.User{
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		Role:        u.Role,
		ManagerID:   u.ManagerID,
		Department:  u.Department,
		Active:      u.Active == nil || *u.Active,
		LarkOpenID:  u.LarkOpenID,
	}
}

// ParseWorkflows decodes a workflows document
func ParseWorkflows(r io.Reader) ([]*entity.WorkflowDefinition, error) {
	var doc workflowFile
	if err := decode(r, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse workflows: %w", err)
	}
	defs := make([]*entity.WorkflowDefinition, 0, len(doc.Workflows))
	for _, rec := range doc.Workflows {
		defs = append(defs, rec.definition())
	}
	return defs, nil
}

// ParseUsers decodes a users document
func ParseUsers(r io.Reader) ([]*entity.User, error) {
	var doc userFile
	if err := decode(r, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse users: %w", err)
	}
	users := make([]*entity.User, 0, len(doc.Users))
	for _, rec := range doc.Users {
		users = append(users, rec.user())
	}
	return users, nil
}

func decode(r io.Reader, out interface{}) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Result counts seeded records
type Result struct {
	Users     int `json:"users"`
	Workflows int `json:"workflows"`
}

// Seeder writes parsed records through the catalog and the user store so
// that seeds get the same validation as API writes.
type Seeder struct {
	catalog catalog.Catalog
	users   port.UserRepository
	logger  *zap.Logger
}

// NewSeeder creates a new seeder
func NewSeeder(cat catalog.Catalog, users port.UserRepository, logger *zap.Logger) *Seeder {
	return &Seeder{catalog: cat, users: users, logger: logger}
}

// SeedUsers upserts every user of the document
func (s *Seeder) SeedUsers(ctx context.Context, r io.Reader) (int, error) {
	users, err := ParseUsers(r)
	if err != nil {
		return 0, err
	}
	for i, user := range users {
		if err := s.users.Upsert(ctx, user); err != nil {
			return i, fmt.Errorf("user %d (%s): %w", user.ID, user.Username, err)
		}
	}
	s.logger.Info("Users seeded", zap.Int("count", len(users)))
	return len(users), nil
}

// SeedWorkflows upserts every workflow of the document through the catalog
func (s *Seeder) SeedWorkflows(ctx context.Context, r io.Reader) (int, error) {
	defs, err := ParseWorkflows(r)
	if err != nil {
		return 0, err
	}
	for i, def := range defs {
		if _, err := s.catalog.Upsert(ctx, def); err != nil {
			return i, fmt.Errorf("workflow %q: %w", def.Key, err)
		}
	}
	s.logger.Info("Workflows seeded", zap.Int("count", len(defs)))
	return len(defs), nil
}

// SeedFiles seeds users then workflows from the given paths. An empty path
// is skipped.
func (s *Seeder) SeedFiles(ctx context.Context, usersPath, workflowsPath string) (Result, error) {
	var res Result

	if usersPath != "" {
		n, err := seedFile(usersPath, func(r io.Reader) (int, error) { return s.SeedUsers(ctx, r) })
		res.Users = n
		if err != nil {
			return res, err
		}
	}
	if workflowsPath != "" {
		n, err := seedFile(workflowsPath, func(r io.Reader) (int, error) { return s.SeedWorkflows(ctx, r) })
		res.Workflows = n
		if err != nil {
			return res, err
		}
	}
	return res, nil
}

func seedFile(path string, fn func(io.Reader) (int, error)) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open seed file: %w", err)
	}
	defer f.Close()

	n, err := fn(f)
	if err != nil {
		return n, fmt.Errorf("%s: %w", path, err)
	}
	return n, nil
}
