package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/glewis05/propel-mcp/modules/access/domain/ports"
	accesstypes "github.com/glewis05/propel-mcp/modules/access/domain/types"
	"github.com/glewis05/propel-mcp/pkg/httperr"
	"github.com/glewis05/propel-mcp/pkg/uuidv7"
)

// NewUserInput is the request body of the user-creation operation.
type NewUserInput struct {
	Name                string `json:"name"`
	Email               string `json:"email"`
	Organization        string `json:"organization,omitempty"`
	JobRole             string `json:"job_role,omitempty"`
	Credentials         string `json:"credentials,omitempty"`
	IsBusinessAssociate bool   `json:"is_business_associate,omitempty"`
}

// CreateUser registers a user with no grants. Duplicate emails are a
// conflict; comparison uses the normalized form.
func (e *Engine) CreateUser(ctx context.Context, in NewUserInput, actor string) (accesstypes.User, error) {
	if strings.TrimSpace(in.Name) == "" {
		return accesstypes.User{}, httperr.NewBadRequest("name is required")
	}
	email, ok := accesstypes.NormalizeEmail(in.Email)
	if !ok {
		return accesstypes.User{}, httperr.NewBadRequest(fmt.Sprintf("invalid email %q", in.Email))
	}

	var created accesstypes.User
	err := e.store.Run(ctx, ports.ModeCommit, func(tx ports.Tx) error {
		if _, exists, err := tx.GetUserByEmail(ctx, email); err != nil {
			return err
		} else if exists {
			return httperr.NewConflict(fmt.Sprintf("user %s already exists", email))
		}
		created = accesstypes.User{
			ID:                  uuidv7.MustNewString(),
			Name:                strings.TrimSpace(in.Name),
			Email:               email,
			Organization:        strings.TrimSpace(in.Organization),
			JobRole:             strings.TrimSpace(in.JobRole),
			Credentials:         strings.TrimSpace(in.Credentials),
			Status:              accesstypes.UserActive,
			IsBusinessAssociate: in.IsBusinessAssociate,
			CreatedAt:           e.now(),
		}
		if err := tx.CreateUser(ctx, created); err != nil {
			return err
		}
		return auditUser(ctx, tx, created, actor)
	})
	if err != nil {
		return accesstypes.User{}, err
	}
	e.log.Info().Str("email", email).Msg("user created")
	return created, nil
}
