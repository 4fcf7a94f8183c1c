package postgresql

import (
	"context"
	"errors"
	"fmt"

	"github.com/cmlabs-hris/payroll-backend-go/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-backend-go/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

// roleOwner may approve or reject any run.
const roleOwner = "owner"

type roleAuthorizer struct {
	db database.Querier
}

func NewRoleAuthorizer(db database.Querier) payroll.Authorizer {
	return &roleAuthorizer{db: db}
}

func (a *roleAuthorizer) CanApprove(ctx context.Context, userID, runID string) (bool, error) {
	q := GetQuerier(ctx, a.db)

	var role string
	err := q.QueryRow(ctx, `SELECT role FROM users WHERE id = $1`, userID).Scan(&role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || pgErrorCode(err) == invalidTextCode {
			return false, nil
		}
		return false, fmt.Errorf("failed to get user role: %w", err)
	}

	return role == roleOwner, nil
}
