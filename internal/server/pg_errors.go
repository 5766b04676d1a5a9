package server

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr != nil {
		return strings.TrimSpace(pgErr.Code)
	}
	return ""
}

func isPgInvalidInput(err error) bool {
	switch pgErrorCode(err) {
	case "22P02", "22003", "22007", "22008":
		return true
	default:
		return false
	}
}

func isPgUniqueViolation(err error) bool {
	return pgErrorCode(err) == "23505"
}

// stablePgMessage maps constraint violations onto stable codes the
// adapter layer can match on; anything else passes through.
func stablePgMessage(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr != nil {
		switch strings.TrimSpace(pgErr.ConstraintName) {
		case "access_grants_active_scope_unique":
			return "DUPLICATE_ACTIVE_GRANT"
		case "users_email_unique":
			return "USER_EMAIL_EXISTS"
		case "config_values_scope_unique":
			return "DUPLICATE_CONFIG_VALUE"
		}
	}
	return err.Error()
}
