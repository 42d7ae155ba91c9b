// Package identity maps user-facing handles to stable user ids.
package identity

import (
	"database/sql"
	"fmt"
	"strconv"

	apperrors "partyhub/errors"
)

type Resolver struct {
	db *sql.DB
}

func NewResolver(db *sql.DB) *Resolver {
	return &Resolver{db: db}
}

// Resolve looks up a handle case-insensitively and returns the user id.
func (r *Resolver) Resolve(handle string) (int64, error) {
	var id int64
	err := r.db.QueryRow("SELECT id FROM users WHERE username = ? COLLATE NOCASE", handle).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("user %q: %w", handle, apperrors.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("resolving handle %q: %w", handle, err)
	}
	return id, nil
}

// ResolveRef accepts either a raw numeric user id or a handle. A numeric ref
// must still name an existing user.
func (r *Resolver) ResolveRef(ref string) (int64, error) {
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		var exists bool
		if err := r.db.QueryRow("SELECT EXISTS(SELECT 1 FROM users WHERE id = ?)", id).Scan(&exists); err != nil {
			return 0, fmt.Errorf("checking user %d: %w", id, err)
		}
		if !exists {
			return 0, fmt.Errorf("user %d: %w", id, apperrors.ErrNotFound)
		}
		return id, nil
	}
	return r.Resolve(ref)
}

// Handle is the reverse lookup, used to denormalize ids at the boundary.
func (r *Resolver) Handle(id int64) (string, error) {
	var username string
	err := r.db.QueryRow("SELECT username FROM users WHERE id = ?", id).Scan(&username)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("user %d: %w", id, apperrors.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("looking up user %d: %w", id, err)
	}
	return username, nil
}
