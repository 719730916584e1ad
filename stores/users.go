package stores

import (
	"context"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/gobuffalo/nulls"
	"github.com/lefinal/arena-server/errors"
	"github.com/lefinal/arena-server/messages"
)

// User holds information regarding a registered user.
type User struct {
	// ID identifies the player.
	ID messages.UserID
	// Rating is the current ELO rating of the player.
	Rating int
	// BattleTag is something like B-15.
	BattleTag string
	// CallSign is how the player is called.
	CallSign string
	// Mantra is a customizable text that may be shown when the player joins a
	// match.
	Mantra nulls.String
	// JoinDate is when the player was created.
	JoinDate time.Time
}

// Users retrieves all registered users ordered by rating.
func (m *Mall) Users(ctx context.Context) ([]User, error) {
	q, _, err := m.dialect.From(goqu.T("users")).
		Select(goqu.C("id"), goqu.C("rating"), goqu.C("battle_tag"), goqu.C("call_sign"),
			goqu.C("mantra"), goqu.C("join_date")).
		Order(goqu.C("rating").Desc()).ToSQL()
	if err != nil {
		return nil, errors.NewQueryToSQLError(err, nil)
	}
	rows, err := m.db.QueryContext(ctx, q)
	if err != nil {
		return nil, errors.NewExecQueryError(err, q, nil)
	}
	defer closeRows(rows)
	users := make([]User, 0)
	for rows.Next() {
		var user User
		err = rows.Scan(&user.ID, &user.Rating, &user.BattleTag, &user.CallSign,
			&user.Mantra, &user.JoinDate)
		if err != nil {
			return nil, errors.NewScanSingleDBRowError("scan user row", err, errors.Details{"query": q})
		}
		users = append(users, user)
	}
	return users, nil
}

// UserByID retrieves the User with the given id.
func (m *Mall) UserByID(ctx context.Context, userID messages.UserID) (User, error) {
	q, _, err := m.dialect.From(goqu.T("users")).
		Select(goqu.C("id"), goqu.C("rating"), goqu.C("battle_tag"), goqu.C("call_sign"),
			goqu.C("mantra"), goqu.C("join_date")).
		Where(goqu.C("id").Eq(userID)).ToSQL()
	if err != nil {
		return User{}, errors.NewQueryToSQLError(err, errors.Details{"user": userID})
	}
	var user User
	err = m.db.QueryRowContext(ctx, q).Scan(&user.ID, &user.Rating, &user.BattleTag,
		&user.CallSign, &user.Mantra, &user.JoinDate)
	if err != nil {
		return User{}, errors.Error{
			Code:    errors.ErrNotFound,
			Kind:    errors.KindUnknownUser,
			Err:     err,
			Message: fmt.Sprintf("user %v not found", userID),
			Details: errors.Details{"user": userID, "query": q},
		}
	}
	return user, nil
}

// UserRatingByID retrieves the current rating of the user with the given id.
// Used for rating snapshots when a participant joins a match.
func (m *Mall) UserRatingByID(ctx context.Context, userID messages.UserID) (int, error) {
	user, err := m.UserByID(ctx, userID)
	if err != nil {
		return 0, errors.Wrap(err, "user by id", nil)
	}
	return user.Rating, nil
}

// CreateUser creates the given User and returns it with the creation fields
// set.
func (m *Mall) CreateUser(ctx context.Context, user User) (User, error) {
	user.JoinDate = time.Now()
	q, _, err := m.dialect.Insert(goqu.T("users")).Rows(goqu.Record{
		"id":         user.ID,
		"rating":     user.Rating,
		"battle_tag": user.BattleTag,
		"call_sign":  user.CallSign,
		"mantra":     user.Mantra,
		"join_date":  user.JoinDate,
	}).ToSQL()
	if err != nil {
		return User{}, errors.NewQueryToSQLError(err, errors.Details{"user": user.ID})
	}
	result, err := m.db.ExecContext(ctx, q)
	if err != nil {
		return User{}, errors.NewExecQueryError(err, q, errors.Details{"user": user.ID})
	}
	err = assureNRowsAffected(result, 1)
	if err != nil {
		return User{}, errors.Wrap(err, "assure created", nil)
	}
	return user, nil
}

// UpdateUserRating applies the given rating delta to the user.
func (m *Mall) UpdateUserRating(ctx context.Context, userID messages.UserID, delta int) error {
	q, err := m.updateUserRatingQuery(userID, delta)
	if err != nil {
		return errors.Wrap(err, "build update rating query", nil)
	}
	result, err := m.db.ExecContext(ctx, q)
	if err != nil {
		return errors.NewExecQueryError(err, q, errors.Details{"user": userID})
	}
	err = assureOneRowAffectedForNotFound(result, fmt.Sprintf("user %v not found", userID),
		"users", userID, q)
	if err != nil {
		return errors.Wrap(err, "assure found", nil)
	}
	return nil
}

func (m *Mall) updateUserRatingQuery(userID messages.UserID, delta int) (string, error) {
	q, _, err := m.dialect.Update(goqu.T("users")).
		Set(goqu.Record{
			"rating": goqu.L("rating + ?", delta),
		}).
		Where(goqu.C("id").Eq(userID)).ToSQL()
	if err != nil {
		return "", errors.NewQueryToSQLError(err, errors.Details{"user": userID, "delta": delta})
	}
	return q, nil
}
