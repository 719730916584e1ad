package stores

import (
	"context"
	nativeerrors "errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/gobuffalo/nulls"
	"github.com/jackc/pgconn"
	"github.com/lefinal/arena-server/arena"
	"github.com/lefinal/arena-server/errors"
	"github.com/lefinal/arena-server/messages"
)

// pgErrCodeUniqueViolation is the postgres error code for violated unique
// constraints.
const pgErrCodeUniqueViolation = "23505"

// Match holds the persisted match record.
type Match struct {
	// ID identifies the match.
	ID messages.MatchID
	// GameMode is the mode the match uses.
	GameMode messages.GameMode
	// UserA is the paired user for slot 0.
	UserA messages.UserID
	// UserB is the paired user for slot 1.
	UserB messages.UserID
	// State is the last persisted match state.
	State messages.MatchState
	// Created is when the match was created.
	Created time.Time
}

// SaveMatch persists the given freshly created Match.
func (m *Mall) SaveMatch(ctx context.Context, match Match) error {
	q, _, err := m.dialect.Insert(goqu.T("matches")).Rows(goqu.Record{
		"id":        match.ID,
		"game_mode": match.GameMode,
		"user_a":    match.UserA,
		"user_b":    match.UserB,
		"state":     match.State,
		"created":   match.Created,
	}).ToSQL()
	if err != nil {
		return errors.NewQueryToSQLError(err, errors.Details{"match": match.ID})
	}
	result, err := m.db.ExecContext(ctx, q)
	if err != nil {
		return errors.NewExecQueryError(err, q, errors.Details{"match": match.ID})
	}
	err = assureNRowsAffected(result, 1)
	if err != nil {
		return errors.Wrap(err, "assure created", nil)
	}
	return nil
}

// MatchByID retrieves the persisted Match with the given id.
func (m *Mall) MatchByID(ctx context.Context, matchID messages.MatchID) (Match, error) {
	q, _, err := m.dialect.From(goqu.T("matches")).
		Select(goqu.C("id"), goqu.C("game_mode"), goqu.C("user_a"), goqu.C("user_b"),
			goqu.C("state"), goqu.C("created")).
		Where(goqu.C("id").Eq(matchID)).ToSQL()
	if err != nil {
		return Match{}, errors.NewQueryToSQLError(err, errors.Details{"match": matchID})
	}
	var match Match
	err = m.db.QueryRowContext(ctx, q).Scan(&match.ID, &match.GameMode, &match.UserA,
		&match.UserB, &match.State, &match.Created)
	if err != nil {
		return Match{}, errors.Error{
			Code:    errors.ErrNotFound,
			Kind:    errors.KindUnknownMatch,
			Err:     err,
			Message: fmt.Sprintf("match %v not found", matchID),
			Details: errors.Details{"match": matchID, "query": q},
		}
	}
	return match, nil
}

// SetMatchState updates the persisted state of the match.
func (m *Mall) SetMatchState(ctx context.Context, matchID messages.MatchID, state messages.MatchState) error {
	q, _, err := m.dialect.Update(goqu.T("matches")).
		Set(goqu.Record{"state": state}).
		Where(goqu.C("id").Eq(matchID)).ToSQL()
	if err != nil {
		return errors.NewQueryToSQLError(err, errors.Details{"match": matchID})
	}
	result, err := m.db.ExecContext(ctx, q)
	if err != nil {
		return errors.NewExecQueryError(err, q, errors.Details{"match": matchID})
	}
	err = assureOneRowAffectedForNotFound(result, fmt.Sprintf("match %v not found", matchID),
		"matches", matchID, q)
	if err != nil {
		return errors.Wrap(err, "assure found", nil)
	}
	return nil
}

// SaveMatchResult persists the match result, marks the match as finished and
// applies the rating deltas to both users, all in one transaction. Each match
// result may be saved exactly once, a second save means that the terminal
// transition was computed twice and is refused.
func (m *Mall) SaveMatchResult(ctx context.Context, result arena.MatchResult) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewDBTxBeginError(err)
	}
	var winner nulls.String
	if result.Winner != "" {
		winner = nulls.NewString(string(result.Winner))
	}
	q, _, err := m.dialect.Insert(goqu.T("match_results")).Rows(goqu.Record{
		"match_id":       result.MatchID,
		"reason":         result.Reason,
		"winner":         winner,
		"draw":           result.Draw,
		"start_ts":       result.Start,
		"end_ts":         result.End,
		"score_a":        result.Participants[0].Score,
		"score_b":        result.Participants[1].Score,
		"rating_delta_a": result.Participants[0].RatingDelta,
		"rating_delta_b": result.Participants[1].RatingDelta,
	}).ToSQL()
	if err != nil {
		rollbackTx(tx, "insert match result query to sql failed")
		return errors.NewQueryToSQLError(err, errors.Details{"match": result.MatchID})
	}
	_, err = tx.ExecContext(ctx, q)
	if err != nil {
		rollbackTx(tx, "insert match result failed")
		var pgErr *pgconn.PgError
		if nativeerrors.As(err, &pgErr) && pgErr.Code == pgErrCodeUniqueViolation {
			return errors.Error{
				Code:    errors.ErrInternal,
				Kind:    errors.KindShouldNotHappen,
				Err:     err,
				Message: fmt.Sprintf("duplicate result for match %v", result.MatchID),
				Details: errors.Details{"match": result.MatchID},
			}
		}
		return errors.NewExecQueryError(err, q, errors.Details{"match": result.MatchID})
	}
	q, _, err = m.dialect.Update(goqu.T("matches")).
		Set(goqu.Record{"state": messages.MatchStateFinished}).
		Where(goqu.C("id").Eq(result.MatchID)).ToSQL()
	if err != nil {
		rollbackTx(tx, "update match state query to sql failed")
		return errors.NewQueryToSQLError(err, errors.Details{"match": result.MatchID})
	}
	_, err = tx.ExecContext(ctx, q)
	if err != nil {
		rollbackTx(tx, "update match state failed")
		return errors.NewExecQueryError(err, q, errors.Details{"match": result.MatchID})
	}
	for _, participant := range result.Participants {
		q, err = m.updateUserRatingQuery(participant.User, participant.RatingDelta)
		if err != nil {
			rollbackTx(tx, "build update rating query failed")
			return errors.Wrap(err, "build update rating query", nil)
		}
		_, err = tx.ExecContext(ctx, q)
		if err != nil {
			rollbackTx(tx, "update user rating failed")
			return errors.NewExecQueryError(err, q, errors.Details{"user": participant.User})
		}
	}
	err = tx.Commit()
	if err != nil {
		return errors.NewDBTxCommitError(err)
	}
	return nil
}
