package repository

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	"github.com/kazuhito/yoyaku/internal/model"
)

// RuleStore persists operator-authored capacity rules. Rules are never
// hard-deleted; DeactivateByIDPrefix flips the active flag so the audit
// history of every denial survives.
type RuleStore interface {
	Insert(ctx context.Context, r *model.Rule) error
	ActiveByStore(ctx context.Context, storeID string) ([]model.Rule, error)
	DeactivateByIDPrefix(ctx context.Context, storeID, prefix string) (*model.Rule, error)
}

// RuleRepo is the MySQL RuleStore. Set and list fields (scope_ids,
// weekdays) are stored comma-joined; dates and times keep their canonical
// string encodings so SQL comparisons match the in-process predicates.
type RuleRepo struct {
	db *sql.DB
}

// NewRuleRepo returns a RuleRepo bound to the given database.
func NewRuleRepo(db *sql.DB) *RuleRepo { return &RuleRepo{db: db} }

const ruleColumns = `id, store_id, scope_type, scope_ids, date_start, date_end, weekdays,
       time_start, time_end, limit_type, limit_value, count_unit, priority, active,
       description, created_at, created_by`

// Insert stores a validated rule.
func (r *RuleRepo) Insert(ctx context.Context, rule *model.Rule) error {
	const q = `INSERT INTO rules (id, store_id, scope_type, scope_ids, date_start, date_end,
               weekdays, time_start, time_end, limit_type, limit_value, count_unit,
               priority, active, description, created_at, created_by)
               VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, q,
		rule.ID, rule.StoreID, string(rule.Scope), joinStrings(rule.ScopeIDs),
		nullable(rule.DateStart), nullable(rule.DateEnd), joinInts(rule.Weekdays),
		nullable(rule.TimeStart), nullable(rule.TimeEnd), string(rule.Limit),
		rule.LimitValue, string(rule.CountUnit), rule.Priority, rule.Active,
		rule.Description, rule.CreatedAt.UTC().Format("2006-01-02 15:04:05"), rule.CreatedBy,
	)
	return err
}

// ActiveByStore returns the store's active rules. Callers must not rely
// on the returned order; the matcher imposes its own.
func (r *RuleRepo) ActiveByStore(ctx context.Context, storeID string) ([]model.Rule, error) {
	const q = `SELECT ` + ruleColumns + ` FROM rules WHERE store_id = ? AND active = 1`
	rows, err := r.db.QueryContext(ctx, q, storeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	rules := make([]model.Rule, 0)
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rules, nil
}

// DeactivateByIDPrefix soft-deletes the first active rule whose ID starts
// with the given prefix and returns it. ErrRuleNotFound when nothing
// matches.
func (r *RuleRepo) DeactivateByIDPrefix(ctx context.Context, storeID, prefix string) (*model.Rule, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	const sel = `SELECT ` + ruleColumns + ` FROM rules
                 WHERE store_id = ? AND active = 1 AND id LIKE CONCAT(?, '%')
                 ORDER BY created_at ASC LIMIT 1 FOR UPDATE`
	row := tx.QueryRowContext(ctx, sel, storeID, prefix)
	rule, err := scanRule(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrRuleNotFound
		}
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `UPDATE rules SET active = 0 WHERE id = ?`, rule.ID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	rule.Active = false
	return &rule, nil
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRule(row rowScanner) (model.Rule, error) {
	var rule model.Rule
	var scopeIDs, weekdays string
	var dateStart, dateEnd, timeStart, timeEnd sql.NullString
	err := row.Scan(
		&rule.ID, &rule.StoreID, (*string)(&rule.Scope), &scopeIDs,
		&dateStart, &dateEnd, &weekdays,
		&timeStart, &timeEnd, (*string)(&rule.Limit), &rule.LimitValue,
		(*string)(&rule.CountUnit), &rule.Priority, &rule.Active,
		&rule.Description, &rule.CreatedAt, &rule.CreatedBy,
	)
	if err != nil {
		return model.Rule{}, err
	}
	rule.ScopeIDs = splitStrings(scopeIDs)
	rule.Weekdays = splitInts(weekdays)
	rule.DateStart = dateStart.String
	rule.DateEnd = dateEnd.String
	rule.TimeStart = timeStart.String
	rule.TimeEnd = timeEnd.String
	return rule, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func joinStrings(ss []string) string { return strings.Join(ss, ",") }

func splitStrings(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func joinInts(ns []int) string {
	if len(ns) == 0 {
		return ""
	}
	parts := make([]string, 0, len(ns))
	for _, n := range ns {
		parts = append(parts, strconv.Itoa(n))
	}
	return strings.Join(parts, ",")
}

func splitInts(s string) []int {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		if n, err := strconv.Atoi(p); err == nil {
			out = append(out, n)
		}
	}
	return out
}
