package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/Dan9191/decembrrr/internal/apperr"
	"github.com/Dan9191/decembrrr/internal/models"
)

// Repository provides database operations against the hosted Postgres schema.
// Stored procedures (run_daily_deduction, rollback_no_class_date,
// lookup_student) live in the database and are only invoked from here.
type Repository struct {
	db *sql.DB
}

// NewRepository initializes a new repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const classColumns = `id, name, president_id, daily_amount, collection_frequency, collection_days,
		date_initiated, fund_goal, timezone, created_at, updated_at`

func scanClass(row interface{ Scan(...interface{}) error }) (*models.Class, error) {
	var (
		c    models.Class
		days pq.Int64Array
		goal decimal.NullDecimal
		freq string
	)
	err := row.Scan(&c.ID, &c.Name, &c.PresidentID, &c.DailyAmount, &freq, &days,
		&c.DateInitiated, &goal, &c.Timezone, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.CollectionFrequency = models.CollectionFrequency(freq)
	c.CollectionDays = make([]int, len(days))
	for i, d := range days {
		c.CollectionDays[i] = int(d)
	}
	if goal.Valid {
		c.FundGoal = &goal.Decimal
	}
	return &c, nil
}

// GetClass retrieves a class by id
func (r *Repository) GetClass(ctx context.Context, id uuid.UUID) (*models.Class, error) {
	query := `SELECT ` + classColumns + ` FROM public.classes WHERE id = $1`
	c, err := scanClass(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("CLASS_NOT_FOUND", "class %s not found", id)
	}
	if err != nil {
		return nil, mapError(err, "failed to find class")
	}
	return c, nil
}

// UpdateClass stores the president-editable class settings
func (r *Repository) UpdateClass(ctx context.Context, c *models.Class) error {
	days := make(pq.Int64Array, len(c.CollectionDays))
	for i, d := range c.CollectionDays {
		days[i] = int64(d)
	}
	var goal decimal.NullDecimal
	if c.FundGoal != nil {
		goal = decimal.NullDecimal{Decimal: *c.FundGoal, Valid: true}
	}
	query := `
		UPDATE public.classes
		SET name = $2, daily_amount = $3, collection_frequency = $4, collection_days = $5,
			date_initiated = $6, fund_goal = $7, timezone = $8, updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
		RETURNING updated_at`
	err := r.db.QueryRowContext(ctx, query, c.ID, c.Name, c.DailyAmount, string(c.CollectionFrequency),
		days, c.DateInitiated.Format("2006-01-02"), goal, c.Timezone).Scan(&c.UpdatedAt)
	if err == sql.ErrNoRows {
		return apperr.NotFound("CLASS_NOT_FOUND", "class %s not found", c.ID)
	}
	if err != nil {
		return mapError(err, "failed to update class")
	}
	return nil
}

const memberColumns = `id, class_id, student_id, name, COALESCE(email, ''), balance, is_active, created_at`

func scanMember(row interface{ Scan(...interface{}) error }) (*models.Member, error) {
	var m models.Member
	err := row.Scan(&m.ID, &m.ClassID, &m.StudentID, &m.Name, &m.Email, &m.Balance, &m.IsActive, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// QueryMembers retrieves the members of a class ordered by name
func (r *Repository) QueryMembers(ctx context.Context, classID uuid.UUID) ([]models.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM public.profiles WHERE class_id = $1 ORDER BY name`
	rows, err := r.db.QueryContext(ctx, query, classID)
	if err != nil {
		return nil, mapError(err, "failed to query members")
	}
	defer rows.Close()

	var members []models.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, mapError(err, "failed to scan member")
		}
		members = append(members, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, "failed to query members")
	}
	return members, nil
}

// GetMember retrieves a member profile by id
func (r *Repository) GetMember(ctx context.Context, id uuid.UUID) (*models.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM public.profiles WHERE id = $1`
	m, err := scanMember(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("PROFILE_NOT_FOUND", "member %s not found", id)
	}
	if err != nil {
		return nil, mapError(err, "failed to find member")
	}
	return m, nil
}

// UpdateBalance overwrites a member balance
func (r *Repository) UpdateBalance(ctx context.Context, memberID uuid.UUID, balance decimal.Decimal) error {
	res, err := r.db.ExecContext(ctx, `UPDATE public.profiles SET balance = $2 WHERE id = $1`, memberID, balance)
	if err != nil {
		return mapError(err, "failed to update balance")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperr.NotFound("PROFILE_NOT_FOUND", "member %s not found", memberID)
	}
	return nil
}

// QueryTransactions retrieves ledger entries matching filter, oldest first
func (r *Repository) QueryTransactions(ctx context.Context, f models.TransactionFilter) ([]models.Transaction, error) {
	var (
		conds []string
		args  []interface{}
	)
	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.ClassID != uuid.Nil {
		add("class_id = $%d", f.ClassID)
	}
	if f.ProfileID != uuid.Nil {
		add("profile_id = $%d", f.ProfileID)
	}
	if f.Type != "" {
		add("type = $%d", string(f.Type))
	}
	if !f.From.IsZero() {
		add("created_at >= $%d", f.From)
	}
	if !f.To.IsZero() {
		add("created_at < $%d", f.To)
	}

	query := `
		SELECT id, class_id, profile_id, type, amount, balance_before, balance_after, COALESCE(note, ''), created_at
		FROM public.transactions`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, "failed to query transactions")
	}
	defer rows.Close()

	var txs []models.Transaction
	for rows.Next() {
		var (
			tx  models.Transaction
			typ string
		)
		if err := rows.Scan(&tx.ID, &tx.ClassID, &tx.ProfileID, &typ, &tx.Amount,
			&tx.BalanceBefore, &tx.BalanceAfter, &tx.Note, &tx.CreatedAt); err != nil {
			return nil, mapError(err, "failed to scan transaction")
		}
		tx.Type = models.TransactionType(typ)
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, "failed to query transactions")
	}
	return txs, nil
}

// InsertTransaction appends a ledger entry. A rejected write is reported as RECORD_FAILED.
func (r *Repository) InsertTransaction(ctx context.Context, tx *models.Transaction) error {
	query := `
		INSERT INTO public.transactions (class_id, profile_id, type, amount, balance_before, balance_after, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, CURRENT_TIMESTAMP)
		RETURNING id, created_at`
	err := r.db.QueryRowContext(ctx, query, tx.ClassID, tx.ProfileID, string(tx.Type), tx.Amount,
		tx.BalanceBefore, tx.BalanceAfter, tx.Note).Scan(&tx.ID, &tx.CreatedAt)
	if err != nil {
		if isNetworkError(err) {
			return apperr.Unreachable(err)
		}
		return apperr.RecordFailed(err)
	}
	return nil
}

// ListNoClassDates retrieves the exceptions of a class ordered by date
func (r *Repository) ListNoClassDates(ctx context.Context, classID uuid.UUID) ([]models.NoClassDate, error) {
	query := `
		SELECT id, class_id, date, COALESCE(reason, ''), created_at
		FROM public.no_class_dates
		WHERE class_id = $1
		ORDER BY date`
	rows, err := r.db.QueryContext(ctx, query, classID)
	if err != nil {
		return nil, mapError(err, "failed to list no-class dates")
	}
	defer rows.Close()

	var list []models.NoClassDate
	for rows.Next() {
		e, err := scanNoClass(rows)
		if err != nil {
			return nil, mapError(err, "failed to scan no-class date")
		}
		list = append(list, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, "failed to list no-class dates")
	}
	return list, nil
}

func scanNoClass(row interface{ Scan(...interface{}) error }) (*models.NoClassDate, error) {
	var (
		e models.NoClassDate
		d time.Time
	)
	if err := row.Scan(&e.ID, &e.ClassID, &d, &e.Reason, &e.CreatedAt); err != nil {
		return nil, err
	}
	e.Date = d.Format("2006-01-02")
	return &e, nil
}

// GetNoClassDate retrieves an exception by id
func (r *Repository) GetNoClassDate(ctx context.Context, id uuid.UUID) (*models.NoClassDate, error) {
	query := `SELECT id, class_id, date, COALESCE(reason, ''), created_at FROM public.no_class_dates WHERE id = $1`
	e, err := scanNoClass(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("EXCEPTION_NOT_FOUND", "no-class entry %s not found", id)
	}
	if err != nil {
		return nil, mapError(err, "failed to find no-class date")
	}
	return e, nil
}

// InsertNoClassDate stores an exception. The (class_id, date) unique index
// turns a second mark into DUPLICATE_EXCEPTION.
func (r *Repository) InsertNoClassDate(ctx context.Context, e *models.NoClassDate) error {
	query := `
		INSERT INTO public.no_class_dates (class_id, date, reason, created_at)
		VALUES ($1, $2, $3, CURRENT_TIMESTAMP)
		RETURNING id, created_at`
	err := r.db.QueryRowContext(ctx, query, e.ClassID, e.Date, e.Reason).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return apperr.DuplicateException(e.Date)
		}
		return mapError(err, "failed to mark no-class date")
	}
	return nil
}

// DeleteNoClassDate removes an exception
func (r *Repository) DeleteNoClassDate(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM public.no_class_dates WHERE id = $1`, id)
	if err != nil {
		return mapError(err, "failed to unmark no-class date")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperr.NotFound("EXCEPTION_NOT_FOUND", "no-class entry %s not found", id)
	}
	return nil
}

// RunDailyDeduction invokes the daily deduction procedure for date (YYYY-MM-DD)
// and returns how many deductions it posted. The procedure is idempotent per
// class and date.
func (r *Repository) RunDailyDeduction(ctx context.Context, date string) (int, error) {
	var n sql.NullInt64
	if err := r.db.QueryRowContext(ctx, `SELECT run_daily_deduction($1::date)`, date).Scan(&n); err != nil {
		return 0, mapError(err, "failed to run daily deduction")
	}
	return int(n.Int64), nil
}

// RollbackNoClassDate asks the ledger to reverse deductions posted on date.
func (r *Repository) RollbackNoClassDate(ctx context.Context, classID uuid.UUID, date string) (*models.RollbackResult, error) {
	var raw []byte
	err := r.db.QueryRowContext(ctx, `SELECT rollback_no_class_date($1, $2::date)`, classID, date).Scan(&raw)
	if err != nil {
		return nil, mapError(err, "failed to roll back deductions")
	}
	var res models.RollbackResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, apperr.Internal(err, "malformed rollback reply")
	}
	if res.RolledBackCount < 0 {
		return nil, apperr.Internal(nil, "rollback reported %d reversed entries", res.RolledBackCount)
	}
	return &res, nil
}

type lookupRow struct {
	Found     bool            `json:"found"`
	InClass   bool            `json:"in_class"`
	ID        *uuid.UUID      `json:"id"`
	ClassID   *uuid.UUID      `json:"class_id"`
	StudentID string          `json:"student_id"`
	Name      string          `json:"name"`
	Balance   decimal.Decimal `json:"balance"`
	IsActive  bool            `json:"is_active"`
}

// LookupStudent resolves a student id through the lookup procedure.
func (r *Repository) LookupStudent(ctx context.Context, studentID string) (*models.StudentLookup, error) {
	var raw []byte
	if err := r.db.QueryRowContext(ctx, `SELECT lookup_student($1)`, studentID).Scan(&raw); err != nil {
		return nil, mapError(err, "failed to look up student")
	}
	var row lookupRow
	if err := json.Unmarshal(raw, &row); err != nil {
		return nil, apperr.Internal(err, "malformed lookup reply")
	}
	res := &models.StudentLookup{Found: row.Found, InClass: row.InClass, StudentID: studentID}
	if !row.Found {
		return res, nil
	}
	if row.ID == nil {
		return nil, apperr.Internal(nil, "lookup reply for %s has no profile id", studentID)
	}
	res.MemberID = *row.ID
	if row.ClassID != nil {
		res.ClassID = *row.ClassID
	}
	res.Name = row.Name
	res.Balance = row.Balance
	res.IsActive = row.IsActive
	return res, nil
}

// mapError classifies driver errors into the application taxonomy.
func mapError(err error, action string) error {
	if isNetworkError(err) {
		return apperr.Unreachable(err)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "42": // syntax error or access rule violation
			if pqErr.Code == "42501" {
				return apperr.Unauthenticated(err, "%s: permission denied", action)
			}
		case "22", "23": // data exception, integrity constraint violation
			return apperr.Validation("REJECTED", err, "%s: %s", action, pqErr.Message)
		}
	}
	return apperr.Internal(fmt.Errorf("%s: %w", action, err), "%s", action)
}

func isNetworkError(err error) bool {
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
