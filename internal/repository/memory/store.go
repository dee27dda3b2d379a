// Package memory is an in-process store with the same contract as the
// Postgres repository, including reference behaviour of the stored
// procedures. It backs the tests and the STORE=memory development mode.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Dan9191/decembrrr/internal/apperr"
	"github.com/Dan9191/decembrrr/internal/calendar"
	"github.com/Dan9191/decembrrr/internal/clock"
	"github.com/Dan9191/decembrrr/internal/models"
)

// Store keeps classes, members, the ledger and exceptions in memory.
type Store struct {
	mu        sync.RWMutex
	clock     clock.Clock
	classes   map[uuid.UUID]models.Class
	members   map[uuid.UUID]models.Member
	txs       []models.Transaction
	noClass   map[uuid.UUID]models.NoClassDate
	insertErr error
	location  *time.Location
}

func NewStore(clk clock.Clock) *Store {
	return &Store{
		clock:    clk,
		classes:  map[uuid.UUID]models.Class{},
		members:  map[uuid.UUID]models.Member{},
		noClass:  map[uuid.UUID]models.NoClassDate{},
		location: time.UTC,
	}
}

// SetDefaultLocation sets the timezone of classes without one. It must match
// the service default so both sides agree on ledger dates.
func (s *Store) SetDefaultLocation(loc *time.Location) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if loc == nil {
		loc = time.UTC
	}
	s.location = loc
}

// AddClass stores c, assigning an id when it has none.
func (s *Store) AddClass(c models.Class) models.Class {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.clock.Now()
		c.UpdatedAt = c.CreatedAt
	}
	c.CollectionDays = append([]int(nil), c.CollectionDays...)
	s.classes[c.ID] = c
	return c
}

// AddMember stores m, assigning an id when it has none.
func (s *Store) AddMember(m models.Member) models.Member {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = s.clock.Now()
	}
	s.members[m.ID] = m
	return m
}

// RejectInserts makes every following InsertTransaction fail with err; nil
// restores normal behaviour.
func (s *Store) RejectInserts(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertErr = err
}

// LedgerSize is the number of ledger entries currently stored.
func (s *Store) LedgerSize() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.txs)
}

func (s *Store) GetClass(_ context.Context, id uuid.UUID) (*models.Class, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.classes[id]
	if !ok {
		return nil, apperr.NotFound("CLASS_NOT_FOUND", "class %s not found", id)
	}
	c.CollectionDays = append([]int(nil), c.CollectionDays...)
	return &c, nil
}

func (s *Store) UpdateClass(_ context.Context, c *models.Class) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.classes[c.ID]; !ok {
		return apperr.NotFound("CLASS_NOT_FOUND", "class %s not found", c.ID)
	}
	c.UpdatedAt = s.clock.Now()
	stored := *c
	stored.CollectionDays = append([]int(nil), c.CollectionDays...)
	s.classes[c.ID] = stored
	return nil
}

func (s *Store) QueryMembers(_ context.Context, classID uuid.UUID) ([]models.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var list []models.Member
	for _, m := range s.members {
		if m.ClassID == classID {
			list = append(list, m)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list, nil
}

func (s *Store) GetMember(_ context.Context, id uuid.UUID) (*models.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.members[id]
	if !ok {
		return nil, apperr.NotFound("PROFILE_NOT_FOUND", "member %s not found", id)
	}
	return &m, nil
}

func (s *Store) UpdateBalance(_ context.Context, memberID uuid.UUID, balance decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[memberID]
	if !ok {
		return apperr.NotFound("PROFILE_NOT_FOUND", "member %s not found", memberID)
	}
	m.Balance = balance
	s.members[memberID] = m
	return nil
}

func (s *Store) QueryTransactions(_ context.Context, f models.TransactionFilter) ([]models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var list []models.Transaction
	for _, tx := range s.txs {
		if f.Matches(tx) {
			list = append(list, tx)
		}
	}
	return list, nil
}

func (s *Store) InsertTransaction(_ context.Context, tx *models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return apperr.RecordFailed(s.insertErr)
	}
	tx.ID = uuid.New()
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = s.clock.Now()
	}
	s.appendTx(*tx)
	return nil
}

// appendTx keeps the ledger sorted by creation time.
func (s *Store) appendTx(tx models.Transaction) {
	i := sort.Search(len(s.txs), func(i int) bool { return s.txs[i].CreatedAt.After(tx.CreatedAt) })
	s.txs = append(s.txs, models.Transaction{})
	copy(s.txs[i+1:], s.txs[i:])
	s.txs[i] = tx
}

func (s *Store) ListNoClassDates(_ context.Context, classID uuid.UUID) ([]models.NoClassDate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var list []models.NoClassDate
	for _, e := range s.noClass {
		if e.ClassID == classID {
			list = append(list, e)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Date < list[j].Date })
	return list, nil
}

func (s *Store) GetNoClassDate(_ context.Context, id uuid.UUID) (*models.NoClassDate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.noClass[id]
	if !ok {
		return nil, apperr.NotFound("EXCEPTION_NOT_FOUND", "no-class entry %s not found", id)
	}
	return &e, nil
}

func (s *Store) InsertNoClassDate(_ context.Context, e *models.NoClassDate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.noClass {
		if existing.ClassID == e.ClassID && existing.Date == e.Date {
			return apperr.DuplicateException(e.Date)
		}
	}
	e.ID = uuid.New()
	e.CreatedAt = s.clock.Now()
	s.noClass[e.ID] = *e
	return nil
}

func (s *Store) DeleteNoClassDate(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.noClass[id]; !ok {
		return apperr.NotFound("EXCEPTION_NOT_FOUND", "no-class entry %s not found", id)
	}
	delete(s.noClass, id)
	return nil
}

// RunDailyDeduction deducts the daily amount from every active member of every
// class for which date is a collection day. A member already charged on date
// is skipped, so re-running the same date posts nothing.
func (s *Store) RunDailyDeduction(ctx context.Context, date string) (int, error) {
	day, err := calendar.ParseDate(date)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	posted := 0
	for _, class := range s.classes {
		if err := ctx.Err(); err != nil {
			return posted, err
		}
		cal, err := calendar.New(&class, s.exceptionSet(class.ID), day)
		if err != nil {
			return posted, err
		}
		if cal.Classify(day) != calendar.PastCollectionDay {
			continue
		}
		loc := s.classLocation(&class)
		y, m, d := day.Date()
		at := time.Date(y, m, d, 0, 0, 0, 0, loc)
		for id, member := range s.members {
			if member.ClassID != class.ID || !member.IsActive {
				continue
			}
			if s.hasDeduction(member.ID, date, loc) {
				continue
			}
			after := member.Balance.Sub(class.DailyAmount)
			s.appendTx(models.Transaction{
				ID:            uuid.New(),
				ClassID:       class.ID,
				ProfileID:     member.ID,
				Type:          models.TransactionDeduction,
				Amount:        class.DailyAmount,
				BalanceBefore: member.Balance,
				BalanceAfter:  after,
				Note:          "Daily deduction " + date,
				CreatedAt:     at,
			})
			member.Balance = after
			s.members[id] = member
			posted++
		}
	}
	return posted, nil
}

// RollbackNoClassDate removes the deductions posted on date for the class and
// restores the affected balances.
func (s *Store) RollbackNoClassDate(_ context.Context, classID uuid.UUID, date string) (*models.RollbackResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	class, ok := s.classes[classID]
	if !ok {
		return nil, apperr.NotFound("CLASS_NOT_FOUND", "class %s not found", classID)
	}
	loc := s.classLocation(&class)

	kept := s.txs[:0]
	reversed := 0
	for _, tx := range s.txs {
		if tx.ClassID == classID && tx.Type == models.TransactionDeduction &&
			calendar.Format(calendar.DateIn(tx.CreatedAt, loc)) == date {
			if m, ok := s.members[tx.ProfileID]; ok {
				m.Balance = m.Balance.Add(tx.Amount)
				s.members[m.ID] = m
			}
			reversed++
			continue
		}
		kept = append(kept, tx)
	}
	s.txs = kept
	return &models.RollbackResult{Status: "ok", RolledBackCount: reversed}, nil
}

func (s *Store) LookupStudent(_ context.Context, studentID string) (*models.StudentLookup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.members {
		if m.StudentID != studentID {
			continue
		}
		return &models.StudentLookup{
			Found:     true,
			InClass:   m.ClassID != uuid.Nil,
			MemberID:  m.ID,
			ClassID:   m.ClassID,
			StudentID: m.StudentID,
			Name:      m.Name,
			Balance:   m.Balance,
			IsActive:  m.IsActive,
		}, nil
	}
	return &models.StudentLookup{StudentID: studentID}, nil
}

func (s *Store) classLocation(class *models.Class) *time.Location {
	if class.Timezone == "" {
		return s.location
	}
	return class.Location()
}

func (s *Store) exceptionSet(classID uuid.UUID) map[string]struct{} {
	set := map[string]struct{}{}
	for _, e := range s.noClass {
		if e.ClassID == classID {
			set[e.Date] = struct{}{}
		}
	}
	return set
}

func (s *Store) hasDeduction(memberID uuid.UUID, date string, loc *time.Location) bool {
	for _, tx := range s.txs {
		if tx.ProfileID == memberID && tx.Type == models.TransactionDeduction &&
			calendar.Format(calendar.DateIn(tx.CreatedAt, loc)) == date {
			return true
		}
	}
	return false
}
