package orchestrators

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"academy/internal/domain/account"
	"academy/internal/domain/attendance"
	"academy/internal/domain/compensation"
	"academy/internal/domain/holiday"
	"academy/internal/domain/student"

	"github.com/google/uuid"
)

// SyntheticSeedDeps holds all stores needed for synthetic data seeding.
type SyntheticSeedDeps struct {
	AccountStore synAccountStore
	StudentStore synStudentStore
	CellStore    synCellStore
	ConfigStore  synConfigStore
	HolidayStore synHolidayStore

	Now func() time.Time // defaults to time.Now
}

type synAccountStore interface {
	Save(ctx context.Context, a account.Account) error
	GetByEmail(ctx context.Context, email string) (account.Account, error)
}
type synStudentStore interface {
	Save(ctx context.Context, s student.Student) error
	List(ctx context.Context) ([]student.Student, error)
}
type synCellStore interface {
	SaveCell(ctx context.Context, cell attendance.Cell) error
}
type synConfigStore interface {
	GetGlobal(ctx context.Context) (*compensation.Config, error)
	SaveGlobal(ctx context.Context, cfg *compensation.Config) error
}
type synHolidayStore interface {
	Save(ctx context.Context, h holiday.Holiday) error
	List(ctx context.Context) ([]holiday.Holiday, error)
}

type seedStudent struct {
	name     string
	school   string
	grade    string
	class    string
	subject  string
	slot     string
	weekdays []string
	rateItem string
}

var seedRoster = []seedStudent{
	{"Seo Jiwoo", "Daehan Middle", "M2", "Math A", "math", "Tue 16:00-17:30", []string{"Tue", "Thu"}, "Regular"},
	{"Kim Minjun", "Daehan Middle", "M2", "Math A", "math", "Tue 16:00-17:30", []string{"Tue", "Thu"}, "Regular"},
	{"Lee Haeun", "Hanbit Middle", "M1", "Math A", "math", "Tue 16:00-17:30", []string{"Tue", "Thu"}, "Regular"},
	{"Park Dohyun", "Daehan Middle", "M3", "Math B", "math", "Wed 18:00-19:30", []string{"Wed", "Fri"}, "Regular"},
	{"Choi Yuna", "Hanbit Middle", "M3", "Math B", "math", "Wed 18:00-19:30", []string{"Wed", "Fri"}, "Intensive"},
	{"Jung Siwoo", "Sejong High", "H1", "English A", "english", "Mon 19:00-20:30", []string{"Mon", "Thu"}, "Regular"},
	{"Kang Chaewon", "Sejong High", "H1", "English A", "english", "Mon 19:00-20:30", []string{"Mon", "Thu"}, "Regular"},
	{"Yoon Jihu", "Hanbit Middle", "M1", "English A", "english", "Mon 19:00-20:30", []string{"Mon", "Thu"}, "Intensive"},
}

// presence pattern cycled per (student, day) pair; heavy on present with a
// sprinkle of late/absent/excused so the grid and summary look lived-in.
var seedPattern = []float64{
	attendance.ValuePresent, attendance.ValuePresent, attendance.ValuePresent,
	attendance.ValueLate, attendance.ValuePresent, attendance.ValuePresent,
	attendance.ValueAbsent, attendance.ValuePresent, attendance.ValuePresent,
	attendance.ValueExcused, attendance.ValuePresent, attendance.ValuePresent,
}

// ExecuteSeedSynthetic populates the database with a demo academy roster,
// attendance for the current month, a global rate config and one holiday.
// It is idempotent and skips entirely when students already exist.
func ExecuteSeedSynthetic(ctx context.Context, deps SyntheticSeedDeps) error {
	nowFn := deps.Now
	if nowFn == nil {
		nowFn = time.Now
	}
	now := nowFn()

	existing, err := deps.StudentStore.List(ctx)
	if err != nil {
		return fmt.Errorf("seed_synthetic: list students: %w", err)
	}
	if len(existing) > 0 {
		slog.Info("seed_event", "event", "synthetic_skip", "reason", "already_seeded")
		return nil
	}

	// --- Teacher account ---
	if _, err := deps.AccountStore.GetByEmail(ctx, "teacher@academy.example"); err != nil {
		acct := account.Account{
			ID:        uuid.New().String(),
			Email:     "teacher@academy.example",
			Role:      account.RoleTeacher,
			TeacherID: uuid.New().String(),
			CreatedAt: now,
		}
		if err := acct.SetPassword("academy demo 123!"); err != nil {
			return fmt.Errorf("seed teacher password: %w", err)
		}
		if err := deps.AccountStore.Save(ctx, acct); err != nil {
			return fmt.Errorf("seed teacher account: %w", err)
		}
		slog.Info("seed_event", "event", "teacher_account_created", "email", acct.Email)
	}

	// --- Global rate config ---
	if cfg, err := deps.ConfigStore.GetGlobal(ctx); err == nil && cfg == nil {
		global := &compensation.Config{
			FeePercent: 8.9,
			Items: []compensation.RatePolicyItem{
				{Name: "Regular", Color: "#4a90d9", Type: compensation.TypePercentage, BaseTuition: 350000, Ratio: 50},
				{Name: "Intensive", Color: "#d94a6a", Type: compensation.TypeFixed, FixedRate: 35000},
			},
			Incentives: compensation.Incentives{
				BlogBonus:           50000,
				RetentionBonus:      100000,
				RetentionTargetRate: 90,
			},
		}
		if err := deps.ConfigStore.SaveGlobal(ctx, global); err != nil {
			return fmt.Errorf("seed global config: %w", err)
		}
		slog.Info("seed_event", "event", "global_config_created")
	}

	// --- One holiday in the current month ---
	if holidays, err := deps.HolidayStore.List(ctx); err == nil && len(holidays) == 0 {
		day := time.Date(now.Year(), now.Month(), 15, 0, 0, 0, 0, time.UTC)
		h := holiday.Holiday{
			ID:       uuid.New().String(),
			Name:     "Academy Day",
			StartKey: day.Format(attendance.DateFormat),
			EndKey:   day.Format(attendance.DateFormat),
		}
		if err := deps.HolidayStore.Save(ctx, h); err != nil {
			return fmt.Errorf("seed holiday: %w", err)
		}
	}

	// --- Students + this month's attendance ---
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	enrollStart := monthStart.AddDate(0, -2, 0)

	patternIdx := 0
	for i, ss := range seedRoster {
		st := student.Student{
			ID:     uuid.New().String(),
			Name:   ss.name,
			School: ss.school,
			Grade:  ss.grade,
			Enrollments: []student.Enrollment{{
				ClassName: ss.class,
				Subject:   ss.subject,
				Slots:     []string{ss.slot},
				Weekdays:  ss.weekdays,
				StartDate: enrollStart,
			}},
			DefaultRateItemName: ss.rateItem,
		}
		// Two students joined mid-month to exercise new-student accounting.
		if i >= len(seedRoster)-2 {
			st.Enrollments[0].StartDate = monthStart.AddDate(0, 0, 9)
		}
		if err := st.Validate(); err != nil {
			return fmt.Errorf("seed_synthetic: student %q: %w", ss.name, err)
		}
		if err := deps.StudentStore.Save(ctx, st); err != nil {
			return fmt.Errorf("seed_synthetic: save student %q: %w", ss.name, err)
		}

		// Fill scheduled days from the enrollment start up to today.
		for d := monthStart; !d.After(now) && d.Month() == now.Month(); d = d.AddDate(0, 0, 1) {
			if d.Before(st.Enrollments[0].StartDate) {
				continue
			}
			if !scheduledOn(ss.weekdays, d.Weekday()) {
				continue
			}
			v := seedPattern[patternIdx%len(seedPattern)]
			patternIdx++
			cell := attendance.Cell{
				StudentID: st.ID,
				ClassName: ss.class,
				DateKey:   d.Format(attendance.DateFormat),
				Value:     &v,
				UpdatedAt: now,
			}
			if v == attendance.ValueLate {
				cell.Memo = "arrived 15 min late"
			}
			if err := deps.CellStore.SaveCell(ctx, cell); err != nil {
				return fmt.Errorf("seed_synthetic: save cell: %w", err)
			}
		}
	}

	slog.Info("seed_event", "event", "synthetic_seeded", "students", len(seedRoster))
	return nil
}

func scheduledOn(weekdays []string, wd time.Weekday) bool {
	name := wd.String()[:3]
	for _, w := range weekdays {
		if len(w) >= 3 && w[:3] == name {
			return true
		}
	}
	return false
}
