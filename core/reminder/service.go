// Package reminder implements the periodic due/overdue notification sweep.
// The sweep is externally triggered (admin CLI or cron), never self-scheduling.
package reminder

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/trezcool/karo/core"
	"github.com/trezcool/karo/core/fee"
	"github.com/trezcool/karo/core/money"
	"github.com/trezcool/karo/core/student"
)

type (
	// Failure records one recipient the sweep could not notify; it never
	// aborts the sweep for the remaining recipients.
	Failure struct {
		FeeID     string `json:"fee_id"`
		StudentID string `json:"student_id"`
		Reason    string `json:"reason"`
	}

	Result struct {
		Scanned  int       `json:"scanned"`
		Sent     int       `json:"sent"`
		Skipped  int       `json:"skipped"` // rate-limited or not yet due
		Failures []Failure `json:"failures,omitempty"`
	}

	Service struct {
		repo        fee.Repository
		dir         student.Directory
		mailSvc     core.EmailService
		logger      core.Logger
		lookAhead   time.Duration
		minInterval time.Duration
		nowFunc     func() time.Time // mockable
	}
)

func NewService(repo fee.Repository, dir student.Directory, mailSvc core.EmailService, logger core.Logger) *Service {
	return &Service{
		repo:        repo,
		dir:         dir,
		mailSvc:     mailSvc,
		logger:      logger,
		lookAhead:   core.Conf.Reminder.LookAhead,
		minInterval: core.Conf.Reminder.MinInterval,
		nowFunc:     func() time.Time { return time.Now().UTC() },
	}
}

// Sweep walks all unsettled fees and notifies students whose due date falls
// within the look-ahead window or whose fee is overdue. Safe to trigger twice
// concurrently: the per-fee last-sent check makes the second sweep a no-op.
func (svc *Service) Sweep(ctx context.Context) (Result, error) {
	var res Result

	fees, err := svc.repo.FilterFees(ctx, fee.QueryFilter{Unsettled: true})
	if err != nil {
		return res, err
	}

	for i := range fees {
		f := &fees[i]
		res.Scanned++

		now := svc.nowFunc()
		if f.DueAmountAt(now).IsZero() {
			continue
		}

		status := f.StatusAt(now)
		if status != fee.StatusOverdue && !money.DueWithin(now, f.DueDate, svc.lookAhead) {
			res.Skipped++
			continue
		}

		stu, err := svc.dir.GetStudent(ctx, f.StudentID)
		if err != nil {
			res.Failures = append(res.Failures, Failure{FeeID: f.ID, StudentID: f.StudentID, Reason: err.Error()})
			continue
		}
		if stu.Email == "" {
			res.Failures = append(res.Failures, Failure{FeeID: f.ID, StudentID: f.StudentID, Reason: "student has no email address"})
			continue
		}

		marked, err := svc.repo.MarkReminded(ctx, f.ID, now, svc.minInterval)
		if err != nil {
			res.Failures = append(res.Failures, Failure{FeeID: f.ID, StudentID: f.StudentID, Reason: err.Error()})
			continue
		}
		if !marked {
			res.Skipped++
			continue
		}

		svc.mailSvc.SendMessages(svc.compose(f, stu, status, now))
		core.RemindersSent.Inc()
		res.Sent++
	}

	return res, nil
}

func (svc *Service) compose(f *fee.Fee, stu student.Student, status fee.Status, now time.Time) *core.EmailMessage {
	subject := fmt.Sprintf("Fee reminder: %s", f.Description)
	if status == fee.StatusOverdue {
		subject = fmt.Sprintf("Overdue fee: %s", f.Description)
	}
	return &core.EmailMessage{
		To:           []mail.Address{{Name: stu.Name, Address: stu.Email}},
		Subject:      subject,
		TemplateName: "fee-reminder",
		TemplateData: map[string]interface{}{
			"StudentName": stu.Name,
			"Description": f.Description,
			"DueAmount":   f.DueAmountAt(now).String(),
			"Currency":    f.Currency,
			"DueDate":     f.DueDate.Format("2 Jan 2006"),
			"Overdue":     status == fee.StatusOverdue,
		},
	}
}
