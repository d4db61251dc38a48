package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"assinatura-bot/internal/dates"
	"assinatura-bot/internal/models"
	"assinatura-bot/internal/store"
)

// PlanImported is the sentinel plan label for records created by the
// reconciliation loop itself, when a tracked member has an expiry hint but
// no record yet.
const PlanImported = "ASSINANTE"

// externalCallTimeout bounds each collaborator call. The timeout context is
// detached from the run context so a shutdown lets the in-flight call finish.
const externalCallTimeout = 30 * time.Second

// Subject is one community member as reported by the membership source.
// RawExpiry is the unparsed expiry hint; empty means the subject is not a
// tracked subscriber.
type Subject struct {
	ID          int64
	DisplayName string
	RawExpiry   string
}

// Membership is the community-side collaborator: enumeration, access
// revocation and the grant path. The chat-platform gateway is the concrete
// provider.
type Membership interface {
	ListTrackedSubjects(ctx context.Context) ([]Subject, error)
	RevokeAccess(ctx context.Context, subjectID int64, reason string) error
	RemoveMembership(ctx context.Context, subjectID int64, reason string) error
	GrantAccess(ctx context.Context, subjectID int64, displayName string, expiresAt time.Time) error
}

// Notifier delivers direct notices to subjects. Delivery may fail for
// unreachable subjects; the engine treats that as non-fatal.
type Notifier interface {
	SendDirectNotice(ctx context.Context, subjectID int64, category Category, message string) error
}

// Reporter delivers the end-of-run summary to the operations channel.
type Reporter interface {
	SendChannelNotice(ctx context.Context, message string) error
}

// Store is the slice of the record store the engine needs.
type Store interface {
	Upsert(ctx context.Context, subjectID int64, displayName string, expiresAt time.Time, planLabel string) error
	SetStatus(ctx context.Context, subjectID int64, status, reason string) error
	MarkNotified(ctx context.Context, subjectID int64, category string) error
	Get(ctx context.Context, subjectID int64) (*models.SubscriptionRecord, error)
	Summarize(ctx context.Context) (*store.Summary, error)
}

// RunReport carries the counters of one reconciliation run.
type RunReport struct {
	RunID              string
	StartedAt          time.Time
	Duration           time.Duration
	Processed          int
	Skipped            int
	Imported           int
	Reminders          map[Category]int
	Revoked            int
	OwnerSkips         int
	NotifyFailures     int
	PermissionFailures int
	StoreFailures      int
	Panics             int
	Aborted            bool
}

type Engine struct {
	store    Store
	members  Membership
	notifier Notifier
	reporter Reporter
	ownerID  int64
	log      *zap.Logger
}

func New(st Store, members Membership, notifier Notifier, reporter Reporter, ownerID int64, log *zap.Logger) *Engine {
	return &Engine{
		store:    st,
		members:  members,
		notifier: notifier,
		reporter: reporter,
		ownerID:  ownerID,
		log:      log,
	}
}

// RunOnce executes one full reconciliation pass. It is the single code path
// behind both the scheduler tick and the manual trigger. A failure to list
// subjects aborts the whole run (nothing to iterate); any per-subject
// failure is contained and counted.
func (e *Engine) RunOnce(ctx context.Context) (*RunReport, error) {
	report := &RunReport{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
		Reminders: make(map[Category]int),
	}
	e.log.Info("reconciliation run started", zap.String("run_id", report.RunID))

	subjects, err := e.members.ListTrackedSubjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tracked subjects: %w", err)
	}

	for _, subj := range subjects {
		if ctx.Err() != nil {
			report.Aborted = true
			e.log.Warn("reconciliation run interrupted, remaining subjects deferred to next tick",
				zap.String("run_id", report.RunID))
			break
		}
		e.processSubject(ctx, subj, report)
	}

	report.Duration = time.Since(report.StartedAt)
	e.emitSummary(report)

	e.log.Info("reconciliation run finished",
		zap.String("run_id", report.RunID),
		zap.Int("processed", report.Processed),
		zap.Int("revoked", report.Revoked),
		zap.Duration("duration", report.Duration))
	return report, nil
}

func (e *Engine) processSubject(ctx context.Context, subj Subject, report *RunReport) {
	defer func() {
		if r := recover(); r != nil {
			report.Panics++
			e.log.Error("panic while processing subject",
				zap.Int64("subject_id", subj.ID), zap.Any("panic", r))
		}
	}()

	if subj.RawExpiry == "" {
		report.Skipped++
		return
	}
	expiry, err := dates.Parse(subj.RawExpiry)
	if err != nil {
		report.Skipped++
		e.log.Debug("subject has unparseable expiry hint, skipping",
			zap.Int64("subject_id", subj.ID), zap.String("raw", subj.RawExpiry))
		return
	}
	report.Processed++

	rec, err := e.store.Get(ctx, subj.ID)
	if err != nil {
		report.StoreFailures++
		e.log.Error("failed to load record", zap.Int64("subject_id", subj.ID), zap.Error(err))
		return
	}
	if rec == nil {
		// Tracked on the platform but unknown to the store: import it and
		// process this subject as freshly imported.
		if err := e.store.Upsert(ctx, subj.ID, subj.DisplayName, expiry, PlanImported); err != nil {
			report.StoreFailures++
			e.log.Error("failed to import record", zap.Int64("subject_id", subj.ID), zap.Error(err))
			return
		}
		report.Imported++
		rec = &models.SubscriptionRecord{
			SubjectID:   subj.ID,
			DisplayName: subj.DisplayName,
			ExpiresAt:   dates.FormatForStorage(expiry),
			PlanLabel:   PlanImported,
			Status:      models.StatusActive,
		}
	}

	days := dates.DaysUntil(expiry, time.Now())
	category := Classify(days)

	switch {
	case category == CategoryNone:
		// nothing due for this subject
	case category == CategoryGraceExpired:
		e.revokeSubject(ctx, subj, rec, days, report)
	default:
		e.remindSubject(ctx, subj, rec, category, days, report)
	}
}

func (e *Engine) remindSubject(ctx context.Context, subj Subject, rec *models.SubscriptionRecord, category Category, days int, report *RunReport) {
	if !ShouldNotify(lastNotifiedTime(rec), time.Now()) {
		return
	}

	callCtx, cancel := detachedCallContext(ctx)
	defer cancel()

	msg := reminderMessage(subj.DisplayName, category, days)
	if err := e.notifier.SendDirectNotice(callCtx, subj.ID, category, msg); err != nil {
		report.NotifyFailures++
		e.log.Error("failed to send reminder",
			zap.Int64("subject_id", subj.ID),
			zap.String("category", string(category)),
			zap.Error(err))
		return
	}
	if err := e.store.MarkNotified(ctx, subj.ID, string(category)); err != nil {
		report.StoreFailures++
		e.log.Error("failed to record notification", zap.Int64("subject_id", subj.ID), zap.Error(err))
	}
	report.Reminders[category]++
	e.log.Info("reminder sent",
		zap.Int64("subject_id", subj.ID),
		zap.String("category", string(category)),
		zap.Int("days_remaining", days))
}

func (e *Engine) revokeSubject(ctx context.Context, subj Subject, rec *models.SubscriptionRecord, days int, report *RunReport) {
	if subj.ID == e.ownerID {
		report.OwnerSkips++
		e.log.Warn("subject is the community owner, skipping forced revocation",
			zap.Int64("subject_id", subj.ID))
		return
	}
	if rec.Status != models.StatusActive {
		// Already expired or revoked in an earlier run; the kick may have
		// failed then, but repeating the status transition would rewrite
		// history for nothing.
		return
	}

	overdue := -days
	reason := fmt.Sprintf("Assinatura expirada há %d dia(s), sem renovação", overdue)

	callCtx, cancel := detachedCallContext(ctx)
	defer cancel()

	if ShouldNotify(lastNotifiedTime(rec), time.Now()) {
		msg := reminderMessage(subj.DisplayName, CategoryGraceExpired, days)
		if err := e.notifier.SendDirectNotice(callCtx, subj.ID, CategoryGraceExpired, msg); err != nil {
			report.NotifyFailures++
			e.log.Warn("could not notify subject before removal",
				zap.Int64("subject_id", subj.ID), zap.Error(err))
		} else if err := e.store.MarkNotified(ctx, subj.ID, string(CategoryGraceExpired)); err != nil {
			report.StoreFailures++
		}
	}

	// Role removal and kick are independent side effects; report each on its
	// own and update the status regardless, so the record never stays
	// falsely active.
	if err := e.members.RevokeAccess(callCtx, subj.ID, reason); err != nil {
		report.PermissionFailures++
		e.log.Error("failed to revoke access", zap.Int64("subject_id", subj.ID), zap.Error(err))
	}
	if err := e.members.RemoveMembership(callCtx, subj.ID, reason); err != nil {
		report.PermissionFailures++
		e.log.Error("failed to remove membership", zap.Int64("subject_id", subj.ID), zap.Error(err))
	}
	if err := e.store.SetStatus(ctx, subj.ID, models.StatusExpired, reason); err != nil {
		report.StoreFailures++
		e.log.Error("failed to update status", zap.Int64("subject_id", subj.ID), zap.Error(err))
	}
	report.Revoked++
	e.log.Info("subscription revoked",
		zap.Int64("subject_id", subj.ID),
		zap.Int("days_overdue", overdue))
}

// Grant activates or renews a subscription: the platform side effect first
// (role + nickname date suffix), then the record. The record is only
// written after the grant succeeded, never speculatively. Returns the new
// expiry.
func (e *Engine) Grant(ctx context.Context, subjectID int64, displayName string, termDays int, reason string) (time.Time, error) {
	if termDays <= 0 {
		return time.Time{}, errors.New("term must be at least one day")
	}

	expiry := time.Now().AddDate(0, 0, termDays)
	if err := e.members.GrantAccess(ctx, subjectID, displayName, expiry); err != nil {
		return time.Time{}, fmt.Errorf("grant access: %w", err)
	}
	if err := e.store.Upsert(ctx, subjectID, displayName, expiry, PlanLabelForTerm(termDays)); err != nil {
		return time.Time{}, err
	}

	e.log.Info("subscription granted",
		zap.Int64("subject_id", subjectID),
		zap.Int("term_days", termDays),
		zap.String("reason", reason))
	return expiry, nil
}

// GetRecord exposes the point lookup to manual commands.
func (e *Engine) GetRecord(ctx context.Context, subjectID int64) (*models.SubscriptionRecord, error) {
	return e.store.Get(ctx, subjectID)
}

// GetSummary exposes the store summary to manual commands.
func (e *Engine) GetSummary(ctx context.Context) (*store.Summary, error) {
	return e.store.Summarize(ctx)
}

// PlanLabelForTerm maps a purchased term to its display label.
func PlanLabelForTerm(days int) string {
	switch days {
	case 30:
		return "Plano 30 dias"
	case 90:
		return "Plano 90 dias"
	}
	return "ASSINANTE"
}

func (e *Engine) emitSummary(report *RunReport) {
	callCtx, cancel := context.WithTimeout(context.Background(), externalCallTimeout)
	defer cancel()

	if err := e.reporter.SendChannelNotice(callCtx, FormatRunReport(report)); err != nil {
		e.log.Error("failed to emit run summary", zap.String("run_id", report.RunID), zap.Error(err))
	}
}

// FormatRunReport renders the counters of one run as the operations-channel
// message.
func FormatRunReport(report *RunReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📋 **CHECAGEM DE ASSINATURAS** (%s)\n", report.RunID)
	fmt.Fprintf(&b, "Processados: %d | Sem data: %d | Importados: %d\n",
		report.Processed, report.Skipped, report.Imported)
	fmt.Fprintf(&b, "Avisos: 7d=%d 3d=%d 1d=%d hoje=%d\n",
		report.Reminders[CategoryReminderEarly],
		report.Reminders[CategoryReminderMid],
		report.Reminders[CategoryReminderFinal],
		report.Reminders[CategoryDueToday])
	fmt.Fprintf(&b, "Removidos: %d | Dono isento: %d\n", report.Revoked, report.OwnerSkips)
	fmt.Fprintf(&b, "Falhas: avisos=%d permissões=%d banco=%d internas=%d\n",
		report.NotifyFailures, report.PermissionFailures, report.StoreFailures, report.Panics)
	fmt.Fprintf(&b, "Duração: %s", report.Duration.Round(time.Millisecond))
	if report.Aborted {
		b.WriteString("\n⚠️ Execução interrompida; será refeita no próximo ciclo.")
	}
	return b.String()
}

func reminderMessage(name string, category Category, days int) string {
	switch category {
	case CategoryReminderEarly:
		return fmt.Sprintf("🔔 Olá %s, sua assinatura expira em **7 dias**!\nRenove seu plano para não perder o acesso.", name)
	case CategoryReminderMid:
		return fmt.Sprintf("🔔 Olá %s, sua assinatura expira em **3 dias**!\nRenove seu plano para não perder o acesso.", name)
	case CategoryReminderFinal:
		return fmt.Sprintf("🔔 Olá %s, sua assinatura expira **AMANHÃ**!\nRenove seu plano para não perder o acesso.", name)
	case CategoryDueToday:
		return fmt.Sprintf("⚠️ **ATENÇÃO** %s, sua assinatura **VENCE HOJE**!\nVocê será removido do servidor caso não renove.", name)
	case CategoryGraceExpired:
		return fmt.Sprintf("🚨 **SUA ASSINATURA EXPIROU** %s!\nVocê está sendo removido do servidor por falta de renovação.", name)
	}
	return ""
}

func lastNotifiedTime(rec *models.SubscriptionRecord) *time.Time {
	if rec.LastNotifiedAt == nil || *rec.LastNotifiedAt == "" {
		return nil
	}
	t, err := dates.Parse(*rec.LastNotifiedAt)
	if err != nil {
		return nil
	}
	return &t
}

// detachedCallContext bounds an external call without inheriting the run
// context's cancellation: a shutdown mid-run lets the in-flight call finish
// and abandons the remaining subjects instead.
func detachedCallContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), externalCallTimeout)
}
