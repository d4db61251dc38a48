package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"
	tu "github.com/mymmrac/telego/telegoutil"
	"go.uber.org/zap"

	"assinatura-bot/internal/engine"
	"assinatura-bot/internal/worker"
)

// Bot is the admin control surface. Every command is a thin dispatch onto
// the engine's exposed interface; no subscription logic lives here.
type Bot struct {
	Instance *telego.Bot
	Engine   *engine.Engine
	Checker  *worker.Checker
	AdminIDs []int64

	log *zap.Logger
}

func NewBot(token string, eng *engine.Engine, checker *worker.Checker, adminIDs []int64, log *zap.Logger) (*Bot, error) {
	tgBot, err := telego.NewBot(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	return &Bot{
		Instance: tgBot,
		Engine:   eng,
		Checker:  checker,
		AdminIDs: adminIDs,
		log:      log,
	}, nil
}

func (b *Bot) isAdmin(id int64) bool {
	if len(b.AdminIDs) == 0 {
		return true
	}
	for _, admin := range b.AdminIDs {
		if admin == id {
			return true
		}
	}
	return false
}

func (b *Bot) Start(ctx context.Context) {
	updates, _ := b.Instance.UpdatesViaLongPolling(ctx, nil)

	handler, _ := th.NewBotHandler(b.Instance, updates)

	// /relatorio - full subscription report
	handler.Handle(func(ctx *th.Context, update telego.Update) error {
		message := update.Message
		if !b.isAdmin(message.From.ID) {
			return nil
		}

		summary, err := b.Engine.GetSummary(ctx.Context())
		if err != nil {
			b.log.Error("failed to build report", zap.Error(err))
			_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(
				tu.ID(message.Chat.ID),
				"❌ Ocorreu um erro ao gerar o relatório de assinaturas.",
			))
			return nil
		}

		_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(
			tu.ID(message.Chat.ID),
			formatSummary(summary),
		))
		return nil
	}, th.CommandEqual("relatorio"))

	// /checar - run the reconciliation now
	handler.Handle(func(ctx *th.Context, update telego.Update) error {
		message := update.Message
		if !b.isAdmin(message.From.ID) {
			return nil
		}

		_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(
			tu.ID(message.Chat.ID),
			"Rodando checagem de assinaturas, aguarde...",
		))

		report, err := b.Checker.RunNow(ctx.Context())
		if err != nil {
			text := "❌ Ocorreu um erro ao rodar a checagem de assinaturas."
			if errors.Is(err, worker.ErrRunInProgress) {
				text = "⏳ Já existe uma checagem em andamento. Tente novamente em instantes."
			}
			b.log.Error("manual reconciliation failed", zap.Error(err))
			_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(message.Chat.ID), text))
			return nil
		}

		_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(
			tu.ID(message.Chat.ID),
			"✅ Checagem executada.\n\n"+engine.FormatRunReport(report),
		))
		return nil
	}, th.CommandEqual("checar"))

	// /assinatura <id> - single record view
	handler.Handle(func(ctx *th.Context, update telego.Update) error {
		message := update.Message
		if !b.isAdmin(message.From.ID) {
			return nil
		}

		parts := strings.Fields(message.Text)
		if len(parts) < 2 {
			_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(
				tu.ID(message.Chat.ID),
				"Uso: /assinatura <id do membro>",
			))
			return nil
		}
		subjectID, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(
				tu.ID(message.Chat.ID),
				"❌ ID inválido.",
			))
			return nil
		}

		rec, err := b.Engine.GetRecord(ctx.Context(), subjectID)
		if err != nil {
			b.log.Error("failed to load record", zap.Int64("subject_id", subjectID), zap.Error(err))
			_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(
				tu.ID(message.Chat.ID),
				"❌ Ocorreu um erro ao consultar a assinatura.",
			))
			return nil
		}
		if rec == nil {
			_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(
				tu.ID(message.Chat.ID),
				"❌ Esse membro não possui assinatura registrada.",
			))
			return nil
		}

		_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(
			tu.ID(message.Chat.ID),
			formatRecord(rec),
		))
		return nil
	}, th.CommandEqual("assinatura"))

	// /health - store probe and last run info
	handler.Handle(func(ctx *th.Context, update telego.Update) error {
		message := update.Message
		if !b.isAdmin(message.From.ID) {
			return nil
		}

		dbStatus := "OK"
		if _, err := b.Engine.GetSummary(ctx.Context()); err != nil {
			b.log.Error("health check store probe failed", zap.Error(err))
			dbStatus = "Erro: " + err.Error()
		}

		lastRun := "nenhuma checagem registrada"
		if report, err := b.Checker.LastRun(ctx.Context()); err == nil && report != nil {
			lastRun = fmt.Sprintf("%s (processados: %d, removidos: %d)",
				report.StartedAt.Format("02/01/2006 15:04:05"), report.Processed, report.Revoked)
		}

		_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(
			tu.ID(message.Chat.ID),
			fmt.Sprintf("🩺 Health Check\n\nBanco: %s\nÚltima checagem: %s", dbStatus, lastRun),
		))
		return nil
	}, th.CommandEqual("health"))

	handler.Start()
}
