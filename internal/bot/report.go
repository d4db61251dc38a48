package bot

import (
	"fmt"
	"strings"
	"time"

	"assinatura-bot/internal/dates"
	"assinatura-bot/internal/models"
	"assinatura-bot/internal/store"
)

const maxReportLines = 10

func formatSummary(summary *store.Summary) string {
	var b strings.Builder

	b.WriteString("📊 RELATÓRIO COMPLETO DE ASSINATURAS\n\n")
	fmt.Fprintf(&b, "✅ Ativas: %d\n", summary.ActiveCount)
	fmt.Fprintf(&b, "⚠️ A vencer (até %d dias): %d\n", store.PendingWindowDays, summary.PendingCount)
	fmt.Fprintf(&b, "❌ Expiradas: %d\n", summary.ExpiredCount)
	fmt.Fprintf(&b, "📊 Total: %d\n", summary.ActiveCount+summary.ExpiredCount)

	if len(summary.Active) > 0 {
		fmt.Fprintf(&b, "\n✅ ASSINATURAS ATIVAS (%d)\n", summary.ActiveCount)
		for i, rec := range summary.Active {
			if i == maxReportLines {
				fmt.Fprintf(&b, "... e mais %d assinaturas ativas\n", summary.ActiveCount-maxReportLines)
				break
			}
			b.WriteString(recordLine(&rec))
		}
	}

	if len(summary.Pending) > 0 {
		fmt.Fprintf(&b, "\n⚠️ PRÓXIMAS A VENCER (%d)\n", summary.PendingCount)
		for i, rec := range summary.Pending {
			if i == maxReportLines {
				break
			}
			b.WriteString(recordLine(&rec))
		}
	}

	if len(summary.Expired) > 0 {
		fmt.Fprintf(&b, "\n❌ EXPIRADAS RECENTES (%d)\n", summary.ExpiredCount)
		for i, rec := range summary.Expired {
			if i == maxReportLines {
				break
			}
			fmt.Fprintf(&b, "❌ %s | %s | %s\n", rec.DisplayName, dates.ToDisplay(rec.ExpiresAt), rec.PlanLabel)
		}
	}

	return b.String()
}

func recordLine(rec *models.SubscriptionRecord) string {
	marker := "⚪"
	status := "??"
	if expiry, err := dates.Parse(rec.ExpiresAt); err == nil {
		days := dates.DaysUntil(expiry, time.Now())
		switch {
		case days > 5:
			marker, status = "🟢", fmt.Sprintf("%d dias", days)
		case days > 0:
			marker, status = "🟡", fmt.Sprintf("%d dias", days)
		case days == 0:
			marker, status = "🔴", "VENCE HOJE"
		default:
			marker, status = "🔴", "VENCIDA"
		}
	}
	return fmt.Sprintf("%s %s | %s | %s | %s\n",
		marker, rec.DisplayName, dates.ToDisplay(rec.ExpiresAt), rec.PlanLabel, status)
}

func formatRecord(rec *models.SubscriptionRecord) string {
	var b strings.Builder

	fmt.Fprintf(&b, "📋 ASSINATURA - %s\n\n", rec.DisplayName)
	fmt.Fprintf(&b, "📅 Ativação: %s\n", dates.ToDisplay(rec.ActivatedAt))
	fmt.Fprintf(&b, "📊 Plano: %s\n", rec.PlanLabel)
	fmt.Fprintf(&b, "⏰ Expira em: %s\n", dates.ToDisplay(rec.ExpiresAt))
	fmt.Fprintf(&b, "✅ Status: %s\n", rec.Status)

	expiry, err := dates.Parse(rec.ExpiresAt)
	if err != nil {
		return b.String()
	}

	days := dates.DaysUntil(expiry, time.Now())
	switch {
	case days > 7:
		fmt.Fprintf(&b, "\n🟢 %d dias restantes. Ainda há bastante tempo antes de vencer.", days)
	case days > 3:
		fmt.Fprintf(&b, "\n🟡 %d dias restantes. Faltam poucos dias, organize a renovação.", days)
	case days > 0:
		fmt.Fprintf(&b, "\n🔴 %d dias restantes. Os lembretes automáticos já começaram.", days)
	case days == 0:
		b.WriteString("\n🔴 VENCE HOJE. Renove imediatamente!")
	default:
		b.WriteString("\n🔴 ASSINATURA EXPIRADA. Renove imediatamente!")
	}

	return b.String()
}
