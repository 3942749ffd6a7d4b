package telegram

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"plant-doctor/api/internal/catalog"
	"plant-doctor/api/internal/plant/types"
)

const engineCallbackPrefix = "engine:"

const helpText = `Send a photo of a plant and I will identify it and check its health.
Add a caption to describe what you see (spots, wilting, where it grows).

Commands:
/diseases - known crop diseases
/disease <slug> - details of one disease
/summary <slug> - short AI summary of a disease
/history - recent diagnoses
/engine [name] - show or switch the AI engine`

// One button per engine for /engine.
func makeEngineKeyboard(names []string) tgbotapi.InlineKeyboardMarkup {
	row := make([]tgbotapi.InlineKeyboardButton, 0, len(names))
	for _, n := range names {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(n, engineCallbackPrefix+n))
	}
	return tgbotapi.NewInlineKeyboardMarkup(row)
}

func formatDiagnosis(res types.DiagnosisResult) string {
	var b strings.Builder
	id := res.Identification
	if !id.IsPlant {
		b.WriteString("🤔 This does not look like a plant.\n\n")
		b.WriteString(esc(res.Diagnosis.Diagnosis))
		return b.String()
	}
	fmt.Fprintf(&b, "🌿 *%s* (_%s_)\n", esc(id.CommonName), esc(id.LatinName))
	if res.Diagnosis.IsHealthy {
		b.WriteString("Status: ✅ healthy\n\n")
	} else {
		b.WriteString("Status: ⚠️ needs attention\n\n")
	}
	b.WriteString(esc(res.Diagnosis.Diagnosis))
	return b.String()
}

func formatDiseases(ds []catalog.Disease) string {
	if len(ds) == 0 {
		return "The disease catalog is empty."
	}
	var b strings.Builder
	b.WriteString("*Known diseases*\n\n")
	for _, d := range ds {
		fmt.Fprintf(&b, "• %s: /disease %s\n", esc(d.Name), esc(d.Slug))
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatDisease(d catalog.Disease) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*%s*\n%s\n", esc(d.Name), esc(d.Description))
	section(&b, "Symptoms", d.Symptoms)
	section(&b, "Causes", d.Causes)
	section(&b, "Prevention", d.Prevention)
	section(&b, "Organic treatment", d.Treatment.Organic)
	section(&b, "Chemical treatment", d.Treatment.Chemical)
	return strings.TrimRight(b.String(), "\n")
}

func section(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "\n*%s*\n", title)
	for _, it := range items {
		b.WriteString("• ")
		b.WriteString(esc(it))
		b.WriteString("\n")
	}
}

func formatHistory(rs []catalog.DiagnosisRecord) string {
	if len(rs) == 0 {
		return "No diagnoses yet."
	}
	var b strings.Builder
	b.WriteString("*Recent diagnoses*\n\n")
	for _, r := range rs {
		fmt.Fprintf(&b, "• %s %s (%d%%)\n", r.Date.Format("2006-01-02"), esc(r.DiseaseName), r.Confidence)
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatSummary(name, summary string) string {
	return fmt.Sprintf("*%s*\n\n%s", esc(name), esc(summary))
}

// esc escapes the legacy Markdown control characters.
func esc(s string) string {
	s = strings.ReplaceAll(s, "`", "'")
	s = strings.ReplaceAll(s, "_", "\\_")
	s = strings.ReplaceAll(s, "*", "\\*")
	s = strings.ReplaceAll(s, "[", "\\[")
	return s
}
