package usecase

import (
	"strings"

	"asistente-tienda/internal/domain/model"
	"asistente-tienda/internal/infra/i18n"
	"asistente-tienda/internal/textnorm"
)

const (
	maxPassageBytes = 2048
	maxProductBytes = 1024
	maxContextTurns = 4
	shortDescRunes  = 80
	// a clipped line shorter than this carries no useful text
	minClippedLine = 16
)

// Prompt is the assembled generation input plus the sizes of its bounded parts.
type Prompt struct {
	Text         string
	PassageBytes int
	ProductBytes int
	Turns        int
}

func buildPrompt(tr *i18n.Translator, store string, passages []model.Passage, products []model.Product, history []model.Exchange, utterance string) Prompt {
	var b strings.Builder
	var p Prompt

	b.WriteString(strings.TrimSpace(tr.Preamble(store)))
	b.WriteString("\n\n")

	if len(passages) > 0 {
		lines := make([]string, 0, len(passages))
		for _, ps := range passages {
			lines = append(lines, ps.Title+": "+oneLine(ps.Body))
		}
		section, n := bounded(lines, maxPassageBytes)
		if n > 0 {
			b.WriteString(tr.T("prompt_passages"))
			b.WriteByte('\n')
			b.WriteString(section)
			b.WriteByte('\n')
			p.PassageBytes = n
		}
	}

	if len(products) > 0 {
		lines := make([]string, 0, len(products))
		for _, pr := range products {
			lines = append(lines, pr.Title+" — $"+pr.Price()+" — "+shortDescription(pr.Description))
		}
		section, n := bounded(lines, maxProductBytes)
		if n > 0 {
			b.WriteString(tr.T("prompt_products"))
			b.WriteByte('\n')
			b.WriteString(section)
			b.WriteByte('\n')
			p.ProductBytes = n
		}
	}

	if len(history) > maxContextTurns {
		history = history[len(history)-maxContextTurns:]
	}
	if len(history) > 0 {
		b.WriteString(tr.T("prompt_history"))
		b.WriteByte('\n')
		for _, ex := range history {
			b.WriteString(tr.T("prompt_user") + ": " + oneLine(ex.Utterance) + "\n")
			b.WriteString(tr.T("prompt_assistant") + ": " + oneLine(ex.Reply) + "\n")
		}
		b.WriteByte('\n')
		p.Turns = len(history)
	}

	b.WriteString(tr.T("prompt_question"))
	b.WriteByte('\n')
	b.WriteString(utterance)
	p.Text = b.String()
	return p
}

// bounded renders lines as "- " bullets until budget bytes of line text are
// used. The line that crosses the budget is clipped; later lines are dropped.
// It returns the section and the line bytes it spent.
func bounded(lines []string, budget int) (string, int) {
	var b strings.Builder
	used := 0
	for _, line := range lines {
		left := budget - used
		if left <= 0 {
			break
		}
		if len(line) > left {
			if left < minClippedLine {
				break
			}
			line = textnorm.Truncate(line, left)
		}
		b.WriteString("- ")
		b.WriteString(line)
		b.WriteByte('\n')
		used += len(line)
	}
	return b.String(), used
}

func shortDescription(s string) string {
	s = oneLine(s)
	r := []rune(s)
	if len(r) <= shortDescRunes {
		return s
	}
	return strings.TrimSpace(string(r[:shortDescRunes])) + "…"
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
