package usecase

import (
	"strings"

	"asistente-tienda/internal/domain/model"
	"asistente-tienda/internal/infra/i18n"
	"asistente-tienda/internal/textnorm"
)

// fallbackReply renders the deterministic reply for an intent. It depends
// only on its arguments, so equal retrievals give byte-equal text.
func fallbackReply(tr *i18n.Translator, store string, intent model.Intent, passages []model.Passage, products []model.Product) string {
	switch intent {
	case model.IntentGreeting:
		return tr.T("greeting_reply", store)
	case model.IntentPolicy:
		if len(passages) == 0 {
			return tr.T("policy_none")
		}
		return policyLines(tr, passages)
	case model.IntentProduct, model.IntentPrice:
		if len(products) == 0 {
			return tr.T("products_none")
		}
		return productLines(tr, products)
	case model.IntentOrder:
		return tr.T("order_reply")
	}

	if len(passages) == 0 && len(products) == 0 {
		return tr.T("other_none")
	}
	parts := make([]string, 0, 2)
	if len(passages) > 0 {
		parts = append(parts, policyLines(tr, passages))
	}
	if len(products) > 0 {
		parts = append(parts, productLines(tr, products))
	}
	return strings.Join(parts, "\n\n")
}

func policyLines(tr *i18n.Translator, passages []model.Passage) string {
	lines := make([]string, len(passages))
	for i, p := range passages {
		lines[i] = tr.T("policy_line", p.Title, textnorm.FirstSentence(p.Body))
	}
	return strings.Join(lines, "\n")
}

func productLines(tr *i18n.Translator, products []model.Product) string {
	lines := make([]string, 0, len(products)+1)
	lines = append(lines, tr.T("products_header"))
	for _, p := range products {
		lines = append(lines, tr.T("product_line", p.Title, p.Price()))
	}
	return strings.Join(lines, "\n")
}

func recommendationReason(tr *i18n.Translator, intent model.Intent) string {
	switch intent {
	case model.IntentProduct:
		return tr.T("reason_product")
	case model.IntentPrice:
		return tr.T("reason_price")
	}
	return tr.T("reason_other")
}
