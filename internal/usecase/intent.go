package usecase

import (
	"strings"

	"asistente-tienda/internal/domain/model"
	"asistente-tienda/internal/textnorm"
)

// Token sets are stored folded and stemmed, the same shape textnorm.Terms yields.
var (
	greetingTokens = stemSet("hola", "buenos", "buenas", "saludos", "hello", "hi", "hey")

	genericProduct = stemSet("producto", "catalogo", "articulo")

	policyTokens = stemSet("envio", "envios", "enviar", "devolucion", "devolver", "pago", "pagar", "garantia",
		"reembolso", "politica", "entrega", "horario", "fidelidad", "oferta", "descuento",
		"shipping", "return", "warranty")

	priceTokens = stemSet("precio", "cuanto", "cuesta", "cuestan", "costo", "barato", "caro",
		"price", "cost", "usd", "eur", "euro", "dolar")

	orderTokens = stemSet("pedido", "orden", "comprar", "compra", "checkout", "carrito", "order", "buy")

	currencyMarks = []string{"$", "€"}
)

func stemSet(words ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		out[textnorm.Stem(textnorm.Fold(w))] = struct{}{}
	}
	return out
}

// IntentSniffer classifies utterances by keyword presence. Product nouns are
// the catalog title vocabulary captured at construction.
type IntentSniffer struct {
	productTokens map[string]struct{}
}

func NewIntentSniffer(titleTerms []string) *IntentSniffer {
	p := make(map[string]struct{}, len(titleTerms)+len(genericProduct))
	for t := range genericProduct {
		p[t] = struct{}{}
	}
	for _, t := range titleTerms {
		// title words that are also policy/price/order words would mask those intents
		if hasAny(policyTokens, t) || hasAny(priceTokens, t) || hasAny(orderTokens, t) || hasAny(greetingTokens, t) {
			continue
		}
		p[t] = struct{}{}
	}
	return &IntentSniffer{productTokens: p}
}

// Classify applies the priority order > price > product > policy > greeting > other.
func (s *IntentSniffer) Classify(utterance string) model.Intent {
	terms := textnorm.Terms(utterance)
	var greeting, product, policy, price, order bool
	for _, t := range terms {
		greeting = greeting || hasAny(greetingTokens, t)
		product = product || hasAny(s.productTokens, t)
		policy = policy || hasAny(policyTokens, t)
		price = price || hasAny(priceTokens, t)
		order = order || hasAny(orderTokens, t)
	}
	for _, m := range currencyMarks {
		if strings.Contains(utterance, m) {
			price = true
		}
	}
	switch {
	case order:
		return model.IntentOrder
	case price:
		return model.IntentPrice
	case product:
		return model.IntentProduct
	case policy:
		return model.IntentPolicy
	case greeting:
		return model.IntentGreeting
	}
	return model.IntentOther
}

func hasAny(set map[string]struct{}, t string) bool {
	_, ok := set[t]
	return ok
}
