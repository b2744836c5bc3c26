package limits

import (
	"fmt"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"

	"github.com/dmitrymomot/subcycle/svc/plan"
)

const (
	keyLimitReached = "limit.reached"
	keyInactive     = "subscription.inactive"

	keyContacts  = "feature.contacts"
	keyUsers     = "feature.users"
	keyPipelines = "feature.pipelines"
	keyDeals     = "feature.deals"
	keyOther     = "feature.other"
)

// Supported lists the message languages; the first one is the default.
var Supported = []language.Tag{language.Spanish, language.English}

var (
	matcher  = language.NewMatcher(Supported)
	messages = buildCatalog()
)

func buildCatalog() catalog.Catalog {
	b := catalog.NewBuilder(catalog.Fallback(Supported[0]))
	set := func(tag language.Tag, key, msg string) {
		if err := b.SetString(tag, key, msg); err != nil {
			panic(fmt.Errorf("limits: message %q for %s: %w", key, tag, err))
		}
	}

	es, en := language.Spanish, language.English
	set(es, keyLimitReached, "Has alcanzado el límite de %s de tu plan %s. Actualiza a un plan superior para continuar.")
	set(en, keyLimitReached, "You have reached the %s limit of your %s plan. Upgrade to a higher plan to continue.")
	set(es, keyInactive, "Tu suscripción ha expirado. Por favor, renueva tu plan para continuar.")
	set(en, keyInactive, "Your subscription has expired. Please renew your plan to continue.")

	set(es, keyContacts, "contactos")
	set(en, keyContacts, "contacts")
	set(es, keyUsers, "usuarios")
	set(en, keyUsers, "users")
	set(es, keyPipelines, "pipelines")
	set(en, keyPipelines, "pipelines")
	set(es, keyDeals, "deals")
	set(en, keyDeals, "deals")
	set(es, keyOther, "recursos")
	set(en, keyOther, "resources")
	return b
}

// MatchLanguage picks the supported language closest to tag.
func MatchLanguage(tag language.Tag) language.Tag {
	_, idx, _ := matcher.Match(tag)
	return Supported[idx]
}

// MatchAcceptLanguage resolves an Accept-Language header value. Malformed
// or empty headers yield the default language.
func MatchAcceptLanguage(header string) language.Tag {
	tags, _, err := language.ParseAcceptLanguage(header)
	if err != nil || len(tags) == 0 {
		return Supported[0]
	}
	_, idx, _ := matcher.Match(tags...)
	return Supported[idx]
}

func printer(tag language.Tag) *message.Printer {
	return message.NewPrinter(MatchLanguage(tag), message.Catalog(messages))
}

func featureName(p *message.Printer, f plan.Feature) string {
	switch f {
	case plan.FeatureContacts:
		return p.Sprintf(keyContacts)
	case plan.FeatureUsers:
		return p.Sprintf(keyUsers)
	case plan.FeaturePipelines:
		return p.Sprintf(keyPipelines)
	case plan.FeatureDeals:
		return p.Sprintf(keyDeals)
	default:
		return p.Sprintf(keyOther)
	}
}

func limitMessage(tag language.Tag, f plan.Feature, planName string) string {
	p := printer(tag)
	return p.Sprintf(keyLimitReached, featureName(p, f), planName)
}

func inactiveMessage(tag language.Tag) string {
	return printer(tag).Sprintf(keyInactive)
}
