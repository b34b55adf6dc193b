package engine

import "strings"

// faqRule maps question keywords to a fixed answer. Rules are ordered; the
// first match wins.
type faqRule struct {
	keywords []string
	answer   string
}

var faqRules = []faqRule{
	{
		keywords: []string{"fonction", "zenoccaz"},
		answer:   "ZenOccaz te guide de A à Z : estimation, annonces, visites et démarches. Tu gagnes du temps et tu évites les pièges.",
	},
	{
		keywords: []string{"frais", "prix", "tarif", "coût", "cout"},
		answer:   "Les frais dépendent du service. On te donne un tarif clair avant de démarrer.",
	},
	{
		keywords: []string{"document"},
		answer:   "On te demande les documents classiques : carte grise, pièce d'identité, contrôle technique si besoin.",
	},
	{
		keywords: []string{"vente"},
		answer:   "On estime, on publie, on filtre les acheteurs et on sécurise la vente. Tu restes tranquille.",
	},
	{
		keywords: []string{"achat"},
		answer:   "On cherche selon tes critères, on vérifie le véhicule et on sécurise la transaction.",
	},
	{
		keywords: []string{"delai", "délai"},
		answer:   "Les délais varient selon le véhicule, mais on va vite dès que ton dossier est complet.",
	},
	{
		keywords: []string{"secur", "sécur", "garantie"},
		answer:   "On sécurise chaque étape et on évite les arnaques. C'est notre priorité.",
	},
}

// MatchFAQ matches a question against the ordered keyword rules using
// case-insensitive substring containment. It reports whether a rule matched;
// no match means the flow falls back to a human handoff.
func MatchFAQ(question string) (string, bool) {
	q := strings.ToLower(question)
	for _, rule := range faqRules {
		for _, kw := range rule.keywords {
			if strings.Contains(q, kw) {
				return rule.answer, true
			}
		}
	}
	return "", false
}
