package engine

import "github.com/zenoccaz/chatlead/internal/models"

// The scripted flows are fixed, hand-authored chains: each continuation
// records its answer, persists it, and registers the next prompt's handler.
// Every flow funnels into the shared contact-offer sub-flow.

// startSellFlowLocked runs the vehicle-selling script. Caller must hold e.mu.
func (e *Engine) startSellFlowLocked() {
	e.beginFlowLocked(models.ModeSell)
	e.askTextLocked("Quel est le modèle et l'année du véhicule ?", func(text string) {
		e.recorder.RecordAnswer(map[string]string{"model": text})
		e.askTextLocked("Quel est le kilométrage approximatif ?", func(km string) {
			e.recorder.RecordAnswer(map[string]string{"km": km})
			e.askButtonsLocked("Quel est l'état général ?", []models.ButtonOption{
				{Label: "Très bon", Value: "tres_bon"},
				{Label: "Bon", Value: "bon"},
				{Label: "Moyen", Value: "moyen"},
				{Label: "À revoir", Value: "a_revoir"},
			}, func(value, label string) {
				e.recorder.RecordAnswer(map[string]string{"etat": label})
				e.askTextLocked("Où se trouve le véhicule ?", func(lieu string) {
					e.recorder.RecordAnswer(map[string]string{"lieu": lieu})
					e.askButtonsLocked("Tu veux vendre rapidement ou tu n'es pas pressé ?", []models.ButtonOption{
						{Label: "Vendre rapidement", Value: "rapide"},
						{Label: "Pas pressé", Value: "pas_presse"},
					}, func(speed, speedLabel string) {
						e.recorder.RecordAnswer(map[string]string{"urgence": speedLabel})
						e.appendBotLocked("Je peux te donner une estimation réaliste du prix et t'expliquer comment ZenOccaz s'occupe de tout pour toi.\nTu veux qu'on avance ensemble ?")
						e.askButtonsLocked("Choisis :", []models.ButtonOption{
							{Label: "Oui, je veux une estimation", Value: "estimation"},
							{Label: "Je veux comprendre comment ça marche", Value: "how"},
						}, func(choice, _ string) {
							if choice == "estimation" {
								e.appendBotLocked("Tu peux m'envoyer quelques photos ici si tu veux, ça m'aidera à affiner.")
								e.offerContactLocked()
								return
							}
							e.appendBotLocked("ZenOccaz s'occupe de l'estimation, des annonces, des visites et des démarches. Tu restes tranquille, on gère.")
							e.offerContactLocked()
						})
					})
				})
			})
		})
	})
}

// startBuyFlowLocked runs the vehicle-buying script. Caller must hold e.mu.
func (e *Engine) startBuyFlowLocked() {
	e.beginFlowLocked(models.ModeBuy)
	e.askTextLocked("Quel type de véhicule tu cherches ?", func(text string) {
		e.recorder.RecordAnswer(map[string]string{"type": text})
		e.askTextLocked("Quel budget tu veux mettre ?", func(budget string) {
			e.recorder.RecordAnswer(map[string]string{"budget": budget})
			e.askTextLocked("Quel kilométrage maximum ?", func(km string) {
				e.recorder.RecordAnswer(map[string]string{"km": km})
				e.askTextLocked("Quelles options sont importantes pour toi ?", func(options string) {
					e.recorder.RecordAnswer(map[string]string{"options": options})
					e.askButtonsLocked("Tu veux acheter rapidement ou tu as le temps ?", []models.ButtonOption{
						{Label: "Acheter rapidement", Value: "rapide"},
						{Label: "J'ai le temps", Value: "temps"},
					}, func(value, label string) {
						e.recorder.RecordAnswer(map[string]string{"urgence": label})
						e.appendBotLocked("Je peux te proposer une recherche personnalisée et t'éviter les arnaques.\nTu veux que je t'aide à trouver le bon véhicule ?")
						e.askButtonsLocked("Choisis :", []models.ButtonOption{
							{Label: "Oui, aide-moi", Value: "help"},
							{Label: "Explique-moi comment ça marche", Value: "how"},
						}, func(choice, _ string) {
							if choice == "help" {
								e.offerContactLocked()
								return
							}
							e.appendBotLocked("On sélectionne pour toi, on vérifie l'historique, on sécurise la transaction. Simple et clair.")
							e.offerContactLocked()
						})
					})
				})
			})
		})
	})
}

// startFaqFlowLocked runs the FAQ script: one free-text question matched
// against the keyword rules, with a human handoff when nothing matches.
// Caller must hold e.mu.
func (e *Engine) startFaqFlowLocked() {
	e.beginFlowLocked(models.ModeFaq)
	e.askTextLocked("Pose ta question.", func(text string) {
		e.recorder.RecordAnswer(map[string]string{"question": text})
		if answer, ok := MatchFAQ(text); ok {
			e.appendBotLocked(answer)
			e.offerContactLocked()
			return
		}
		e.appendBotLocked("Je peux te mettre en contact direct avec Ludo si tu veux. Tu préfères un appel ou un message ?")
		e.askButtonsLocked("Choisis :", []models.ButtonOption{
			{Label: "Appel", Value: "call"},
			{Label: "Message", Value: "message"},
		}, func(_, _ string) {
			e.offerContactLocked()
		})
	})
}

// offerContactLocked runs the terminal contact-offer sub-flow: one contact
// channel choice, one channel-specific follow-up, one closing acknowledgement.
// Caller must hold e.mu.
func (e *Engine) offerContactLocked() {
	e.appendBotLocked(msgContactOfferLead)
	e.askButtonsLocked(msgMenuPrompt, []models.ButtonOption{
		{Label: "Prendre un rendez-vous", Value: "rdv"},
		{Label: "Être rappelé", Value: "callback"},
		{Label: "Envoyer un message WhatsApp", Value: "whatsapp"},
		{Label: "Laisser mon email", Value: "email"},
	}, func(value, _ string) {
		e.recorder.RecordAnswer(map[string]string{"contact_choice": value})
		switch value {
		case "email":
			e.askTextLocked("Ok, donne ton email.", func(email string) {
				e.recorder.RecordAnswer(map[string]string{"email": email})
				e.appendBotLocked("Merci. L'équipe revient vers toi rapidement.")
			})
		case "callback":
			e.askTextLocked("Super. Laisse ton numéro et le meilleur créneau.", func(text string) {
				e.recorder.RecordAnswer(map[string]string{"callback_info": text})
				e.appendBotLocked("Parfait. On te rappelle vite.")
			})
		case "whatsapp":
			e.askTextLocked("Ok. Donne ton numéro WhatsApp.", func(text string) {
				e.recorder.RecordAnswer(map[string]string{"whatsapp": text})
				e.appendBotLocked("Merci. On te contacte sur WhatsApp.")
			})
		default:
			e.askTextLocked("Parfait. Donne ton nom et ton créneau préféré.", func(text string) {
				e.recorder.RecordAnswer(map[string]string{"rdv_info": text})
				e.appendBotLocked("C'est noté. On confirme vite le rendez-vous.")
			})
		}
	})
}
