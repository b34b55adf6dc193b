package engine

// Bot copy shared across flows. The widget speaks French.
const (
	msgGreeting     = "Salut, je suis l'assistant ZenOccaz. Comment puis-je t'aider aujourd'hui ?"
	msgMenuPrompt   = "Choisis une option :"
	msgChooseOption = "Choisis une option pour commencer."

	msgAIWelcome = "Parfait ! Pose-moi toutes tes questions sur les véhicules, l'achat, la vente, ou n'importe quoi d'autre. Je suis là pour t'aider ! 🚗"

	// Surfaced when the completion endpoint answered but carried no reply.
	msgTechnicalIssue = "Désolé, j'ai un souci technique. Réessaye ou laisse-moi tes coordonnées pour qu'on te rappelle."
	// Surfaced on transport failure or timeout.
	msgConnectionLost = "Oups, connexion perdue. Laisse-moi ton email ou numéro si tu veux qu'on te recontacte."

	msgContactOfferLead = "Tu veux qu'on passe à l'action ?"
	msgRecontactPrompt  = "Tu veux qu'on te recontacte ?"
	msgKeepChatting     = "Pas de souci ! Continue à me poser tes questions. 😊"
)
