package engine

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/zenoccaz/chatlead/internal/models"
	"github.com/zenoccaz/chatlead/internal/relay"
)

func enterAIMode(t *testing.T, e *Engine) {
	t.Helper()
	e.Start()
	e.SubmitButton("ai_chat", "Discuter avec l'IA")
	if e.Mode() != models.ModeAIChat {
		t.Fatalf("expected ai_chat mode, got %q", e.Mode())
	}
}

func TestAIChatSuccessRendersReplyAndPersistsMetadata(t *testing.T) {
	fake := &fakeRelay{reply: "Nos services couvrent l'achat et la vente."}
	e, st, rec := newTestEngine(t, fake)
	enterAIMode(t, e)

	e.SubmitText("quels sont vos services ?")
	waitForMessage(t, e, "Nos services couvrent")
	rec.Wait()

	lead, err := st.GetLeadBySession(context.Background(), "sess_test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lead == nil {
		t.Fatal("lead metadata not persisted")
	}
	if lead.Payload["last_message"] != "quels sont vos services ?" {
		t.Errorf("last_message not recorded: %v", lead.Payload)
	}
	if lead.Payload["last_response"] != "Nos services couvrent l'achat et la vente." {
		t.Errorf("last_response not recorded: %v", lead.Payload)
	}
	if lead.Payload["ai_conversation_topic"] != "quels sont vos services ?" {
		t.Errorf("topic not captured: %v", lead.Payload)
	}
	if lead.Payload["conversation_length"] != "2" {
		t.Errorf("conversation_length = %q, want 2", lead.Payload["conversation_length"])
	}
	if !strings.Contains(lead.Payload["full_conversation"], "Client: quels sont vos services ?") {
		t.Errorf("full_conversation missing user turn: %q", lead.Payload["full_conversation"])
	}
}

func TestAIChatReplyWithContactKeywordSchedulesButtons(t *testing.T) {
	fake := &fakeRelay{reply: "Je peux te mettre en contact avec Ludo si tu veux avancer."}
	e, _, _ := newTestEngine(t, fake)
	enterAIMode(t, e)

	e.SubmitText("je veux vendre ma voiture")
	waitForMessage(t, e, msgRecontactPrompt)

	last := lastMessage(e)
	if last.Kind != models.MessageKindButtons || len(last.Options) != 2 {
		t.Fatalf("expected recontact buttons, got %+v", last)
	}

	// Declining keeps the AI conversation going.
	e.SubmitButton("no_contact", "Non, continuer à discuter")
	if got := lastMessage(e).Text; got != msgKeepChatting {
		t.Errorf("expected keep-chatting message, got %q", got)
	}
}

func TestAIChatAcceptingRecontactEntersContactOffer(t *testing.T) {
	fake := &fakeRelay{reply: "Tu veux que Ludo te rappelle ?"}
	e, st, rec := newTestEngine(t, fake)
	enterAIMode(t, e)

	e.SubmitText("oui je veux un rappel")
	waitForMessage(t, e, msgRecontactPrompt)

	e.SubmitButton("yes_contact", "Oui, rappelle-moi")
	waitForMessage(t, e, msgContactOfferLead)

	e.SubmitButton("callback", "Être rappelé")
	e.SubmitText("06 12 34 56 78, plutôt le soir")
	rec.Wait()

	lead, _ := st.GetLeadBySession(context.Background(), "sess_test")
	if lead == nil {
		t.Fatal("lead not persisted")
	}
	if lead.Payload["contact_choice"] != "callback" {
		t.Errorf("contact_choice = %q", lead.Payload["contact_choice"])
	}
	if lead.Payload["callback_info"] != "06 12 34 56 78, plutôt le soir" {
		t.Errorf("callback_info = %q", lead.Payload["callback_info"])
	}
}

func TestAIChatTransportFailureShowsConnectionLostThenButtons(t *testing.T) {
	fake := &fakeRelay{err: errors.New("request timed out")}
	e, _, _ := newTestEngine(t, fake)
	enterAIMode(t, e)

	e.SubmitText("bonjour")
	waitForMessage(t, e, msgConnectionLost)
	waitForMessage(t, e, msgRecontactPrompt)

	if e.Loading() {
		t.Error("loading state not released after failure")
	}
}

func TestAIChatEmptyResponseShowsTechnicalIssueWithoutButtons(t *testing.T) {
	fake := &fakeRelay{err: relay.ErrEmptyResponse}
	e, _, _ := newTestEngine(t, fake)
	enterAIMode(t, e)

	e.SubmitText("bonjour")
	waitForMessage(t, e, msgTechnicalIssue)

	// Give a scheduled prompt time to fire if one was (wrongly) armed.
	time.Sleep(50 * time.Millisecond)
	for _, msg := range e.Transcript() {
		if msg.Text == msgRecontactPrompt {
			t.Fatal("contact buttons must not be offered for an empty completion")
		}
	}
}

func TestAIChatEachTurnCallsRelayOnce(t *testing.T) {
	fake := &fakeRelay{reply: "ok"}
	e, _, _ := newTestEngine(t, fake)
	enterAIMode(t, e)

	e.SubmitText("premier")
	waitForMessage(t, e, "ok")
	e.SubmitText("deuxième")

	deadline := time.Now().Add(2 * time.Second)
	for fake.callCount() < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("expected 2 relay calls, got %d", fake.callCount())
		}
		time.Sleep(5 * time.Millisecond)
	}
	if fake.callCount() != 2 {
		t.Errorf("expected exactly 2 relay calls, got %d", fake.callCount())
	}
}

func TestContainsContactKeyword(t *testing.T) {
	cases := map[string]bool{
		"Je peux te mettre en CONTACT avec l'équipe": true,
		"Ludo te rappelle demain":                    true,
		"Laisse-moi tes coordonnées":                 true,
		"Voici une réponse neutre":                   false,
	}
	for reply, want := range cases {
		if got := containsContactKeyword(reply); got != want {
			t.Errorf("containsContactKeyword(%q) = %v, want %v", reply, got, want)
		}
	}
}
