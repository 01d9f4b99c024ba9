// ABOUTME: Responder interface and a canned keyword responder for the mock API
// ABOUTME: Replies are split into word chunks and streamed with a configurable delay

package conversation

import (
	"context"
	"strings"
	"time"

	"github.com/uvci/campus-assistant/internal/store"
)

// ReplyEvent is the kind of a responder event
type ReplyEvent string

const (
	ReplyChunk ReplyEvent = "chunk"
	ReplyDone  ReplyEvent = "done"
	ReplyError ReplyEvent = "error"
)

// Reply is one event from a Responder. The channel ends after Done or Error.
type Reply struct {
	Event ReplyEvent
	Text  string
	Error string
}

// ReplyRequest is the input handed to a Responder
type ReplyRequest struct {
	ConversationID string
	Content        string
	History        []*store.Message // earlier messages, oldest first
}

// Responder produces the assistant reply for a user message
type Responder interface {
	Respond(ctx context.Context, req *ReplyRequest) (<-chan *Reply, error)
}

// ResponderFunc adapts a function to the Responder interface
type ResponderFunc func(ctx context.Context, req *ReplyRequest) (<-chan *Reply, error)

// Respond calls f(ctx, req)
func (f ResponderFunc) Respond(ctx context.Context, req *ReplyRequest) (<-chan *Reply, error) {
	return f(ctx, req)
}

type cannedAnswer struct {
	keywords []string
	answer   string
}

var cannedAnswers = []cannedAnswer{
	{
		keywords: []string{"bonjour", "salut", "hello", "bonsoir"},
		answer:   "Bonjour ! Je suis l'assistant de l'**UVCI**. Posez-moi vos questions sur vos cours, les examens, l'inscription ou la plateforme.",
	},
	{
		keywords: []string{"inscription", "inscrire", "frais", "paiement", "scolarité"},
		answer: "## Inscription et frais\n\n" +
			"- Le paiement des frais de scolarité se fait en ligne depuis votre espace étudiant.\n" +
			"- Conservez le reçu de paiement, il est demandé lors de la réinscription.\n\n" +
			"Pour toute difficulté, contactez le service de la scolarité.",
	},
	{
		keywords: []string{"examen", "examens", "rattrapage", "session"},
		answer: "## Examens\n\n" +
			"1. Les examens du semestre 1 débutent le **15 janvier 2025**.\n" +
			"2. La session de rattrapage est prévue le **10 février 2025**.\n\n" +
			"Consultez le calendrier du tableau de bord pour les horaires.",
	},
	{
		keywords: []string{"moodle", "devoir", "devoirs", "cours", "plateforme"},
		answer: "Vos cours et devoirs sont disponibles sur la plateforme **Moodle** de l'UVCI. " +
			"Liez votre compte UVCI dans les paramètres pour être alerté des devoirs à rendre.",
	},
	{
		keywords: []string{"diplôme", "diplome", "cérémonie", "ceremonie"},
		answer: "La cérémonie de remise de diplômes aura lieu le **15 janvier 2025**. " +
			"Les modalités seront communiquées par annonce officielle.",
	},
}

const defaultAnswer = "Je n'ai pas trouvé d'information précise à ce sujet dans les documents de l'UVCI. " +
	"Pouvez-vous reformuler votre question ou préciser le cours concerné ?"

// CannedResponder answers from a small keyword table. It stands in for the
// retrieval-augmented model of the real backend.
type CannedResponder struct {
	// Delay is the pause between chunks
	Delay time.Duration
}

// Answer returns the full reply text for a message
func (r *CannedResponder) Answer(content string) string {
	words := strings.FieldsFunc(strings.ToLower(content), func(c rune) bool {
		return !(c == '\'' || c == '-' || isLetterOrDigit(c))
	})
	for _, ca := range cannedAnswers {
		for _, w := range words {
			for _, k := range ca.keywords {
				if w == k {
					return ca.answer
				}
			}
		}
	}
	return defaultAnswer
}

func isLetterOrDigit(c rune) bool {
	return c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c > 127
}

// Respond streams the canned answer word by word
func (r *CannedResponder) Respond(ctx context.Context, req *ReplyRequest) (<-chan *Reply, error) {
	chunks := SplitChunks(r.Answer(req.Content))
	out := make(chan *Reply)

	go func() {
		defer close(out)
		for _, chunk := range chunks {
			if r.Delay > 0 {
				select {
				case <-time.After(r.Delay):
				case <-ctx.Done():
					return
				}
			}
			select {
			case out <- &Reply{Event: ReplyChunk, Text: chunk}:
			case <-ctx.Done():
				return
			}
		}
		select {
		case out <- &Reply{Event: ReplyDone}:
		case <-ctx.Done():
		}
	}()

	return out, nil
}

// SplitChunks cuts text after each run of spaces so that concatenating the
// chunks gives back the original text.
func SplitChunks(text string) []string {
	var chunks []string
	start := 0
	for i := 0; i < len(text); i++ {
		if text[i] != ' ' && text[i] != '\n' {
			continue
		}
		j := i
		for j < len(text) && (text[j] == ' ' || text[j] == '\n') {
			j++
		}
		chunks = append(chunks, text[start:j])
		start = j
		i = j - 1
	}
	if start < len(text) {
		chunks = append(chunks, text[start:])
	}
	return chunks
}
