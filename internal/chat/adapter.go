package chat

import (
	"context"
	"errors"
	"strings"

	"github.com/DerMichael0408/CyberGuide/internal/ai"
	"github.com/DerMichael0408/CyberGuide/internal/knowledge"
	"github.com/DerMichael0408/CyberGuide/internal/logger"
	"go.uber.org/zap"
)

// GuidelinesCharBudget caps how much of a policy document is sent to the model.
const GuidelinesCharBudget = 12000

const expertPersona = "You are CyberGuide, a cybersecurity expert assistant for employees. " +
	"Answer clearly and accurately, and recommend safe behaviour when the question touches on a risk."

type ContextRetriever interface {
	Retrieve(ctx context.Context, query string, k int) (knowledge.Result, error)
}

// Adapter grounds expert answers in the knowledge base: every request is
// [system(persona + retrieved knowledge), ...history, user(query)].
type Adapter struct {
	retriever     ContextRetriever
	provider      ai.Provider
	includeRanked bool
	log           *zap.Logger
}

func NewAdapter(retriever ContextRetriever, provider ai.Provider, includeRanked bool, log *zap.Logger) *Adapter {
	return &Adapter{
		retriever:     retriever,
		provider:      provider,
		includeRanked: includeRanked,
		log:           logger.OrNop(log).Named("expert"),
	}
}

// WithProvider returns a copy of a that talks to p.
func (a *Adapter) WithProvider(p ai.Provider) *Adapter {
	cp := *a
	cp.provider = p
	return &cp
}

func (a *Adapter) systemMessage(ctx context.Context, query string) ai.Message {
	var b strings.Builder
	b.WriteString(expertPersona)

	if a.retriever == nil {
		b.WriteString("\n\nNo background information is available for this question. Answer from your general cybersecurity expertise.")
		return ai.SystemMessage(b.String())
	}

	res, err := a.retriever.Retrieve(ctx, query, 0)
	if err != nil {
		a.log.Warn("retrieval failed, answering without background", zap.Error(err))
		b.WriteString("\n\nNo background information is available for this question. Answer from your general cybersecurity expertise.")
		return ai.SystemMessage(b.String())
	}

	b.WriteString("\n\nRetrieved Knowledge:\n")
	b.WriteString(res.Best())
	if a.includeRanked && len(res.Ranked) > 1 {
		b.WriteString("\n\nAdditional Context:")
		for _, c := range res.Ranked[1:] {
			b.WriteString("\n- ")
			b.WriteString(c)
		}
	}
	b.WriteString("\n\nUse the retrieved knowledge as background: synthesize it into your own explanation rather than quoting it verbatim. " +
		"If it does not fit the question, rely on your general security expertise.")
	return ai.SystemMessage(b.String())
}

// Messages builds the model input for query on top of history.
func (a *Adapter) Messages(ctx context.Context, query string, history []ai.Message) []ai.Message {
	msgs := make([]ai.Message, 0, len(history)+2)
	msgs = append(msgs, a.systemMessage(ctx, query))
	msgs = append(msgs, history...)
	return append(msgs, ai.UserMessage(query))
}

func (a *Adapter) Respond(ctx context.Context, query string, history []ai.Message) (string, error) {
	if a.provider == nil {
		return "", errors.New("expert chat: no model provider")
	}
	return a.provider.Chat(ctx, a.Messages(ctx, query, history))
}

func (a *Adapter) Stream(ctx context.Context, query string, history []ai.Message) (<-chan string, <-chan error) {
	if a.provider == nil {
		chunks := make(chan string)
		errs := make(chan error, 1)
		close(chunks)
		errs <- errors.New("expert chat: no model provider")
		close(errs)
		return chunks, errs
	}
	return ai.Stream(ctx, a.provider, a.Messages(ctx, query, history))
}

// AskGuidelines answers question from a company policy document only.
func (a *Adapter) AskGuidelines(ctx context.Context, document, question string) (string, error) {
	if a.provider == nil {
		return "", errors.New("expert chat: no model provider")
	}
	doc := strings.TrimSpace(document)
	if doc == "" {
		return "", errors.New("guidelines document is empty")
	}
	if r := []rune(doc); len(r) > GuidelinesCharBudget {
		doc = string(r[:GuidelinesCharBudget])
	}

	return a.provider.Chat(ctx, []ai.Message{
		ai.SystemMessage("You answer questions about the company's security guidelines. " +
			"Use only the document below. If it does not cover the question, say so.\n\n" +
			"Company Guidelines:\n" + doc),
		ai.UserMessage(question),
	})
}
