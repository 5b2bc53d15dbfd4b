package core

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"nephro-assistant/internal/llm"
	"nephro-assistant/internal/metrics"
	"nephro-assistant/pkg"
)

// ClinicalPath names the branch of the context cascade that produced an answer.
type ClinicalPath string

const (
	PathDocuments   ClinicalPath = "documents"
	PathBlended     ClinicalPath = "blended"
	PathNoContext   ClinicalPath = "no_context"
	PathNoDocuments ClinicalPath = "no_documents"
)

const (
	// DocumentTopK is how many reference passages are retrieved per question.
	DocumentTopK = 6
	// WebResultCount is how many web results the blended path requests.
	WebResultCount = 3

	clinicalTemperature = 0.1
	clinicalMaxTokens   = 400
)

// ClinicalAnswer is the assembler's reply and the path that produced it.
type ClinicalAnswer struct {
	Text string
	Path ClinicalPath
}

// ClinicalAssembler answers clinical questions from the reference index,
// escalating to web search only for freshness requests or retrieval misses.
type ClinicalAssembler struct {
	llm      llm.Client
	model    string
	docs     DocumentSearcher
	web      WebSearcher
	phrases  Phrases
	topK     int
	webCount int
	logger   *zap.Logger
	recorder metrics.Recorder
}

// ClinicalConfig configures a ClinicalAssembler.  Web may be nil, in which
// case web access is treated as disallowed for every session.
type ClinicalConfig struct {
	LLM      llm.Client
	Model    string
	Docs     DocumentSearcher
	Web      WebSearcher
	Phrases  Phrases
	TopK     int
	WebCount int
	Logger   *zap.Logger
	Recorder metrics.Recorder
}

// NewClinicalAssembler constructs the clinical handler.
func NewClinicalAssembler(cfg ClinicalConfig) *ClinicalAssembler {
	c := &ClinicalAssembler{
		llm:      cfg.LLM,
		model:    cfg.Model,
		docs:     cfg.Docs,
		web:      cfg.Web,
		phrases:  cfg.Phrases.WithDefaults(),
		topK:     cfg.TopK,
		webCount: cfg.WebCount,
		logger:   cfg.Logger,
		recorder: cfg.Recorder,
	}
	if c.topK <= 0 {
		c.topK = DocumentTopK
	}
	if c.webCount <= 0 {
		c.webCount = WebResultCount
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	if c.recorder == nil {
		c.recorder = metrics.NopRecorder{}
	}
	return c
}

// Answer runs the retrieval cascade for one question.  The session is read
// but not modified.  Search and completion failures are returned unchanged.
func (c *ClinicalAssembler) Answer(ctx context.Context, message string, sess *Session, allowWeb bool) (ClinicalAnswer, error) {
	allowWeb = allowWeb && c.web != nil
	wantsFresh := c.phrases.WantsFreshInfo(message)

	docs, err := c.docs.Search(ctx, message, c.topK)
	if err != nil {
		return ClinicalAnswer{}, fmt.Errorf("document search: %w", err)
	}

	var ans ClinicalAnswer
	switch {
	case len(docs) > 0 && (!wantsFresh || !allowWeb):
		ans, err = c.answerFromDocuments(ctx, message, docs, sess.PatientRecord)
	case allowWeb:
		ans, err = c.answerBlended(ctx, message, docs, sess.PatientRecord)
	default:
		ans = ClinicalAnswer{Text: NoDocumentsReply, Path: PathNoDocuments}
	}
	if err != nil {
		return ClinicalAnswer{}, err
	}

	c.recorder.ObserveClinicalPath(string(ans.Path))
	c.logger.Info("clinical context",
		zap.String("session_id", sess.ID),
		zap.String("path", string(ans.Path)),
		zap.Bool("wants_fresh", wantsFresh),
		zap.Bool("allow_web", allowWeb),
		zap.Int("documents", len(docs)))
	return ans, nil
}

func (c *ClinicalAssembler) answerFromDocuments(ctx context.Context, message string, docs []pkg.Passage, rec *pkg.PatientRecord) (ClinicalAnswer, error) {
	user := fmt.Sprintf("Patient question:\n%s\n\n---\nContext:\n%s\n", message, BookContext(docs, rec))
	text, err := c.complete(ctx, DocumentPrompt, user)
	if err != nil {
		return ClinicalAnswer{}, err
	}
	return ClinicalAnswer{Text: text, Path: PathDocuments}, nil
}

func (c *ClinicalAssembler) answerBlended(ctx context.Context, message string, docs []pkg.Passage, rec *pkg.PatientRecord) (ClinicalAnswer, error) {
	results, err := c.web.Search(ctx, message, c.webCount)
	if err != nil {
		return ClinicalAnswer{}, fmt.Errorf("web search: %w", err)
	}

	var bookCtx, webCtx string
	if len(docs) > 0 {
		bookCtx = BookContext(docs, rec)
	}
	if len(results) > 0 {
		webCtx = WebContext(results)
	}
	if strings.TrimSpace(bookCtx) == "" && strings.TrimSpace(webCtx) == "" {
		return ClinicalAnswer{Text: NoContextReply, Path: PathNoContext}, nil
	}

	user := fmt.Sprintf("Patient question:\n%s\n\n"+
		"---\nTextbook context (may be empty):\n%s\n\n"+
		"---\nWeb search results (may be empty):\n%s\n",
		message, bookCtx, webCtx)
	text, err := c.complete(ctx, BlendedPrompt, user)
	if err != nil {
		return ClinicalAnswer{}, err
	}
	return ClinicalAnswer{Text: text, Path: PathBlended}, nil
}

func (c *ClinicalAssembler) complete(ctx context.Context, system, user string) (string, error) {
	text, err := c.llm.Complete(ctx, llm.CompletionRequest{
		System:      system,
		User:        user,
		Model:       c.model,
		Temperature: clinicalTemperature,
		MaxTokens:   clinicalMaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("clinical answer: %w", err)
	}
	return text, nil
}

// BookContext renders the discharge summary, when known, followed by each
// passage under a [Source N | Page P, Chunk C] label.
func BookContext(docs []pkg.Passage, rec *pkg.PatientRecord) string {
	var b strings.Builder
	if rec != nil {
		b.WriteString("=== Patient Discharge Summary ===\n")
		fmt.Fprintf(&b, "Primary diagnosis: %s\n", rec.PrimaryDiagnosis)
		fmt.Fprintf(&b, "Discharge date: %s\n", rec.DischargeDate)
		fmt.Fprintf(&b, "Medications: %s\n", rec.MedicationList())
		fmt.Fprintf(&b, "Dietary restrictions: %s\n", rec.DietaryRestrictions)
		fmt.Fprintf(&b, "Follow-up: %s\n", rec.FollowUp)
		fmt.Fprintf(&b, "Warning signs: %s\n", rec.WarningSigns)
		b.WriteString("\n")
	}
	for i, d := range docs {
		fmt.Fprintf(&b, "[Source %d | Page %d, Chunk %d]\n", i+1, d.Page, d.ChunkIndex)
		b.WriteString(d.Text)
		b.WriteString("\n\n")
	}
	return b.String()
}

// WebContext renders web results under [Web N] labels.
func WebContext(results []pkg.WebResult) string {
	blocks := make([]string, 0, len(results))
	for i, r := range results {
		blocks = append(blocks, fmt.Sprintf("[Web %d] %s\nURL: %s\nSnippet: %s\n", i+1, r.Title, r.URL, r.Snippet))
	}
	return strings.Join(blocks, "\n\n")
}
