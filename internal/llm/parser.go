package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joseph-ayodele/caba/constants"
	"github.com/joseph-ayodele/caba/internal/common"
	"github.com/joseph-ayodele/caba/internal/entity"
)

// Parser turns document text into booking records through a Completer.
// It keeps no per-document state and is safe for concurrent use.
type Parser struct {
	completer Completer
	template  *Template
	schema    *Schema
	logger    *slog.Logger
}

func NewParser(completer Completer, template *Template, logger *slog.Logger) (*Parser, error) {
	if completer == nil {
		return nil, fmt.Errorf("parser: nil completer")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if template == nil {
		template = NewTemplate("", 0)
	}
	schema, err := CompileSchema(BuildBookingJSONSchema())
	if err != nil {
		return nil, fmt.Errorf("parser: %w", err)
	}
	return &Parser{completer: completer, template: template, schema: schema, logger: logger}, nil
}

// Parse sends text to the model and returns the trips it listed, in the order
// given. An empty slice with a nil error means the model found no trips.
// Errors carry a kind: transient, quota or request errors from the call itself,
// parse errors when the reply is not a well-formed trip list. A reply with any
// malformed trip is rejected as a whole.
func (p *Parser) Parse(ctx context.Context, source, text string, attempt Attempt) ([]entity.BookingRecord, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("parse %s: %w", source, common.ErrInvalidInput)
	}
	reqID := uuid.New().String()
	start := time.Now()
	log := p.logger.With("req_id", reqID, "path", source, "attempt", attempt.Number)
	if runID := common.RunIDFromContext(ctx); runID != "" {
		log = log.With("run_id", runID)
	}

	prompt := p.template.Render(text, attempt.Reformulate)
	log.Debug("llm.parse.start", "prompt_chars", len(prompt), "reformulated", attempt.Reformulate)

	raw, err := p.completer.Complete(ctx, CompletionRequest{ReqID: reqID, Prompt: prompt})
	if err != nil {
		err = ClassifyError(err)
		log.Warn("llm.parse.call_failed", "kind", common.KindOf(err), "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, err
	}
	if strings.TrimSpace(raw) == "" {
		log.Warn("llm.parse.empty_response", "elapsed_ms", time.Since(start).Milliseconds())
		return nil, common.NewParseError("empty response from model", nil)
	}

	items, notes, err := NormalizeResponse(raw)
	if err != nil {
		log.Warn("llm.parse.decode_failed", "error", err, "response", truncateBody(raw, 2048))
		return nil, common.NewParseError("response is not JSON", err)
	}
	if len(notes) > 0 {
		log.Debug("llm.parse.normalized", "notes", notes)
	}
	if err := p.schema.Validate(items); err != nil {
		log.Warn("llm.parse.schema_validation_failed", "error", err, "response", truncateBody(raw, 2048))
		return nil, common.NewParseError("response does not match the trip schema", err)
	}

	records := make([]entity.BookingRecord, 0, len(items))
	for _, it := range items {
		records = append(records, toRecord(source, it.(map[string]any)))
	}
	log.Info("llm.parse.ok", "trips", len(records), "elapsed_ms", time.Since(start).Milliseconds())
	return records, nil
}

// toRecord lays out every catalog field in order; absent fields are empty.
func toRecord(source string, m map[string]any) entity.BookingRecord {
	fields := make([]entity.Field, 0, len(m))
	for _, name := range constants.BookingFields() {
		v, _ := m[name].(string)
		fields = append(fields, entity.Field{Name: name, Value: v})
	}
	return entity.NewBookingRecord(source, fields)
}
