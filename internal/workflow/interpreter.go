package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonesrussell/gigharvest/internal/domain"
	"github.com/jonesrussell/gigharvest/internal/logger"
	"github.com/jonesrussell/gigharvest/internal/transform"
)

// errRequiredField marks a record-scoped extraction failure.
var errRequiredField = errors.New("required field missing")

// Result is the outcome of running a workflow: whatever records were
// assembled plus a count of records that failed extraction. Partial
// failure never raises; callers decide whether zero records is an error.
type Result struct {
	// Records are the raw records assembled by extract actions
	Records []domain.RawRecord
	// Failed counts records dropped for a missing required field
	Failed int
}

// Interpreter executes workflow actions in order against a live session,
// applying the transform registry to extracted values.
type Interpreter struct {
	transforms *transform.Registry
	logger     logger.Interface
	now        func() time.Time
}

// NewInterpreter creates a workflow interpreter.
func NewInterpreter(transforms *transform.Registry, log logger.Interface) *Interpreter {
	return &Interpreter{
		transforms: transforms,
		logger:     log,
		now:        time.Now,
	}
}

// SetClock overrides the wall clock used for relative-date transforms.
func (i *Interpreter) SetClock(now func() time.Time) {
	i.now = now
}

// Run executes the workflow and returns its accumulated result. Action
// failures (navigation, wait timeout, required click) abort the run;
// per-record extraction failures only increment the failure count.
func (i *Interpreter) Run(ctx context.Context, sess Session, actions []Action) (*Result, error) {
	result := &Result{}

	for idx := range actions {
		action := &actions[idx]
		if err := ctx.Err(); err != nil {
			return result, err
		}

		if err := i.step(ctx, sess, action, result); err != nil {
			return result, fmt.Errorf("action %d (%s): %w", idx, action.Type, err)
		}
	}

	return result, nil
}

// step executes one workflow action.
func (i *Interpreter) step(ctx context.Context, sess Session, action *Action, result *Result) error {
	switch action.Type {
	case ActionNavigate:
		return sess.Navigate(ctx, action.URL)

	case ActionWait:
		return sess.WaitFor(ctx, action.Selector, action.Timeout)

	case ActionClick:
		err := sess.Click(ctx, action.Selector)
		if err != nil && action.Optional {
			i.logger.Debug("Optional click target absent",
				"selector", action.Selector,
			)
			return nil
		}
		return err

	case ActionScroll:
		return sess.Scroll(ctx)

	case ActionExtract:
		records, failed := i.extract(ctx, sess, action)
		result.Records = append(result.Records, records...)
		result.Failed += failed
		return nil

	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, action.Type)
	}
}

// extract assembles one raw record per container match. The container
// selections are captured before any follow-up navigation so detail-page
// fetches cannot disturb iteration.
func (i *Interpreter) extract(ctx context.Context, sess Session, action *Action) ([]domain.RawRecord, int) {
	doc, err := sess.Document()
	if err != nil {
		i.logger.Warn("Extract with no document loaded", "error", err)
		return nil, 0
	}

	var containers []*goquery.Selection
	doc.Find(action.Container).Each(func(_ int, sel *goquery.Selection) {
		containers = append(containers, sel)
	})

	records := make([]domain.RawRecord, 0, len(containers))
	failed := 0

	for _, container := range containers {
		record, extractErr := i.extractRecord(ctx, sess, container, action.Fields)
		if extractErr != nil {
			failed++
			i.logger.Warn("Record extraction failed",
				"container", action.Container,
				"error", extractErr,
			)
			continue
		}
		records = append(records, record)
	}

	i.logger.Debug("Extract completed",
		"container", action.Container,
		"records", len(records),
		"failed", failed,
	)
	return records, failed
}

// extractRecord reads every configured field from one container element,
// then runs any follow-up passes.
func (i *Interpreter) extractRecord(
	ctx context.Context,
	sess Session,
	container *goquery.Selection,
	fields FieldMap,
) (domain.RawRecord, error) {
	record := make(domain.RawRecord, len(fields))

	for name, spec := range fields {
		value, err := i.extractField(container, name, &spec)
		if err != nil {
			return nil, err
		}
		if value != nil {
			record[name] = value
		}
	}

	for name, spec := range fields {
		if spec.FollowUp == nil {
			continue
		}
		if err := i.followUp(ctx, sess, record, name, spec.FollowUp); err != nil {
			// A failed detail fetch degrades the record, it does not
			// discard the list-page fields already extracted.
			i.logger.Warn("Follow-up extraction failed",
				"field", name,
				"error", err,
			)
		}
	}

	return record, nil
}

// extractField resolves one field value: locate, read, transform, fall
// back, or fail the record when required.
func (i *Interpreter) extractField(
	container *goquery.Selection,
	name string,
	spec *FieldSpec,
) (any, error) {
	if spec.Multiple {
		values := i.readAll(container, spec)
		if len(values) == 0 {
			if spec.Fallback != "" {
				return []string{spec.Fallback}, nil
			}
			if spec.Required {
				return nil, fmt.Errorf("%w: %s", errRequiredField, name)
			}
			return nil, nil
		}
		return values, nil
	}

	value := i.readOne(container, spec)
	if value == "" {
		if spec.Fallback != "" {
			return spec.Fallback, nil
		}
		if spec.Required {
			return nil, fmt.Errorf("%w: %s", errRequiredField, name)
		}
		return nil, nil
	}
	return value, nil
}

// readOne reads and transforms the first matching node's value.
func (i *Interpreter) readOne(container *goquery.Selection, spec *FieldSpec) string {
	if spec.Selector == "" {
		return ""
	}
	node := container.Find(spec.Selector).First()
	if node.Length() == 0 {
		return ""
	}
	return i.nodeValue(node, spec)
}

// readAll reads and transforms every matching node's value, skipping
// values the transform rejects.
func (i *Interpreter) readAll(container *goquery.Selection, spec *FieldSpec) []string {
	if spec.Selector == "" {
		return nil
	}

	var values []string
	container.Find(spec.Selector).Each(func(_ int, node *goquery.Selection) {
		if v := i.nodeValue(node, spec); v != "" {
			values = append(values, v)
		}
	})
	return values
}

// nodeValue reads text or the configured attribute and applies the
// configured transform. A transform failure yields an empty value so the
// fallback and required rules apply.
func (i *Interpreter) nodeValue(node *goquery.Selection, spec *FieldSpec) string {
	var raw string
	if spec.Attr != "" {
		raw, _ = node.Attr(spec.Attr)
	} else {
		raw = node.Text()
	}

	raw = strings.TrimSpace(raw)
	if raw == "" || spec.Transform == "" {
		return raw
	}

	transformed, err := i.transforms.Apply(spec.Transform, raw, spec.Params, i.now())
	if err != nil {
		i.logger.Debug("Transform rejected value",
			"transform", spec.Transform,
			"value", raw,
			"error", err,
		)
		return ""
	}
	return transformed
}

// followUp navigates to the URL this field extracted and merges a nested
// extraction pass into the record. Follow-ups run sequentially and only
// one level deep.
func (i *Interpreter) followUp(
	ctx context.Context,
	sess Session,
	record domain.RawRecord,
	urlField string,
	spec *FollowUpSpec,
) error {
	followURL := record.String(urlField)
	if followURL == "" {
		return fmt.Errorf("%w: %s has no url to follow", ErrSelectorNotFound, urlField)
	}

	if err := sess.Navigate(ctx, followURL); err != nil {
		return err
	}

	doc, err := sess.Document()
	if err != nil {
		return err
	}

	scope := doc.Selection
	if spec.Container != "" {
		scope = doc.Find(spec.Container).First()
		if scope.Length() == 0 {
			return fmt.Errorf("%w: %s", ErrSelectorNotFound, spec.Container)
		}
	}

	for name, fieldSpec := range spec.Fields {
		if fieldSpec.FollowUp != nil {
			// Depth is bounded at one; validation rejects this, but a
			// hand-built workflow could still carry it.
			continue
		}
		value, fieldErr := i.extractField(scope, name, &fieldSpec)
		if fieldErr != nil {
			return fieldErr
		}
		if value != nil {
			record[name] = value
		}
	}

	return nil
}
