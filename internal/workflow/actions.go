// Package workflow defines the declarative extraction workflow language and
// the interpreter that executes it against a live session.
package workflow

import (
	"errors"
	"fmt"
	"time"
)

// ActionType identifies a workflow action variant.
type ActionType string

const (
	// ActionNavigate loads a URL.
	ActionNavigate ActionType = "navigate"
	// ActionWait blocks until a selector is present or a timeout elapses.
	ActionWait ActionType = "wait"
	// ActionClick activates a selector.
	ActionClick ActionType = "click"
	// ActionScroll moves the viewport to trigger lazy content.
	ActionScroll ActionType = "scroll"
	// ActionExtract reads structured records from the current page.
	ActionExtract ActionType = "extract"
)

// Action is one step of an extraction workflow. A workflow is a linear
// script; actions execute strictly in order.
type Action struct {
	// Type selects the action variant
	Type ActionType `yaml:"type" mapstructure:"type"`
	// URL is the target for navigate actions
	URL string `yaml:"url,omitempty" mapstructure:"url"`
	// Selector is the target for wait and click actions
	Selector string `yaml:"selector,omitempty" mapstructure:"selector"`
	// Timeout bounds wait actions; zero means the default
	Timeout time.Duration `yaml:"timeout,omitempty" mapstructure:"timeout"`
	// Optional makes click actions tolerate an absent selector
	Optional bool `yaml:"optional,omitempty" mapstructure:"optional"`
	// Container is the per-record selector for extract actions
	Container string `yaml:"container,omitempty" mapstructure:"container"`
	// Fields configures per-field extraction for extract actions
	Fields FieldMap `yaml:"fields,omitempty" mapstructure:"fields"`
}

// FieldMap maps raw field names to their extraction specs.
type FieldMap map[string]FieldSpec

// FieldSpec configures how one field is read from a container element.
type FieldSpec struct {
	// Selector locates the field node(s) within the container
	Selector string `yaml:"selector" mapstructure:"selector"`
	// Attr names the attribute to read; empty means text content
	Attr string `yaml:"attr,omitempty" mapstructure:"attr"`
	// Multiple extracts every matching node instead of the first
	Multiple bool `yaml:"multiple,omitempty" mapstructure:"multiple"`
	// Required fails the record when the field yields no value
	Required bool `yaml:"required,omitempty" mapstructure:"required"`
	// Transform names the registry transform applied to the raw value
	Transform string `yaml:"transform,omitempty" mapstructure:"transform"`
	// Params configure the transform
	Params map[string]string `yaml:"params,omitempty" mapstructure:"params"`
	// Fallback is the literal used when extraction yields nothing
	Fallback string `yaml:"fallback,omitempty" mapstructure:"fallback"`
	// FollowUp runs a second extraction pass against a URL extracted by
	// this field, merging results into the same record
	FollowUp *FollowUpSpec `yaml:"follow_up,omitempty" mapstructure:"follow_up"`
}

// FollowUpSpec configures the nested detail-page extraction pass. Follow
// ups do not nest; a FollowUp inside a FollowUp field map is rejected at
// validation time.
type FollowUpSpec struct {
	// Container scopes the nested extraction; empty means the whole page
	Container string `yaml:"container,omitempty" mapstructure:"container"`
	// Fields configures the nested extraction
	Fields FieldMap `yaml:"fields" mapstructure:"fields"`
}

// Validation errors for workflow definitions.
var (
	ErrEmptyWorkflow    = errors.New("workflow has no actions")
	ErrMissingURL       = errors.New("navigate action requires a url")
	ErrMissingSelector  = errors.New("action requires a selector")
	ErrMissingContainer = errors.New("extract action requires a container")
	ErrNoFields         = errors.New("extract action requires fields")
	ErrNestedFollowUp   = errors.New("follow_up must not nest")
	ErrUnknownAction    = errors.New("unknown action type")
)

// Validate checks a workflow definition for structural errors.
func Validate(actions []Action) error {
	if len(actions) == 0 {
		return ErrEmptyWorkflow
	}

	for i := range actions {
		if err := validateAction(&actions[i]); err != nil {
			return fmt.Errorf("action %d (%s): %w", i, actions[i].Type, err)
		}
	}
	return nil
}

func validateAction(a *Action) error {
	switch a.Type {
	case ActionNavigate:
		if a.URL == "" {
			return ErrMissingURL
		}
	case ActionWait, ActionClick:
		if a.Selector == "" {
			return ErrMissingSelector
		}
	case ActionScroll:
		// No parameters required.
	case ActionExtract:
		if a.Container == "" {
			return ErrMissingContainer
		}
		if len(a.Fields) == 0 {
			return ErrNoFields
		}
		return validateFields(a.Fields, false)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, a.Type)
	}
	return nil
}

func validateFields(fields FieldMap, nested bool) error {
	for name, spec := range fields {
		if spec.Selector == "" && spec.Fallback == "" {
			return fmt.Errorf("field %q: %w", name, ErrMissingSelector)
		}
		if spec.FollowUp == nil {
			continue
		}
		if nested {
			return fmt.Errorf("field %q: %w", name, ErrNestedFollowUp)
		}
		if len(spec.FollowUp.Fields) == 0 {
			return fmt.Errorf("field %q follow_up: %w", name, ErrNoFields)
		}
		if err := validateFields(spec.FollowUp.Fields, true); err != nil {
			return fmt.Errorf("field %q follow_up: %w", name, err)
		}
	}
	return nil
}
