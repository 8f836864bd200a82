// Package workflow holds the static step table of the onboarding process and
// the resolver that turns a status into customer-facing step text.
package workflow

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Step identifiers of the onboarding process.
const (
	StepCollectInfo         = "collect-info"
	StepWaitDocuments       = "wait-documents"
	StepUploadDocuments     = "upload-documents"
	StepValidateDocuments   = "validate-documents"
	StepKycVerification     = "kyc-verification"
	StepAddressVerification = "address-verification"
	StepAccountCreation     = "account-creation"
	StepNotifyCustomer      = "notify-customer"
	StepComplete            = "complete"
)

const (
	DefaultProcessDefinitionKey = "onboarding-process"
	DefaultDocumentMessage      = "DocumentUploadedMessage"
)

//go:embed onboarding.yaml
var embedded []byte

// ErrorHandling is the per-step failure classification.
type ErrorHandling struct {
	ErrorType      string `yaml:"errorType"`
	DefaultMessage string `yaml:"defaultMessage"`
}

// Step is one entry of the step table.
type Step struct {
	ID                  string         `yaml:"id"`
	Name                string         `yaml:"name"`
	Description         string         `yaml:"description"`
	NextStepDescription string         `yaml:"nextStepDescription"`
	MessageName         string         `yaml:"messageName"`
	ErrorHandling       *ErrorHandling `yaml:"errorHandling"`
}

// Definition is the immutable step table loaded once at startup.
type Definition struct {
	key   string
	steps map[string]Step
	order []string
}

type document struct {
	ProcessDefinitionKey string `yaml:"processDefinitionKey"`
	Steps                []Step `yaml:"steps"`
}

// Parse decodes a YAML step table.
func Parse(data []byte) (*Definition, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse workflow definition: %w", err)
	}
	d := &Definition{key: doc.ProcessDefinitionKey, steps: make(map[string]Step, len(doc.Steps))}
	for _, s := range doc.Steps {
		if s.ID == "" {
			return nil, fmt.Errorf("parse workflow definition: step without id")
		}
		if _, dup := d.steps[s.ID]; dup {
			return nil, fmt.Errorf("parse workflow definition: duplicate step %q", s.ID)
		}
		d.steps[s.ID] = s
		d.order = append(d.order, s.ID)
	}
	return d, nil
}

// Load reads the step table from path, or the built-in table when path is empty.
func Load(path string) (*Definition, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Default returns the built-in step table.
func Default() (*Definition, error) {
	return Parse(embedded)
}

// Empty returns a table with no steps; every lookup falls back to defaults.
func Empty() *Definition {
	return &Definition{steps: map[string]Step{}}
}

// Step returns the configuration of a step. A nil Definition has no steps.
func (d *Definition) Step(id string) (Step, bool) {
	if d == nil {
		return Step{}, false
	}
	s, ok := d.steps[id]
	return s, ok
}

// StepIDs lists configured steps in file order.
func (d *Definition) StepIDs() []string {
	if d == nil {
		return nil
	}
	return append([]string(nil), d.order...)
}
