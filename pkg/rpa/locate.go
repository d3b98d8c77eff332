package rpa

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// StrategyKind names one way of locating a control.
type StrategyKind string

const (
	ByPlaceholder StrategyKind = "placeholder"
	ByLabel       StrategyKind = "label"
	ByRole        StrategyKind = "role"
	ByText        StrategyKind = "text"
	ByCSS         StrategyKind = "css"
)

// Strategy is one (strategy, pattern) pair in a fallback chain. For ByRole
// the pattern is the ARIA role and Name an optional case-insensitive name
// pattern.
type Strategy struct {
	Kind    StrategyKind `yaml:"kind"`
	Pattern string       `yaml:"pattern"`
	Name    string       `yaml:"name,omitempty"`
}

func (s Strategy) String() string {
	if s.Name != "" {
		return fmt.Sprintf("%s=%q[name=%q]", s.Kind, s.Pattern, s.Name)
	}
	return fmt.Sprintf("%s=%q", s.Kind, s.Pattern)
}

// Chain is an ordered list of strategies evaluated front to back.
type Chain []Strategy

func (c Chain) String() string {
	parts := make([]string, len(c))
	for i, s := range c {
		parts[i] = s.String()
	}
	return strings.Join(parts, ", ")
}

// findVisible evaluates a chain and returns the first candidate that is
// genuinely visible within the per-strategy timeout. Failed candidates are
// absorbed silently; only exhaustion of the whole chain is surfaced by the
// caller.
func findVisible(p page, c Chain) (element, bool) {
	for _, s := range c {
		if el, ok := p.Find(s, strategyProbeTimeout); ok {
			return el, true
		}
	}
	return nil, false
}

// SelectorSet holds every fallback chain the driver uses. The defaults match
// the remote system's current markup; any chain can be overridden from a
// YAML file when the markup drifts, without a rebuild.
type SelectorSet struct {
	EmailField    Chain `yaml:"email_field"`
	PasswordField Chain `yaml:"password_field"`
	LoginButton   Chain `yaml:"login_button"`

	ReaderSearch Chain `yaml:"reader_search"`
	IssueTab     Chain `yaml:"issue_tab"`
	ReturnTab    Chain `yaml:"return_tab"`
	BarcodeField Chain `yaml:"barcode_field"`
	DueDateField Chain `yaml:"due_date_field"`
	ModalClose   Chain `yaml:"modal_close"`
}

// DefaultSelectors returns the built-in chains.
func DefaultSelectors() *SelectorSet {
	return &SelectorSet{
		EmailField: Chain{
			{Kind: ByPlaceholder, Pattern: "E-mail"},
			{Kind: ByPlaceholder, Pattern: "Email"},
			{Kind: ByPlaceholder, Pattern: "E-mail address"},
			{Kind: ByLabel, Pattern: "E-mail"},
			{Kind: ByLabel, Pattern: "Email"},
			{Kind: ByCSS, Pattern: "input[type='email']"},
			{Kind: ByCSS, Pattern: "input[name='email']"},
			{Kind: ByCSS, Pattern: "input[name*='username']"},
		},
		PasswordField: Chain{
			{Kind: ByPlaceholder, Pattern: "Password"},
			{Kind: ByLabel, Pattern: "Password"},
			{Kind: ByCSS, Pattern: "input[type='password']"},
			{Kind: ByCSS, Pattern: "input[name='password']"},
		},
		LoginButton: Chain{
			{Kind: ByRole, Pattern: "button", Name: "Sign in|Log in|Login|Войти"},
			{Kind: ByText, Pattern: "Sign in"},
			{Kind: ByText, Pattern: "Log in"},
			{Kind: ByText, Pattern: "Login"},
			{Kind: ByText, Pattern: "Войти"},
			{Kind: ByCSS, Pattern: "button[type='submit']"},
		},
		ReaderSearch: Chain{
			{Kind: ByPlaceholder, Pattern: "Search user"},
		},
		// The workspace has two elements labelled "Issuance": a navigation
		// entry and the operation toggle. The chain scopes to the radio
		// group that also contains the Return toggle so the navigation
		// element is never clicked.
		IssueTab: Chain{
			{Kind: ByCSS, Pattern: ".ant-radio-group label.ant-radio-button-wrapper:has-text('Issuance')"},
			{Kind: ByCSS, Pattern: "[class*='ant-radio-group'] label:has-text('Issuance')"},
			{Kind: ByCSS, Pattern: ".ant-radio-group input.ant-radio-button-input[value='issuance']"},
			{Kind: ByCSS, Pattern: "label.ant-radio-button-wrapper:has-text('Return') ~ label.ant-radio-button-wrapper:has-text('Issuance')"},
			{Kind: ByCSS, Pattern: "label.ant-radio-button-wrapper:has-text('Issuance')"},
		},
		ReturnTab: Chain{
			{Kind: ByCSS, Pattern: ".ant-radio-group label.ant-radio-button-wrapper:has-text('Return')"},
			{Kind: ByCSS, Pattern: "[class*='ant-radio-group'] label:has-text('Return')"},
			{Kind: ByRole, Pattern: "button", Name: "Return"},
			{Kind: ByText, Pattern: "Return"},
		},
		BarcodeField: Chain{
			{Kind: ByPlaceholder, Pattern: "Enter barcode"},
		},
		DueDateField: Chain{
			{Kind: ByCSS, Pattern: "input[placeholder*='дату']"},
			{Kind: ByCSS, Pattern: "input[placeholder*='date']"},
			{Kind: ByCSS, Pattern: "input[placeholder*='Выберите']"},
			{Kind: ByCSS, Pattern: "input[name*='return']"},
			{Kind: ByCSS, Pattern: "input[name*='date']"},
			{Kind: ByCSS, Pattern: "input[type='date']"},
		},
		ModalClose: Chain{
			{Kind: ByCSS, Pattern: "[role='dialog'] button[aria-label*='close' i]"},
			{Kind: ByCSS, Pattern: "[role='dialog'] .ant-modal-close"},
			{Kind: ByCSS, Pattern: "[role='dialog'] button:has-text('Close')"},
			{Kind: ByCSS, Pattern: "[role='dialog'] button:has-text('×')"},
			{Kind: ByCSS, Pattern: ".ant-modal-close"},
			{Kind: ByCSS, Pattern: ".ant-modal button[aria-label='Close']"},
		},
	}
}

// LoadSelectors returns the defaults with any chains overridden from the
// given YAML file. Absent chains keep their defaults; an empty path returns
// the defaults unchanged.
func LoadSelectors(path string) (*SelectorSet, error) {
	set := DefaultSelectors()
	if path == "" {
		return set, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read selector overrides: %w", err)
	}
	var override SelectorSet
	if err := yaml.Unmarshal(data, &override); err != nil {
		return nil, fmt.Errorf("parse selector overrides: %w", err)
	}
	merge := func(dst *Chain, src Chain) {
		if len(src) > 0 {
			*dst = src
		}
	}
	merge(&set.EmailField, override.EmailField)
	merge(&set.PasswordField, override.PasswordField)
	merge(&set.LoginButton, override.LoginButton)
	merge(&set.ReaderSearch, override.ReaderSearch)
	merge(&set.IssueTab, override.IssueTab)
	merge(&set.ReturnTab, override.ReturnTab)
	merge(&set.BarcodeField, override.BarcodeField)
	merge(&set.DueDateField, override.DueDateField)
	merge(&set.ModalClose, override.ModalClose)
	return set, nil
}
