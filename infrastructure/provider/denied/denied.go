// Package denied provides capability families that refuse every call.
package denied

import (
	"context"

	"github.com/felixgeelhaar/osagent/domain/capability"
	"github.com/felixgeelhaar/osagent/infrastructure/logging"
)

// BrowserDisabledMessage is reported when the host config has no browser
// section.
const BrowserDisabledMessage = "browser capability is disabled in host configuration"

func deny(family string) error {
	logging.Warn().Add(logging.Str("family", family)).Msg("capability denied")
	return capability.Denied("%s capability is not implemented", family)
}

// Browser denies every browser operation.
type Browser struct {
	// Message overrides the default denial text when set.
	Message string
}

var _ capability.Browser = Browser{}

func (b Browser) err() error {
	if b.Message != "" {
		logging.Warn().Add(logging.Str("family", "browser")).Msg("capability denied")
		return capability.Denied("%s", b.Message)
	}
	return deny("browser")
}

func (b Browser) OpenSession(context.Context, capability.SessionOptions) (capability.SessionHandle, error) {
	return 0, b.err()
}

func (b Browser) CloseSession(capability.SessionHandle) error { return b.err() }

func (b Browser) Goto(context.Context, capability.SessionHandle, string, *uint64) (capability.PageState, error) {
	return capability.PageState{}, b.err()
}

func (b Browser) DescribePage(context.Context, capability.SessionHandle, bool) (capability.PageState, error) {
	return capability.PageState{}, b.err()
}

func (b Browser) Screenshot(context.Context, capability.SessionHandle, capability.ScreenshotKind) (capability.Screenshot, error) {
	return capability.Screenshot{}, b.err()
}

func (b Browser) Eval(context.Context, capability.SessionHandle, string) ([]byte, error) {
	return nil, b.err()
}

func (b Browser) Find(context.Context, capability.SessionHandle, capability.Selector, *uint64) (capability.ElementHandle, error) {
	return 0, b.err()
}

func (b Browser) QueryAll(context.Context, capability.SessionHandle, capability.Selector) ([]capability.ElementHandle, error) {
	return nil, b.err()
}

func (b Browser) Click(context.Context, capability.ElementHandle) error { return b.err() }

func (b Browser) TypeText(context.Context, capability.ElementHandle, string, bool) error {
	return b.err()
}

func (b Browser) Clear(context.Context, capability.ElementHandle) error { return b.err() }

func (b Browser) Attribute(context.Context, capability.ElementHandle, string) (*string, error) {
	return nil, b.err()
}

func (b Browser) InnerText(context.Context, capability.ElementHandle) (string, error) {
	return "", b.err()
}

func (b Browser) HTML(context.Context, capability.ElementHandle) (string, error) {
	return "", b.err()
}

// Input denies keyboard and pointer control.
type Input struct{}

var _ capability.Input = Input{}

func (Input) KeySequence(string) error                        { return deny("input") }
func (Input) SendKeyChord(capability.KeyChord) error           { return deny("input") }
func (Input) MouseMove(capability.PointerMove) error           { return deny("input") }
func (Input) MouseClick(capability.MouseButton, *uint64) error { return deny("input") }
func (Input) MouseScroll(capability.ScrollDelta) error         { return deny("input") }

// LLM denies model access.
type LLM struct{}

var _ capability.LLM = LLM{}

func (LLM) Complete(context.Context, []capability.Message, capability.LLMOptions) (capability.Completion, error) {
	return capability.Completion{}, deny("llm")
}

func (LLM) CallTools(context.Context, []capability.Message, []capability.ToolSchema, capability.LLMOptions) (capability.ToolResponse, error) {
	return capability.ToolResponse{}, deny("llm")
}

// Policy denies policy introspection.
type Policy struct{}

var _ capability.Policy = Policy{}

func (Policy) Describe() (capability.PolicySnapshot, error) {
	return capability.PolicySnapshot{}, deny("policy")
}

func (Policy) ClaimBudget(string, uint64) (capability.BudgetSnapshot, error) {
	return capability.BudgetSnapshot{}, deny("policy")
}

func (Policy) RequestCapability(capability.GrantRequest) (capability.GrantResponse, error) {
	return capability.GrantResponse{}, deny("policy")
}

func (Policy) LogEvent(capability.AuditEvent) error { return deny("policy") }
