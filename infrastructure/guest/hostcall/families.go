package hostcall

import (
	"context"

	"github.com/felixgeelhaar/osagent/domain/capability"
)

type sessionArgs struct {
	Session capability.SessionHandle `json:"session"`
}

type gotoArgs struct {
	Session   capability.SessionHandle `json:"session"`
	URL       string                   `json:"url"`
	TimeoutMs *uint64                  `json:"timeout_ms,omitempty"`
}

type describeArgs struct {
	Session     capability.SessionHandle `json:"session"`
	IncludeHTML bool                     `json:"include_html"`
}

type screenshotArgs struct {
	Session capability.SessionHandle  `json:"session"`
	Kind    capability.ScreenshotKind `json:"kind"`
}

type evalArgs struct {
	Session    capability.SessionHandle `json:"session"`
	Expression string                   `json:"expression"`
}

type findArgs struct {
	Session   capability.SessionHandle `json:"session"`
	Selector  capability.Selector      `json:"selector"`
	TimeoutMs *uint64                  `json:"timeout_ms,omitempty"`
}

type elementArgs struct {
	Element capability.ElementHandle `json:"element"`
}

type typeTextArgs struct {
	Element capability.ElementHandle `json:"element"`
	Text    string                   `json:"text"`
	Submit  bool                     `json:"submit"`
}

type attributeArgs struct {
	Element capability.ElementHandle `json:"element"`
	Name    string                   `json:"name"`
}

func registerBrowser(d *Dispatcher) {
	d.register("browser.open-session", op(func(ctx context.Context, s capability.Set, a capability.SessionOptions) (capability.SessionHandle, error) {
		return s.Browser.OpenSession(ctx, a)
	}))
	d.register("browser.close-session", op(func(_ context.Context, s capability.Set, a sessionArgs) (empty, error) {
		return empty{}, s.Browser.CloseSession(a.Session)
	}))
	d.register("browser.session.goto", op(func(ctx context.Context, s capability.Set, a gotoArgs) (capability.PageState, error) {
		return s.Browser.Goto(ctx, a.Session, a.URL, a.TimeoutMs)
	}))
	d.register("browser.session.describe-page", op(func(ctx context.Context, s capability.Set, a describeArgs) (capability.PageState, error) {
		return s.Browser.DescribePage(ctx, a.Session, a.IncludeHTML)
	}))
	d.register("browser.session.screenshot", op(func(ctx context.Context, s capability.Set, a screenshotArgs) (capability.Screenshot, error) {
		return s.Browser.Screenshot(ctx, a.Session, a.Kind)
	}))
	d.register("browser.session.eval", op(func(ctx context.Context, s capability.Set, a evalArgs) ([]byte, error) {
		return s.Browser.Eval(ctx, a.Session, a.Expression)
	}))
	d.register("browser.session.find", op(func(ctx context.Context, s capability.Set, a findArgs) (capability.ElementHandle, error) {
		return s.Browser.Find(ctx, a.Session, a.Selector, a.TimeoutMs)
	}))
	d.register("browser.session.query-all", op(func(ctx context.Context, s capability.Set, a findArgs) ([]capability.ElementHandle, error) {
		return s.Browser.QueryAll(ctx, a.Session, a.Selector)
	}))
	d.register("browser.element.click", op(func(ctx context.Context, s capability.Set, a elementArgs) (empty, error) {
		return empty{}, s.Browser.Click(ctx, a.Element)
	}))
	d.register("browser.element.type-text", op(func(ctx context.Context, s capability.Set, a typeTextArgs) (empty, error) {
		return empty{}, s.Browser.TypeText(ctx, a.Element, a.Text, a.Submit)
	}))
	d.register("browser.element.clear", op(func(ctx context.Context, s capability.Set, a elementArgs) (empty, error) {
		return empty{}, s.Browser.Clear(ctx, a.Element)
	}))
	d.register("browser.element.attribute", op(func(ctx context.Context, s capability.Set, a attributeArgs) (*string, error) {
		return s.Browser.Attribute(ctx, a.Element, a.Name)
	}))
	d.register("browser.element.inner-text", op(func(ctx context.Context, s capability.Set, a elementArgs) (string, error) {
		return s.Browser.InnerText(ctx, a.Element)
	}))
	d.register("browser.element.html", op(func(ctx context.Context, s capability.Set, a elementArgs) (string, error) {
		return s.Browser.HTML(ctx, a.Element)
	}))
}

type keySequenceArgs struct {
	Text string `json:"text"`
}

type mouseClickArgs struct {
	Button capability.MouseButton `json:"button"`
	HoldMs *uint64                `json:"hold_ms,omitempty"`
}

func registerInput(d *Dispatcher) {
	d.register("input.key-sequence", op(func(_ context.Context, s capability.Set, a keySequenceArgs) (empty, error) {
		return empty{}, s.Input.KeySequence(a.Text)
	}))
	d.register("input.key-chord", op(func(_ context.Context, s capability.Set, a capability.KeyChord) (empty, error) {
		return empty{}, s.Input.SendKeyChord(a)
	}))
	d.register("input.mouse-move", op(func(_ context.Context, s capability.Set, a capability.PointerMove) (empty, error) {
		return empty{}, s.Input.MouseMove(a)
	}))
	d.register("input.mouse-click", op(func(_ context.Context, s capability.Set, a mouseClickArgs) (empty, error) {
		return empty{}, s.Input.MouseClick(a.Button, a.HoldMs)
	}))
	d.register("input.mouse-scroll", op(func(_ context.Context, s capability.Set, a capability.ScrollDelta) (empty, error) {
		return empty{}, s.Input.MouseScroll(a)
	}))
}

type completeArgs struct {
	Messages []capability.Message  `json:"messages"`
	Options  capability.LLMOptions `json:"options"`
}

type callToolsArgs struct {
	Messages []capability.Message    `json:"messages"`
	Tools    []capability.ToolSchema `json:"tools"`
	Options  capability.LLMOptions   `json:"options"`
}

func registerLLM(d *Dispatcher) {
	d.register("llm.complete", op(func(ctx context.Context, s capability.Set, a completeArgs) (capability.Completion, error) {
		return s.LLM.Complete(ctx, a.Messages, a.Options)
	}))
	d.register("llm.call-tools", op(func(ctx context.Context, s capability.Set, a callToolsArgs) (capability.ToolResponse, error) {
		return s.LLM.CallTools(ctx, a.Messages, a.Tools, a.Options)
	}))
}

type claimBudgetArgs struct {
	Kind  string `json:"kind"`
	Units uint64 `json:"units"`
}

func registerPolicy(d *Dispatcher) {
	d.register("policy.describe", op(func(_ context.Context, s capability.Set, _ empty) (capability.PolicySnapshot, error) {
		return s.Policy.Describe()
	}))
	d.register("policy.claim-budget", op(func(_ context.Context, s capability.Set, a claimBudgetArgs) (capability.BudgetSnapshot, error) {
		return s.Policy.ClaimBudget(a.Kind, a.Units)
	}))
	d.register("policy.request-capability", op(func(_ context.Context, s capability.Set, a capability.GrantRequest) (capability.GrantResponse, error) {
		return s.Policy.RequestCapability(a)
	}))
	d.register("policy.log-event", op(func(_ context.Context, s capability.Set, a capability.AuditEvent) (empty, error) {
		return empty{}, s.Policy.LogEvent(a)
	}))
}
