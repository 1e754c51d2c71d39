package capability

import "encoding/json"

// Action capability names understood by the executor.
const (
	ActionListDir           = "fs.list_dir"
	ActionReadFile          = "fs.read_file"
	ActionSpawn             = "proc.spawn"
	ActionOpenSession       = "browser.open_session"
	ActionSessionGoto       = "browser.session.goto"
	ActionSessionDescribe   = "browser.session.describe_page"
	ActionSessionFind       = "browser.session.find"
	ActionElementClick      = "browser.element.click"
	ActionElementTypeText   = "browser.element.type_text"
	ActionElementInnerText  = "browser.element.inner_text"
	ActionSessionScreenshot = "browser.session.screenshot"
)

// PlannedAction is a capability invocation requested by the guest. Input is
// a JSON object encoded as a string.
type PlannedAction struct {
	Capability string  `json:"capability"`
	Input      string  `json:"input"`
	AuditTag   *string `json:"audit_tag,omitempty"`
}

// Tag returns the audit tag or an empty string.
func (a PlannedAction) Tag() string {
	if a.AuditTag == nil {
		return ""
	}
	return *a.AuditTag
}

// ActionReport is the outcome of one planned action. Output is null on
// failure and Error is null on success.
type ActionReport struct {
	Capability string          `json:"capability"`
	Success    bool            `json:"success"`
	Output     json.RawMessage `json:"output"`
	Error      *string         `json:"error"`
}

// Succeeded builds a successful report.
func Succeeded(capability string, output json.RawMessage) ActionReport {
	if len(output) == 0 {
		output = json.RawMessage("null")
	}
	return ActionReport{Capability: capability, Success: true, Output: output}
}

// Failed builds a failed report.
func Failed(capability string, err error) ActionReport {
	msg := err.Error()
	return ActionReport{
		Capability: capability,
		Success:    false,
		Output:     json.RawMessage("null"),
		Error:      &msg,
	}
}
