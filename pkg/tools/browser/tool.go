package browser

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/entrhq/browserpool/pkg/engine"
	"github.com/entrhq/browserpool/pkg/sessionpool"
	"github.com/entrhq/browserpool/pkg/tools"
)

// ToolName is the name the tool registers under.
const ToolName = "browser"

// Action names accepted in the action argument.
const (
	ActionNavigate     = "navigate"
	ActionClick        = "click"
	ActionType         = "type"
	ActionFill         = "fill"
	ActionScreenshot   = "screenshot"
	ActionExtractText  = "extract_text"
	ActionExtractHTML  = "extract_html"
	ActionWaitFor      = "wait_for"
	ActionScroll       = "scroll"
	ActionGoBack       = "go_back"
	ActionGoForward    = "go_forward"
	ActionGetURL       = "get_url"
	ActionCloseSession = "close_session"
	ActionListSessions = "list_sessions"
)

var actions = []string{
	ActionNavigate, ActionClick, ActionType, ActionFill, ActionScreenshot,
	ActionExtractText, ActionExtractHTML, ActionWaitFor, ActionScroll,
	ActionGoBack, ActionGoForward, ActionGetURL, ActionCloseSession, ActionListSessions,
}

// errInvalidArguments marks calls rejected before any session is touched.
var errInvalidArguments = errors.New("invalid arguments")

// Options configures a Tool.
type Options struct {
	// ScreenshotsDir receives screenshot files. It is created on demand.
	ScreenshotsDir string

	// Now returns the current time, used for screenshot names and session
	// ages. Defaults to time.Now.
	Now func() time.Time
}

// Tool drives pooled browser sessions from XML tool calls.
type Tool struct {
	pool           *sessionpool.Pool
	screenshotsDir string
	now            func() time.Time
}

// New creates the browser tool over pool.
func New(pool *sessionpool.Pool, opts Options) *Tool {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Tool{
		pool:           pool,
		screenshotsDir: opts.ScreenshotsDir,
		now:            opts.Now,
	}
}

// Input is the argument block of a browser call.
type Input struct {
	XMLName   xml.Name `xml:"arguments"`
	Action    string   `xml:"action"`
	URL       string   `xml:"url"`
	Selector  string   `xml:"selector"`
	Text      string   `xml:"text"`
	Timeout   int      `xml:"timeout"`
	SessionID string   `xml:"session_id"`
	FullPage  bool     `xml:"full_page"`
	WaitUntil string   `xml:"wait_until"`
}

// timeout returns the per-call bound, zero meaning the pool default.
func (in *Input) timeout() time.Duration {
	if in.Timeout <= 0 {
		return 0
	}
	return time.Duration(in.Timeout) * time.Millisecond
}

// Name returns the tool name.
func (t *Tool) Name() string {
	return ToolName
}

// Description returns the tool description.
func (t *Tool) Description() string {
	return `Execute browser actions to interact with websites.

Can navigate, click, type, fill forms, take screenshots, and extract content.
Sessions persist across calls: reuse the session_id from the [Session: ...] line to continue in the same browser context. Idle sessions expire and the least recently used session is evicted when the pool is full.`
}

// Schema returns the tool's JSON schema.
func (t *Tool) Schema() map[string]interface{} {
	return tools.BaseToolSchema(
		map[string]interface{}{
			"action": map[string]interface{}{
				"type":        "string",
				"enum":        actions,
				"description": "The browser action to perform",
			},
			"url": map[string]interface{}{
				"type":        "string",
				"description": "URL to navigate to (for navigate action)",
			},
			"selector": map[string]interface{}{
				"type":        "string",
				"description": "CSS selector for element (e.g., 'button.submit', '#search-box')",
			},
			"text": map[string]interface{}{
				"type":        "string",
				"description": "Text to type, or the visible text of the element to click",
			},
			"timeout": map[string]interface{}{
				"type":        "integer",
				"description": "Action timeout in milliseconds (default: configured operation timeout)",
			},
			"session_id": map[string]interface{}{
				"type":        "string",
				"description": "Browser session ID. Omit to create a new session, or provide to reuse an existing one.",
			},
			"full_page": map[string]interface{}{
				"type":        "boolean",
				"description": "Whether to capture a full page screenshot (default: false)",
			},
			"wait_until": map[string]interface{}{
				"type":        "string",
				"enum":        []string{engine.WaitLoad, engine.WaitDOMContentLoaded, engine.WaitNetworkIdle},
				"description": "When to consider navigation complete (default: load)",
			},
		},
		[]string{"action"},
	)
}

// Execute runs one browser action. Failures are returned both as the error
// and as an "Error [<kind>]" result so the text can be shown to an agent as is.
func (t *Tool) Execute(ctx context.Context, argsXML []byte) (string, map[string]interface{}, error) {
	var input Input
	if err := tools.UnmarshalXMLWithFallback(argsXML, &input); err != nil {
		return "", nil, fmt.Errorf("invalid parameters: %w", err)
	}
	input.Action = strings.TrimSpace(input.Action)
	input.SessionID = strings.TrimSpace(input.SessionID)

	var (
		id     string
		output string
		err    error
	)
	switch input.Action {
	case ActionNavigate:
		id, output, err = t.navigate(ctx, &input)
	case ActionClick:
		id, output, err = t.click(ctx, &input)
	case ActionType:
		id, output, err = t.typeText(ctx, &input)
	case ActionFill:
		id, output, err = t.fill(ctx, &input)
	case ActionScreenshot:
		id, output, err = t.screenshot(ctx, &input)
	case ActionExtractText:
		id, output, err = t.extractText(ctx, &input)
	case ActionExtractHTML:
		id, output, err = t.extractHTML(ctx, &input)
	case ActionWaitFor:
		id, output, err = t.waitFor(ctx, &input)
	case ActionScroll:
		id, output, err = t.scroll(ctx, &input)
	case ActionGoBack:
		id, output, err = t.history(ctx, &input, true)
	case ActionGoForward:
		id, output, err = t.history(ctx, &input, false)
	case ActionGetURL:
		id, output, err = t.getURL(ctx, &input)
	case ActionCloseSession:
		return t.closeSession(&input)
	case ActionListSessions:
		return t.listSessions(), map[string]interface{}{"sessions": t.pool.Len()}, nil
	case "":
		err = fmt.Errorf("%w: action is required", errInvalidArguments)
	default:
		err = fmt.Errorf("%w: unknown action '%s'", errInvalidArguments, input.Action)
	}

	metadata := map[string]interface{}{"action": input.Action}
	if id != "" {
		metadata["session_id"] = id
	}
	if err != nil {
		kind := errorKind(err)
		metadata["error_kind"] = kind
		return withSession(id, fmt.Sprintf("Error [%s]: %v", kind, err)), metadata, err
	}
	return withSession(id, output), metadata, nil
}

// run dispatches op against the session named in input. Only navigate may
// create a session under an explicit id.
func (t *Tool) run(ctx context.Context, input *Input, name string, fn func(ctx context.Context, s *sessionpool.Session) error) (string, error) {
	op := sessionpool.Operation{
		Name:     name,
		Timeout:  input.timeout(),
		Existing: input.SessionID != "" && name != ActionNavigate,
		Run:      fn,
	}
	s, err := t.pool.Do(ctx, input.SessionID, op)
	if s != nil {
		return s.ID(), err
	}
	return input.SessionID, err
}

func withSession(id, body string) string {
	if id == "" {
		return body
	}
	return fmt.Sprintf("[Session: %s]\n%s", id, body)
}

func errorKind(err error) string {
	if errors.Is(err, errInvalidArguments) {
		return "InvalidArguments"
	}
	return sessionpool.Kind(err)
}
