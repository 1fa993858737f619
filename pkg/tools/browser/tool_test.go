package browser

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/browserpool/pkg/sessionpool"
	"github.com/entrhq/browserpool/pkg/tools"
)

func execute(t *testing.T, tool *Tool, args map[string]string) (string, map[string]interface{}, error) {
	t.Helper()
	return tool.Execute(context.Background(), tools.ArgumentsXML(args))
}

func TestTool_Metadata(t *testing.T) {
	tool, _, _ := newTestTool(t)

	assert.Equal(t, "browser", tool.Name())
	assert.NotEmpty(t, tool.Description())

	schema := tool.Schema()
	assert.Equal(t, []string{"action"}, schema["required"])
	props := schema["properties"].(map[string]interface{})
	for _, key := range []string{"action", "url", "selector", "text", "timeout", "session_id", "full_page", "wait_until"} {
		assert.Contains(t, props, key)
	}
}

func TestNavigate(t *testing.T) {
	tool, provider, pool := newTestTool(t)

	out, meta, err := execute(t, tool, map[string]string{"action": "navigate", "url": "https://example.com"})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "[Session: s1]\nNavigated to: https://example.com\nTitle: Example Domain\n\n"), out)
	assert.Contains(t, out, "Page text preview:\nExample Domain This domain is for use in illustrative examples.")
	assert.Contains(t, out, "Headings: Example Domain")
	assert.Contains(t, out, "Buttons: Search")
	assert.Contains(t, out, "Input fields: q")
	assert.Contains(t, out, "1 links found on page")
	assert.Equal(t, "s1", meta["session_id"])
	assert.Equal(t, 1, provider.createdCount())

	s, err := pool.Get("s1")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", s.CurrentURL())
}

func TestNavigate_ReusesSession(t *testing.T) {
	tool, provider, _ := newTestTool(t)

	_, _, err := execute(t, tool, map[string]string{"action": "navigate", "url": "https://example.com"})
	require.NoError(t, err)
	out, _, err := execute(t, tool, map[string]string{"action": "navigate", "url": "https://example.com/about", "session_id": "s1"})
	require.NoError(t, err)

	assert.Contains(t, out, "[Session: s1]")
	assert.Equal(t, 1, provider.createdCount())
}

func TestNavigate_CreatesNamedSession(t *testing.T) {
	tool, _, pool := newTestTool(t)

	out, _, err := execute(t, tool, map[string]string{"action": "navigate", "url": "https://example.com", "session_id": "shop"})
	require.NoError(t, err)
	assert.Contains(t, out, "[Session: shop]")

	_, err = pool.Get("shop")
	assert.NoError(t, err)
}

func TestNavigate_DomainRejected(t *testing.T) {
	tool, provider, pool := newTestTool(t, "example.com")

	out, meta, err := execute(t, tool, map[string]string{"action": "navigate", "url": "https://evil.net/login"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, sessionpool.ErrDomainRejected))
	assert.True(t, strings.HasPrefix(out, "Error [DomainRejected]: "), out)
	assert.Contains(t, out, "evil.net")
	assert.Equal(t, "DomainRejected", meta["error_kind"])

	assert.Zero(t, provider.createdCount(), "a rejected navigation never acquires a session")
	assert.Zero(t, pool.Len())
}

func TestNavigate_InvalidArguments(t *testing.T) {
	tool, provider, _ := newTestTool(t)

	tests := map[string]map[string]string{
		"missing url":        {"action": "navigate"},
		"invalid wait_until": {"action": "navigate", "url": "https://example.com", "wait_until": "eventually"},
	}
	for name, args := range tests {
		t.Run(name, func(t *testing.T) {
			out, meta, err := execute(t, tool, args)
			require.Error(t, err)
			assert.True(t, strings.HasPrefix(out, "Error [InvalidArguments]: "), out)
			assert.Equal(t, "InvalidArguments", meta["error_kind"])
		})
	}
	assert.Zero(t, provider.createdCount())
}

func TestClick(t *testing.T) {
	tool, _, pool := newTestTool(t)
	_, _, err := execute(t, tool, map[string]string{"action": "navigate", "url": "https://example.com"})
	require.NoError(t, err)

	t.Run("by selector", func(t *testing.T) {
		out, _, err := execute(t, tool, map[string]string{"action": "click", "selector": "button.submit", "session_id": "s1"})
		require.NoError(t, err)
		assert.Equal(t, "[Session: s1]\nClicked element: button.submit\nCurrent URL: https://example.com", out)
	})

	t.Run("by text", func(t *testing.T) {
		_, _, err := execute(t, tool, map[string]string{"action": "click", "text": "Add to Cart", "session_id": "s1"})
		require.NoError(t, err)
		assert.Equal(t, "text=Add to Cart", driverFor(t, pool, "s1").lastSelector())
	})

	t.Run("neither", func(t *testing.T) {
		_, meta, err := execute(t, tool, map[string]string{"action": "click", "session_id": "s1"})
		require.Error(t, err)
		assert.Equal(t, "InvalidArguments", meta["error_kind"])
	})
}

func TestTypeAndFill(t *testing.T) {
	tool, _, _ := newTestTool(t)
	_, _, err := execute(t, tool, map[string]string{"action": "navigate", "url": "https://example.com"})
	require.NoError(t, err)

	out, _, err := execute(t, tool, map[string]string{"action": "type", "selector": "#q", "text": "gophers", "session_id": "s1"})
	require.NoError(t, err)
	assert.Equal(t, "[Session: s1]\nTyped 'gophers' into: #q", out)

	out, _, err = execute(t, tool, map[string]string{"action": "fill", "selector": "#q", "text": "go", "session_id": "s1"})
	require.NoError(t, err)
	assert.Equal(t, "[Session: s1]\nFilled 'go' into: #q", out)

	_, meta, err := execute(t, tool, map[string]string{"action": "fill", "selector": "#q", "session_id": "s1"})
	require.Error(t, err)
	assert.Equal(t, "InvalidArguments", meta["error_kind"])
}

func TestUnknownSessionIsNotFabricated(t *testing.T) {
	tool, provider, pool := newTestTool(t)

	out, meta, err := execute(t, tool, map[string]string{"action": "click", "selector": "a", "session_id": "ghost"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, sessionpool.ErrSessionNotFound))
	assert.True(t, strings.HasPrefix(out, "[Session: ghost]\nError [SessionNotFound]: "), out)
	assert.Equal(t, "SessionNotFound", meta["error_kind"])
	assert.Zero(t, provider.createdCount())
	assert.Zero(t, pool.Len())
}

func TestActionWithoutSessionCreatesOne(t *testing.T) {
	tool, provider, _ := newTestTool(t)

	out, _, err := execute(t, tool, map[string]string{"action": "get_url"})
	require.NoError(t, err)
	assert.Equal(t, "[Session: s1]\nCurrent URL: about:blank\nTitle: Example Domain", out)
	assert.Equal(t, 1, provider.createdCount())
}

func TestWaitFor_Timeout(t *testing.T) {
	tool, _, pool := newTestTool(t)

	out, meta, err := execute(t, tool, map[string]string{"action": "wait_for", "selector": "#never", "timeout": "50"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, sessionpool.ErrOperationTimeout))
	assert.True(t, strings.HasPrefix(out, "[Session: s1]\nError [OperationTimeout]: "), out)
	assert.Equal(t, "OperationTimeout", meta["error_kind"])

	// The session survives a failed operation.
	_, err = pool.Get("s1")
	assert.NoError(t, err)
}

func TestDriverFailure(t *testing.T) {
	tool, _, pool := newTestTool(t)
	_, _, err := execute(t, tool, map[string]string{"action": "navigate", "url": "https://example.com"})
	require.NoError(t, err)

	d := driverFor(t, pool, "s1")
	d.mu.Lock()
	d.err = errNoElement
	d.mu.Unlock()

	out, meta, err := execute(t, tool, map[string]string{"action": "scroll", "selector": "#footer", "session_id": "s1"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, sessionpool.ErrOperationFailed))
	assert.True(t, errors.Is(err, errNoElement))
	assert.Contains(t, out, "Error [OperationFailed]: ")
	assert.Contains(t, out, errNoElement.Error())
	assert.Equal(t, "OperationFailed", meta["error_kind"])
}

func TestExtractText(t *testing.T) {
	tool, _, pool := newTestTool(t)
	_, _, err := execute(t, tool, map[string]string{"action": "navigate", "url": "https://example.com"})
	require.NoError(t, err)
	d := driverFor(t, pool, "s1")

	t.Run("body is capped", func(t *testing.T) {
		d.mu.Lock()
		d.texts = []string{strings.Repeat("a", 6000)}
		d.mu.Unlock()

		out, _, err := execute(t, tool, map[string]string{"action": "extract_text", "session_id": "s1"})
		require.NoError(t, err)
		assert.Equal(t, "[Session: s1]\n"+strings.Repeat("a", 5000), out)
	})

	t.Run("first ten matches", func(t *testing.T) {
		texts := make([]string, 12)
		for i := range texts {
			texts[i] = " item "
		}
		d.mu.Lock()
		d.texts = texts
		d.mu.Unlock()

		out, _, err := execute(t, tool, map[string]string{"action": "extract_text", "selector": "li", "session_id": "s1"})
		require.NoError(t, err)
		body := strings.TrimPrefix(out, "[Session: s1]\n")
		assert.Equal(t, strings.TrimSuffix(strings.Repeat("item\n", 10), "\n"), body)
	})

	t.Run("no matches", func(t *testing.T) {
		d.mu.Lock()
		d.texts = nil
		d.mu.Unlock()

		out, _, err := execute(t, tool, map[string]string{"action": "extract_text", "selector": ".missing", "session_id": "s1"})
		require.NoError(t, err)
		assert.Equal(t, "[Session: s1]\nNo elements found matching: .missing", out)

		out, _, err = execute(t, tool, map[string]string{"action": "extract_text", "session_id": "s1"})
		require.NoError(t, err)
		assert.Equal(t, "[Session: s1]\nNo content found", out)
	})
}

func TestExtractHTML_Truncates(t *testing.T) {
	tool, _, pool := newTestTool(t)
	_, _, err := execute(t, tool, map[string]string{"action": "navigate", "url": "https://example.com"})
	require.NoError(t, err)

	d := driverFor(t, pool, "s1")
	d.mu.Lock()
	d.html = strings.Repeat("x", 10050)
	d.mu.Unlock()

	out, _, err := execute(t, tool, map[string]string{"action": "extract_html", "session_id": "s1"})
	require.NoError(t, err)
	assert.Equal(t, "[Session: s1]\n"+strings.Repeat("x", 10000)+"\n... (truncated)", out)
}

func TestExtractHTML_CountsCharactersNotBytes(t *testing.T) {
	tool, _, pool := newTestTool(t)
	_, _, err := execute(t, tool, map[string]string{"action": "navigate", "url": "https://example.com"})
	require.NoError(t, err)
	d := driverFor(t, pool, "s1")

	tests := map[string]struct {
		html string
		want string
	}{
		"at the limit": {
			html: strings.Repeat("é", 10000),
			want: strings.Repeat("é", 10000),
		},
		"over the limit": {
			html: strings.Repeat("日", 10001),
			want: strings.Repeat("日", 10000) + "\n... (truncated)",
		},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			d.mu.Lock()
			d.html = tt.html
			d.mu.Unlock()

			out, _, err := execute(t, tool, map[string]string{"action": "extract_html", "session_id": "s1"})
			require.NoError(t, err)
			assert.Equal(t, "[Session: s1]\n"+tt.want, out)
		})
	}
}

func TestScreenshot(t *testing.T) {
	tool, _, _ := newTestTool(t)
	_, _, err := execute(t, tool, map[string]string{"action": "navigate", "url": "https://example.com"})
	require.NoError(t, err)

	out, _, err := execute(t, tool, map[string]string{"action": "screenshot", "session_id": "s1", "full_page": "true"})
	require.NoError(t, err)

	path := filepath.Join(tool.screenshotsDir, "screenshot_s1_20250304_050607.png")
	assert.FileExists(t, path)
	assert.Contains(t, out, "Screenshot saved: "+path)
	assert.Contains(t, out, "URL: https://example.com\nTitle: Example Domain")
	assert.Contains(t, out, "Page content:\nPage text preview:")
}

func TestHistory(t *testing.T) {
	tool, _, pool := newTestTool(t)
	for _, u := range []string{"https://example.com", "https://example.com/next"} {
		_, _, err := execute(t, tool, map[string]string{"action": "navigate", "url": u, "session_id": "s1"})
		require.NoError(t, err)
	}

	out, _, err := execute(t, tool, map[string]string{"action": "go_back", "session_id": "s1"})
	require.NoError(t, err)
	assert.Equal(t, "[Session: s1]\nNavigated back to: https://example.com", out)

	s, err := pool.Get("s1")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", s.CurrentURL())
}

func TestCloseSession(t *testing.T) {
	tool, _, pool := newTestTool(t)
	_, _, err := execute(t, tool, map[string]string{"action": "navigate", "url": "https://example.com"})
	require.NoError(t, err)

	out, _, err := execute(t, tool, map[string]string{"action": "close_session", "session_id": "s1"})
	require.NoError(t, err)
	assert.Equal(t, "Closed browser session s1", out)
	assert.Zero(t, pool.Len())

	out, _, err = execute(t, tool, map[string]string{"action": "close_session", "session_id": "s1"})
	require.NoError(t, err, "closing twice is not an error")
	assert.Equal(t, "Closed browser session s1", out)

	_, meta, err := execute(t, tool, map[string]string{"action": "close_session"})
	require.Error(t, err)
	assert.Equal(t, "InvalidArguments", meta["error_kind"])
}

func TestListSessions(t *testing.T) {
	tool, _, _ := newTestTool(t)

	out, _, err := execute(t, tool, map[string]string{"action": "list_sessions"})
	require.NoError(t, err)
	assert.Equal(t, "No active browser sessions.", out)

	_, _, err = execute(t, tool, map[string]string{"action": "navigate", "url": "https://example.com"})
	require.NoError(t, err)

	out, meta, err := execute(t, tool, map[string]string{"action": "list_sessions"})
	require.NoError(t, err)
	assert.Contains(t, out, "Active Browser Sessions: 1/2")
	assert.Contains(t, out, "1. s1\n   URL: https://example.com")
	assert.Equal(t, 1, meta["sessions"])
}

func TestUnknownAction(t *testing.T) {
	tool, _, _ := newTestTool(t)

	out, meta, err := execute(t, tool, map[string]string{"action": "teleport"})
	require.Error(t, err)
	assert.Equal(t, "Error [InvalidArguments]: invalid arguments: unknown action 'teleport'", out)
	assert.Equal(t, "InvalidArguments", meta["error_kind"])
}

func TestLRUEvictionThroughTool(t *testing.T) {
	tool, provider, pool := newTestTool(t)

	for _, id := range []string{"a", "b"} {
		_, _, err := execute(t, tool, map[string]string{"action": "navigate", "url": "https://example.com", "session_id": id})
		require.NoError(t, err)
	}
	_, _, err := execute(t, tool, map[string]string{"action": "navigate", "url": "https://example.com", "session_id": "c"})
	require.NoError(t, err)

	assert.Equal(t, 3, provider.createdCount())
	assert.Equal(t, 2, pool.Len())
	_, err = pool.Get("a")
	assert.True(t, errors.Is(err, sessionpool.ErrSessionNotFound), "least recently used session is evicted")
}

func TestRegistryDispatch(t *testing.T) {
	tool, _, _ := newTestTool(t)
	registry := tools.NewRegistry(tool)

	call, _, err := tools.ParseToolCall(`<tool>
<server_name>local</server_name>
<tool_name>browser</tool_name>
<arguments>
  <action>navigate</action>
  <url>https://example.com/?a=1&b=2</url>
</arguments>
</tool>`)
	require.NoError(t, err)

	result := registry.Execute(context.Background(), call)
	require.NoError(t, result.Err)
	assert.Equal(t, "browser", result.ToolName)
	assert.Contains(t, result.Output, "Navigated to: https://example.com/?a=1&b=2")
}
