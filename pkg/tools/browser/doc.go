// Package browser exposes a session pool to agents as a single XML tool.
//
// The tool is named "browser" and takes an action plus optional arguments:
//
//	<arguments>
//	  <action>navigate</action>
//	  <url>https://example.com</url>
//	  <wait_until>domcontentloaded</wait_until>
//	</arguments>
//
// # Sessions
//
// Every result starts with a "[Session: <id>]" line. Passing that id back as
// session_id continues in the same browser context. Omitting it starts a new
// session under a generated id. A navigate call with an unknown id creates a
// session under that id; every other action requires the id to be live and
// reports SessionNotFound otherwise.
//
// Sessions are bounded and idle-expiring. The pool evicts the least recently
// used session when it is full and reclaims sessions that sat idle longer than
// the configured timeout, so agents should be ready to start over when a
// session id is no longer known.
//
// # Errors
//
// Failures are rendered as "Error [<kind>]: <message>" and the metadata map
// carries the kind under "error_kind". Kinds are the names returned by
// sessionpool.Kind, for example DomainRejected or OperationTimeout.
//
// # Actions
//
//   - navigate: load url, checked against the domain allow-list first
//   - click: click selector, or the element whose text matches text
//   - type, fill: enter text into selector
//   - screenshot: save a PNG into the screenshots directory
//   - extract_text, extract_html: read page content
//   - wait_for: wait for selector to appear
//   - scroll: scroll selector into view or to the bottom of the page
//   - go_back, go_forward, get_url: history and location
//   - close_session, list_sessions: session management
package browser
