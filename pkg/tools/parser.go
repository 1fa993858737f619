package tools

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"
)

const (
	defaultServerName = "local"
	maxXMLSize        = 10 * 1024 * 1024 // 10MB limit for XML tool calls
	argumentsTagName  = "arguments"
)

var toolRegex = regexp.MustCompile(`(?s)<tool>.*?</tool>`)

// ampersandEntityRegex matches ampersands that already start an XML entity:
// &amp; &lt; &gt; &quot; &apos; &#123; &#xAB;
var ampersandEntityRegex = regexp.MustCompile(`&(?:amp|lt|gt|quot|apos|#\d+|#x[0-9a-fA-F]+);`)

// ParseToolCall extracts the first <tool> element from text. It returns the
// parsed call and the text with every tool call removed.
func ParseToolCall(text string) (*ToolCall, string, error) {
	if len(text) > maxXMLSize {
		return nil, text, fmt.Errorf("tool call XML exceeds maximum size of %d bytes", maxXMLSize)
	}

	match := toolRegex.FindString(text)
	if match == "" {
		return nil, text, fmt.Errorf("no tool call found in text")
	}

	call, err := parseToolElement(match)
	if err != nil {
		return nil, text, err
	}

	remaining := strings.TrimSpace(toolRegex.ReplaceAllString(text, ""))
	return call, remaining, nil
}

// ParseToolCalls extracts every <tool> element from text in order. Parsing
// stops at the first malformed call; the calls before it are returned.
func ParseToolCalls(text string) ([]*ToolCall, error) {
	if len(text) > maxXMLSize {
		return nil, fmt.Errorf("tool call XML exceeds maximum size of %d bytes", maxXMLSize)
	}

	matches := toolRegex.FindAllString(text, -1)
	calls := make([]*ToolCall, 0, len(matches))
	for i, m := range matches {
		call, err := parseToolElement(m)
		if err != nil {
			return calls, fmt.Errorf("tool call %d: %w", i+1, err)
		}
		calls = append(calls, call)
	}
	return calls, nil
}

func parseToolElement(element string) (*ToolCall, error) {
	element = strings.TrimSpace(element)

	var call ToolCall
	if err := UnmarshalXMLWithFallback([]byte(element), &call); err != nil {
		snippet := element
		if len(snippet) > 200 {
			snippet = snippet[:200] + "..."
		}
		return nil, fmt.Errorf("failed to unmarshal tool call XML: %w\nXML snippet: %s", err, snippet)
	}
	if call.ToolName == "" {
		return nil, fmt.Errorf("tool_name is required in tool call")
	}
	if call.ServerName == "" {
		call.ServerName = defaultServerName
	}
	return &call, nil
}

// HasToolCall checks if the text contains a tool call.
func HasToolCall(text string) bool {
	return toolRegex.MatchString(text)
}

// ValidateToolCall checks if a ToolCall has all required fields.
func ValidateToolCall(tc *ToolCall) error {
	if tc == nil {
		return fmt.Errorf("tool call is nil")
	}
	if tc.ToolName == "" {
		return fmt.Errorf("tool_name is required")
	}
	if tc.ServerName == "" {
		return fmt.Errorf("server_name is required")
	}
	return nil
}

// UnmarshalXMLWithFallback unmarshals data, retrying once with bare
// ampersands escaped when the first attempt fails.
func UnmarshalXMLWithFallback(data []byte, v interface{}) error {
	if err := xml.Unmarshal(data, v); err == nil {
		return nil
	}
	return xml.Unmarshal(escapeUnescapedAmpersands(data), v)
}

// escapeUnescapedAmpersands replaces bare & with &amp; and leaves existing
// entities alone.
func escapeUnescapedAmpersands(data []byte) []byte {
	text := string(data)

	entityStarts := make(map[int]bool)
	for _, loc := range ampersandEntityRegex.FindAllStringIndex(text, -1) {
		entityStarts[loc[0]] = true
	}

	var out strings.Builder
	out.Grow(len(text) + 20)
	for i := 0; i < len(text); i++ {
		if text[i] == '&' && !entityStarts[i] {
			out.WriteString("&amp;")
			continue
		}
		out.WriteByte(text[i])
	}
	return []byte(out.String())
}

// XMLToMap flattens the direct children of an <arguments> element into a
// map of element name to trimmed text. Empty elements are omitted.
func XMLToMap(data []byte) (map[string]interface{}, error) {
	decoder := xml.NewDecoder(bytes.NewReader(data))
	result := make(map[string]interface{})

	var path []string
	var text strings.Builder

	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse XML: %w", err)
		}

		switch t := token.(type) {
		case xml.StartElement:
			path = append(path, t.Name.Local)
			text.Reset()

		case xml.EndElement:
			if len(path) == 0 {
				continue
			}
			name := path[len(path)-1]
			path = path[:len(path)-1]

			if len(path) == 1 && path[0] == argumentsTagName {
				if value := strings.TrimSpace(text.String()); value != "" {
					result[name] = value
				}
			}
			text.Reset()

		case xml.CharData:
			text.Write(t)
		}
	}

	return result, nil
}

// ArgumentsXML renders args as an <arguments> element with one child per
// key, in key order. Values are escaped.
func ArgumentsXML(args map[string]string) []byte {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.WriteString("<" + argumentsTagName + ">")
	for _, k := range keys {
		buf.WriteString("<" + k + ">")
		_ = xml.EscapeText(&buf, []byte(args[k]))
		buf.WriteString("</" + k + ">")
	}
	buf.WriteString("</" + argumentsTagName + ">")
	return buf.Bytes()
}

// NewToolCall builds a call to the named local tool with args as its
// arguments.
func NewToolCall(toolName string, args map[string]string) *ToolCall {
	full := ArgumentsXML(args)
	open, end := len(argumentsTagName)+2, len(argumentsTagName)+3
	return &ToolCall{
		ServerName: defaultServerName,
		ToolName:   toolName,
		Arguments:  ArgumentsBlock{InnerXML: full[open : len(full)-end]},
	}
}
