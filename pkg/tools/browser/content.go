package browser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/entrhq/browserpool/pkg/sessionpool"
)

const (
	maxBodyText    = 5000
	maxTextMatches = 10
	maxHTML        = 10000
)

func (t *Tool) extractText(ctx context.Context, in *Input) (string, string, error) {
	var out string
	id, err := t.run(ctx, in, ActionExtractText, func(ctx context.Context, s *sessionpool.Session) error {
		texts, err := s.Driver().ExtractText(ctx, in.Selector)
		if err != nil {
			return err
		}

		if in.Selector == "" {
			body := ""
			if len(texts) > 0 {
				body = texts[0]
			}
			if body == "" {
				out = "No content found"
				return nil
			}
			out = truncateRunes(body, maxBodyText)
			return nil
		}

		if len(texts) == 0 {
			out = "No elements found matching: " + in.Selector
			return nil
		}
		if len(texts) > maxTextMatches {
			texts = texts[:maxTextMatches]
		}
		lines := make([]string, 0, len(texts))
		for _, text := range texts {
			appendNonEmpty(&lines, strings.TrimSpace(text))
		}
		out = strings.Join(lines, "\n")
		return nil
	})
	return id, out, err
}

func (t *Tool) extractHTML(ctx context.Context, in *Input) (string, string, error) {
	var out string
	id, err := t.run(ctx, in, ActionExtractHTML, func(ctx context.Context, s *sessionpool.Session) error {
		content, err := s.Driver().ExtractHTML(ctx, in.Selector)
		if err != nil {
			return err
		}
		if cut := truncateRunes(content, maxHTML); cut != content {
			content = cut + "\n... (truncated)"
		}
		out = content
		return nil
	})
	return id, out, err
}

func (t *Tool) screenshot(ctx context.Context, in *Input) (string, string, error) {
	dir := t.screenshotsDir
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "browserpool-screenshots")
	}

	var out string
	id, err := t.run(ctx, in, ActionScreenshot, func(ctx context.Context, s *sessionpool.Session) error {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create screenshots directory: %w", err)
		}
		name := fmt.Sprintf("screenshot_%s_%s.png", s.ID(), t.now().Format("20060102_150405"))
		path := filepath.Join(dir, name)

		d := s.Driver()
		if err := d.Screenshot(ctx, path, in.FullPage); err != nil {
			return err
		}

		summary, title := t.summarize(ctx, d)
		out = fmt.Sprintf(`Screenshot saved: %s
URL: %s
Title: %s

Page content:
%s

Note: You can analyze this screenshot if you have vision capabilities.`,
			path, d.CurrentURL(), title, summary)
		return nil
	})
	return id, out, err
}
