package browser

import (
	"context"
	"fmt"

	"github.com/entrhq/browserpool/pkg/engine"
	"github.com/entrhq/browserpool/pkg/sessionpool"
)

func (t *Tool) navigate(ctx context.Context, in *Input) (string, string, error) {
	if in.URL == "" {
		return in.SessionID, "", fmt.Errorf("%w: url is required for navigate action", errInvalidArguments)
	}
	waitUntil := in.WaitUntil
	if waitUntil == "" {
		waitUntil = engine.WaitLoad
	}
	if !engine.ValidWaitUntil(waitUntil) {
		return in.SessionID, "", fmt.Errorf("%w: invalid wait_until value: %s (must be 'load', 'domcontentloaded', or 'networkidle')",
			errInvalidArguments, waitUntil)
	}

	if err := t.pool.Guard().Check(in.URL); err != nil {
		return in.SessionID, "", err
	}

	var out string
	id, err := t.run(ctx, in, ActionNavigate, func(ctx context.Context, s *sessionpool.Session) error {
		d := s.Driver()
		if err := d.Navigate(ctx, in.URL, waitUntil); err != nil {
			return err
		}
		s.SetCurrentURL(d.CurrentURL())

		summary, title := t.summarize(ctx, d)
		out = fmt.Sprintf("Navigated to: %s\nTitle: %s\n\n%s", d.CurrentURL(), title, summary)
		return nil
	})
	return id, out, err
}

func (t *Tool) click(ctx context.Context, in *Input) (string, string, error) {
	selector := in.Selector
	if selector == "" && in.Text != "" {
		selector = "text=" + in.Text
	}
	if selector == "" {
		return in.SessionID, "", fmt.Errorf("%w: either selector or text is required for click action", errInvalidArguments)
	}

	var out string
	id, err := t.run(ctx, in, ActionClick, func(ctx context.Context, s *sessionpool.Session) error {
		d := s.Driver()
		if err := d.Click(ctx, selector); err != nil {
			return err
		}
		s.SetCurrentURL(d.CurrentURL())
		out = fmt.Sprintf("Clicked element: %s\nCurrent URL: %s", selector, d.CurrentURL())
		return nil
	})
	return id, out, err
}

func (t *Tool) typeText(ctx context.Context, in *Input) (string, string, error) {
	if in.Selector == "" || in.Text == "" {
		return in.SessionID, "", fmt.Errorf("%w: both selector and text are required for type action", errInvalidArguments)
	}
	id, err := t.run(ctx, in, ActionType, func(ctx context.Context, s *sessionpool.Session) error {
		return s.Driver().Type(ctx, in.Selector, in.Text)
	})
	return id, fmt.Sprintf("Typed '%s' into: %s", in.Text, in.Selector), err
}

func (t *Tool) fill(ctx context.Context, in *Input) (string, string, error) {
	if in.Selector == "" || in.Text == "" {
		return in.SessionID, "", fmt.Errorf("%w: both selector and text are required for fill action", errInvalidArguments)
	}
	id, err := t.run(ctx, in, ActionFill, func(ctx context.Context, s *sessionpool.Session) error {
		return s.Driver().Fill(ctx, in.Selector, in.Text)
	})
	return id, fmt.Sprintf("Filled '%s' into: %s", in.Text, in.Selector), err
}

func (t *Tool) waitFor(ctx context.Context, in *Input) (string, string, error) {
	if in.Selector == "" {
		return in.SessionID, "", fmt.Errorf("%w: selector is required for wait_for action", errInvalidArguments)
	}
	id, err := t.run(ctx, in, ActionWaitFor, func(ctx context.Context, s *sessionpool.Session) error {
		return s.Driver().WaitFor(ctx, in.Selector)
	})
	return id, "Element appeared: " + in.Selector, err
}

func (t *Tool) scroll(ctx context.Context, in *Input) (string, string, error) {
	id, err := t.run(ctx, in, ActionScroll, func(ctx context.Context, s *sessionpool.Session) error {
		return s.Driver().Scroll(ctx, in.Selector)
	})
	if in.Selector == "" {
		return id, "Scrolled to bottom of page", err
	}
	return id, "Scrolled to: " + in.Selector, err
}

func (t *Tool) history(ctx context.Context, in *Input, back bool) (string, string, error) {
	name, direction := ActionGoForward, "forward"
	if back {
		name, direction = ActionGoBack, "back"
	}

	var out string
	id, err := t.run(ctx, in, name, func(ctx context.Context, s *sessionpool.Session) error {
		d := s.Driver()
		var err error
		if back {
			err = d.GoBack(ctx)
		} else {
			err = d.GoForward(ctx)
		}
		if err != nil {
			return err
		}
		s.SetCurrentURL(d.CurrentURL())
		out = fmt.Sprintf("Navigated %s to: %s", direction, d.CurrentURL())
		return nil
	})
	return id, out, err
}

func (t *Tool) getURL(ctx context.Context, in *Input) (string, string, error) {
	var out string
	id, err := t.run(ctx, in, ActionGetURL, func(ctx context.Context, s *sessionpool.Session) error {
		d := s.Driver()
		title, err := d.Title(ctx)
		if err != nil {
			return err
		}
		out = fmt.Sprintf("Current URL: %s\nTitle: %s", d.CurrentURL(), title)
		return nil
	})
	return id, out, err
}

// summarize builds the page summary and title shown after navigate and
// screenshot. Failures degrade the text instead of failing the action.
func (t *Tool) summarize(ctx context.Context, d sessionpool.PageDriver) (string, string) {
	title, titleErr := d.Title(ctx)

	content, err := d.ExtractHTML(ctx, "")
	if err != nil {
		return fmt.Sprintf("Could not generate page summary: %v", err), title
	}
	summary, err := summarizeHTML(content)
	if err != nil {
		return fmt.Sprintf("Could not generate page summary: %v", err), title
	}
	if titleErr != nil || title == "" {
		title = summary.Title
	}
	return summary.String(), title
}
