package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/chromedp/chromedp"
)

// jsVisible and jsWalkFrames are shared snippets. innerText already excludes
// hidden nodes, which keeps indicator matching scoped to visible DOM only.
// Same-origin identity-provider frames are walked too; cross-origin frames
// are skipped silently.
const jsHelpers = `
const __visible = (el) => {
	const st = getComputedStyle(el);
	if (st.display === "none" || st.visibility === "hidden") return false;
	const r = el.getBoundingClientRect();
	return r.width > 0 && r.height > 0;
};
const __docs = () => {
	const out = [];
	const walk = (doc) => {
		if (!doc || !doc.body) return;
		out.push(doc);
		for (const f of doc.querySelectorAll("iframe")) {
			try { walk(f.contentDocument); } catch (e) {}
		}
	};
	walk(document);
	return out;
};
`

func (s *Session) eval(ctx context.Context, js string, res any) error {
	return s.run(ctx, chromedp.Evaluate(js, res))
}

func jsonArg(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}

// VisibleText returns the rendered text of the page and its same-origin
// frames, hidden markup excluded.
func (s *Session) VisibleText(ctx context.Context) (string, error) {
	js := `(() => {` + jsHelpers + `
		return __docs().map((d) => d.body.innerText || "").join("\n");
	})()`
	var text string
	if err := s.eval(ctx, js, &text); err != nil {
		return "", fmt.Errorf("visible text: %w", err)
	}
	return text, nil
}

// AnyTextVisible reports whether any of the given strings occurs in the
// visible page text.
func (s *Session) AnyTextVisible(ctx context.Context, texts []string) (bool, error) {
	if len(texts) == 0 {
		return false, nil
	}
	text, err := s.VisibleText(ctx)
	if err != nil {
		return false, err
	}
	for _, t := range texts {
		if t != "" && strings.Contains(text, t) {
			return true, nil
		}
	}
	return false, nil
}

// FirstVisible reports whether any selector in the list matches a visible
// element.
func (s *Session) FirstVisible(ctx context.Context, sels []string) (bool, error) {
	if len(sels) == 0 {
		return false, nil
	}
	js := `((sels) => {` + jsHelpers + `
		for (const doc of __docs()) {
			for (const sel of sels) {
				let list = [];
				try { list = doc.querySelectorAll(sel); } catch (e) { continue; }
				for (const el of list) {
					if (__visible(el)) return true;
				}
			}
		}
		return false;
	})(` + jsonArg(sels) + `)`
	var found bool
	if err := s.eval(ctx, js, &found); err != nil {
		return false, fmt.Errorf("first visible: %w", err)
	}
	return found, nil
}

// ClickFirst clicks the first visible element matching any selector, scrolled
// into view first. Returns false when nothing matched.
func (s *Session) ClickFirst(ctx context.Context, sels []string) (bool, error) {
	if len(sels) == 0 {
		return false, nil
	}
	js := `((sels) => {` + jsHelpers + `
		for (const doc of __docs()) {
			for (const sel of sels) {
				let list = [];
				try { list = doc.querySelectorAll(sel); } catch (e) { continue; }
				for (const el of list) {
					if (!__visible(el)) continue;
					el.scrollIntoView({block: "center", inline: "center"});
					el.click();
					return true;
				}
			}
		}
		return false;
	})(` + jsonArg(sels) + `)`
	var clicked bool
	if err := s.eval(ctx, js, &clicked); err != nil {
		return false, fmt.Errorf("click first: %w", err)
	}
	return clicked, nil
}

// ClickAll clicks every visible element matching the selectors and returns
// how many were clicked. Used for "read more" affordances that multiply.
func (s *Session) ClickAll(ctx context.Context, sels []string, limit int) (int, error) {
	if len(sels) == 0 {
		return 0, nil
	}
	js := `((sels, limit) => {` + jsHelpers + `
		let n = 0;
		for (const doc of __docs()) {
			for (const sel of sels) {
				let list = [];
				try { list = doc.querySelectorAll(sel); } catch (e) { continue; }
				for (const el of list) {
					if (n >= limit) return n;
					if (!__visible(el)) continue;
					el.click();
					n++;
				}
			}
		}
		return n;
	})(` + jsonArg(sels) + `, ` + jsonArg(limit) + `)`
	var n int
	if err := s.eval(ctx, js, &n); err != nil {
		return 0, fmt.Errorf("click all: %w", err)
	}
	return n, nil
}

// ClickFirstByText clicks the first visible element whose rendered text
// matches the given string, optionally scoped to elements of the given tags.
func (s *Session) ClickFirstByText(ctx context.Context, text string, tags []string) (bool, error) {
	if len(tags) == 0 {
		tags = []string{"a", "button", "li", "span", "div"}
	}
	js := `((text, tags) => {` + jsHelpers + `
		for (const doc of __docs()) {
			for (const tag of tags) {
				for (const el of doc.querySelectorAll(tag)) {
					if (!__visible(el)) continue;
					const t = (el.innerText || "").trim();
					if (t === text || t.startsWith(text)) {
						el.scrollIntoView({block: "center", inline: "center"});
						el.click();
						return true;
					}
				}
			}
		}
		return false;
	})(` + jsonArg(text) + `, ` + jsonArg(tags) + `)`
	var clicked bool
	if err := s.eval(ctx, js, &clicked); err != nil {
		return false, fmt.Errorf("click by text: %w", err)
	}
	return clicked, nil
}

// FillFirst types value into the first visible element matching any selector,
// dispatching input and change events so SPA bindings notice.
func (s *Session) FillFirst(ctx context.Context, sels []string, value string) (bool, error) {
	if len(sels) == 0 {
		return false, nil
	}
	js := `((sels, value) => {` + jsHelpers + `
		for (const doc of __docs()) {
			for (const sel of sels) {
				let list = [];
				try { list = doc.querySelectorAll(sel); } catch (e) { continue; }
				for (const el of list) {
					if (!__visible(el)) continue;
					el.focus();
					el.value = value;
					el.dispatchEvent(new Event("input", {bubbles: true}));
					el.dispatchEvent(new Event("change", {bubbles: true}));
					return true;
				}
			}
		}
		return false;
	})(` + jsonArg(sels) + `, ` + jsonArg(value) + `)`
	var filled bool
	if err := s.eval(ctx, js, &filled); err != nil {
		return false, fmt.Errorf("fill first: %w", err)
	}
	return filled, nil
}

// SubmitFirst submits the form owning the first visible element matching any
// selector. Fallback for login pages without a distinct submit button.
func (s *Session) SubmitFirst(ctx context.Context, sels []string) (bool, error) {
	if len(sels) == 0 {
		return false, nil
	}
	js := `((sels) => {` + jsHelpers + `
		for (const doc of __docs()) {
			for (const sel of sels) {
				let list = [];
				try { list = doc.querySelectorAll(sel); } catch (e) { continue; }
				for (const el of list) {
					if (!__visible(el) || !el.form) continue;
					if (el.form.requestSubmit) { el.form.requestSubmit(); } else { el.form.submit(); }
					return true;
				}
			}
		}
		return false;
	})(` + jsonArg(sels) + `)`
	var submitted bool
	if err := s.eval(ctx, js, &submitted); err != nil {
		return false, fmt.Errorf("submit first: %w", err)
	}
	return submitted, nil
}

// SetCheckedFirst ensures the first visible checkbox matching any selector is
// checked. Used for the "expand all communications" toggle.
func (s *Session) SetCheckedFirst(ctx context.Context, sels []string) (bool, error) {
	if len(sels) == 0 {
		return false, nil
	}
	js := `((sels) => {` + jsHelpers + `
		for (const doc of __docs()) {
			for (const sel of sels) {
				let list = [];
				try { list = doc.querySelectorAll(sel); } catch (e) { continue; }
				for (const el of list) {
					if (!__visible(el)) continue;
					if (el.type === "checkbox" && el.checked) return true;
					el.click();
					return true;
				}
			}
		}
		return false;
	})(` + jsonArg(sels) + `)`
	var done bool
	if err := s.eval(ctx, js, &done); err != nil {
		return false, fmt.Errorf("set checked: %w", err)
	}
	return done, nil
}

// ScrollList advances the case list. It scrolls the nearest scrollable
// ancestor of the first visible container selector, or the window when the
// list is not virtualized into its own scroll panel.
func (s *Session) ScrollList(ctx context.Context, containerSels []string) error {
	js := `((sels) => {` + jsHelpers + `
		const scrollable = (el) => {
			const st = getComputedStyle(el);
			const oy = (st.overflowY || "").toLowerCase();
			return (oy === "auto" || oy === "scroll") && el.scrollHeight > el.clientHeight + 10;
		};
		for (const sel of sels) {
			let list = [];
			try { list = document.querySelectorAll(sel); } catch (e) { continue; }
			for (const el of list) {
				if (!__visible(el)) continue;
				let node = el;
				while (node && node !== document.body) {
					if (scrollable(node)) {
						node.scrollTop = node.scrollTop + Math.max(800, node.clientHeight * 0.9);
						return true;
					}
					node = node.parentElement;
				}
			}
		}
		window.scrollBy(0, 1200);
		return false;
	})(` + jsonArg(containerSels) + `)`
	var scrolled bool
	if err := s.eval(ctx, js, &scrolled); err != nil {
		return fmt.Errorf("scroll list: %w", err)
	}
	return nil
}
