package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"go-modguard/internal/rule"
)

// Format selects a renderer.
type Format string

const (
	Text Format = "text"
	JSON Format = "json"
	YAML Format = "yaml"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case Text, JSON, YAML:
		return f, nil
	case "":
		return Text, nil
	default:
		return "", fmt.Errorf("unknown report format %q (want text, json or yaml)", s)
	}
}

// Options tune rendering.
type Options struct {
	// NoColor disables styling even when w is a terminal.
	NoColor bool
	// Verbose lists passing and vacuous modules in text output.
	Verbose bool
}

// Write renders r to w in format f.
func Write(w io.Writer, r *Report, f Format, opts Options) error {
	switch f {
	case JSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(newView(r))
	case YAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(newView(r)); err != nil {
			return err
		}
		return enc.Close()
	case Text, "":
		return writeText(w, r, opts)
	default:
		return fmt.Errorf("unknown report format %q", f)
	}
}

type violationView struct {
	Caller       string `json:"caller" yaml:"caller"`
	Callee       string `json:"callee" yaml:"callee"`
	CallerModule string `json:"caller_module" yaml:"caller_module"`
	Site         string `json:"site,omitempty" yaml:"site,omitempty"`
}

type moduleView struct {
	Module     string          `json:"module" yaml:"module"`
	Status     rule.Status     `json:"status" yaml:"status"`
	Members    int             `json:"members" yaml:"members"`
	Inbound    int             `json:"inbound_calls" yaml:"inbound_calls"`
	Violations []violationView `json:"violations,omitempty" yaml:"violations,omitempty"`
}

type reportView struct {
	Outcome Outcome      `json:"outcome" yaml:"outcome"`
	Stats   Stats        `json:"stats" yaml:"stats"`
	Modules []moduleView `json:"modules" yaml:"modules"`
}

func newView(r *Report) reportView {
	v := reportView{Outcome: r.Outcome, Stats: r.Stats, Modules: make([]moduleView, 0, len(r.Modules))}
	for _, res := range r.Modules {
		mv := moduleView{
			Module:  string(res.Module),
			Status:  res.Status,
			Members: res.Members,
			Inbound: res.Inbound,
		}
		for _, viol := range res.Violations {
			mv.Violations = append(mv.Violations, violationView{
				Caller:       viol.Caller,
				Callee:       viol.Callee,
				CallerModule: CallerModule(viol),
				Site:         viol.Site,
			})
		}
		v.Modules = append(v.Modules, mv)
	}
	return v
}

type styles struct {
	title, pass, fail, muted, callee lipgloss.Style
}

func newStyles(w io.Writer, noColor bool) styles {
	re := lipgloss.NewRenderer(w)
	if noColor {
		re = lipgloss.NewRenderer(io.Discard)
	}
	return styles{
		title:  re.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED")),
		pass:   re.NewStyle().Foreground(lipgloss.Color("#10B981")),
		fail:   re.NewStyle().Bold(true).Foreground(lipgloss.Color("#EF4444")),
		muted:  re.NewStyle().Foreground(lipgloss.Color("#6B7280")),
		callee: re.NewStyle().Foreground(lipgloss.Color("#3B82F6")),
	}
}

func writeText(w io.Writer, r *Report, opts Options) error {
	st := newStyles(w, opts.NoColor)
	var b strings.Builder

	verdict := st.pass.Render("PASS")
	if !r.Passed() {
		verdict = st.fail.Render("FAIL")
	}
	fmt.Fprintf(&b, "%s %s\n", st.title.Render("module isolation:"), verdict)
	fmt.Fprintf(&b, "%s\n", st.muted.Render(fmt.Sprintf(
		"%d artifacts, %d members, %d calls; %d modules (%d pass, %d vacuous, %d fail), %d violations",
		r.Stats.Artifacts, r.Stats.Members, r.Stats.Calls, len(r.Modules),
		r.Count(rule.Pass), r.Count(rule.Vacuous), r.Count(rule.Fail), r.Stats.Violations,
	)))

	for _, res := range r.Modules {
		if res.Status.Passed() && !opts.Verbose {
			continue
		}
		mark := st.pass.Render("ok  ")
		if !res.Status.Passed() {
			mark = st.fail.Render("FAIL")
		}
		fmt.Fprintf(&b, "\n%s %s %s\n", mark, res.Module,
			st.muted.Render(fmt.Sprintf("(%s, %d members, %d inbound calls)", res.Status, res.Members, res.Inbound)))
		for _, v := range res.Violations {
			fmt.Fprintf(&b, "    %s -> %s  %s\n", v.Caller, st.callee.Render(v.Callee),
				st.muted.Render("caller module: "+CallerModule(v)))
			if v.Site != "" {
				fmt.Fprintf(&b, "        %s\n", st.muted.Render("at "+v.Site))
			}
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}
