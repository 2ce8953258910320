package resolver

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/MrSnakeDoc/snip/internal/domain"
)

// substitute fills every placeholder of text. Order: built-ins, then
// values, then the declared default, then the prompter. Anything left keeps
// its literal {name}.
func (r *Resolver) substitute(text string, values map[string]string, vars map[string]domain.Variable) (string, []string) {
	now := r.now()
	var unresolved []string
	seen := map[string]bool{}

	out := domain.ReplacePlaceholders(text, func(name string) (string, bool) {
		if domain.IsBuiltin(name) {
			return r.builtin(strings.ToLower(name), now)
		}
		if v, ok := values[name]; ok {
			return v, true
		}
		def, declared := vars[name]
		if declared {
			if d, ok := def.DefaultValue(); ok {
				return d, true
			}
		} else {
			def = domain.Variable{Name: name}
		}
		if r.prompter != nil {
			if v, ok := r.prompter.Prompt(def); ok {
				return v, true
			}
		}
		if !seen[name] {
			seen[name] = true
			unresolved = append(unresolved, name)
		}
		return "", false
	})
	return out, unresolved
}

func (r *Resolver) builtin(name string, now time.Time) (string, bool) {
	switch name {
	case domain.BuiltinDate:
		return now.Format("2006-01-02"), true
	case domain.BuiltinTime:
		return now.Format("15:04"), true
	case domain.BuiltinDateTime:
		return now.Format("2006-01-02 15:04"), true
	case domain.BuiltinISODate:
		return now.UTC().Format(time.RFC3339), true
	case domain.BuiltinYear:
		return strconv.Itoa(now.Year()), true
	case domain.BuiltinURL:
		if r.env.URL == "" {
			return "", false
		}
		return r.env.URL, true
	case domain.BuiltinHostname:
		if h := r.hostname(); h != "" {
			return h, true
		}
		return "", false
	}
	return "", false
}

func (r *Resolver) hostname() string {
	if r.env.Hostname != "" {
		return r.env.Hostname
	}
	if r.env.URL == "" {
		return ""
	}
	u, err := url.Parse(r.env.URL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
