package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/pflag"
)

// placeholderFlag collects repeated name=value flags.
type placeholderFlag map[string]string

var _ pflag.Value = (*placeholderFlag)(nil)

func (p *placeholderFlag) String() string {
	if p == nil || len(*p) == 0 {
		return ""
	}
	names := make([]string, 0, len(*p))
	for name := range *p {
		names = append(names, name)
	}
	sort.Strings(names)

	pairs := make([]string, len(names))
	for i, name := range names {
		pairs[i] = name + "=" + (*p)[name]
	}
	return strings.Join(pairs, ",")
}

func (p *placeholderFlag) Set(value string) error {
	name, val, ok := strings.Cut(value, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return fmt.Errorf("expected name=value, got %q", value)
	}
	if *p == nil {
		*p = make(placeholderFlag)
	}
	(*p)[name] = val
	return nil
}

func (p *placeholderFlag) Type() string {
	return "name=value"
}
