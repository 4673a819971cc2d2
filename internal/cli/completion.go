package cli

import (
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

// KnownProviders are the provider ids with built-in display metadata
var KnownProviders = []string{"msToDo", "obsidian", "todoist"}

// ProviderCompletion completes the first argument with provider ids: the
// built-in ones plus any listed in extra (typically the config file's).
func ProviderCompletion(extra func() []string) func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	return func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) > 0 {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}

		seen := make(map[string]bool)
		candidates := append([]string{}, KnownProviders...)
		if extra != nil {
			candidates = append(candidates, extra()...)
		}

		var completions []string
		for _, p := range candidates {
			if seen[p] {
				continue
			}
			seen[p] = true
			if strings.HasPrefix(strings.ToLower(p), strings.ToLower(toComplete)) {
				completions = append(completions, p)
			}
		}
		sort.Strings(completions)
		return completions, cobra.ShellCompDirectiveNoFileComp
	}
}
