package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/NikitaDmitryuk/libria-media-server/internal/utils"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, formatError(err))
		}
		os.Exit(1)
	}
}

// formatError appends the context of a wrapped error as sorted key=value pairs.
func formatError(err error) string {
	ctx := utils.ErrorContext(err)
	if len(ctx) == 0 {
		return err.Error()
	}
	keys := make([]string, 0, len(ctx))
	for k := range ctx {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, fmt.Sprintf("%s=%v", k, ctx[k]))
	}
	return fmt.Sprintf("%s (%s)", err.Error(), strings.Join(pairs, ", "))
}
