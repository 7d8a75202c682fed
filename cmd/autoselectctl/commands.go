package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/builtwitharvadai/autoselect-querycache/engine"
	"github.com/builtwitharvadai/autoselect-querycache/transport"
)

// parseParams decodes the --params JSON into the query parameter set.
func parseParams(raw string) (any, error) {
	if raw == "" {
		return nil, nil
	}
	var params map[string]any
	if err := json.Unmarshal([]byte(raw), &params); err != nil {
		return nil, fmt.Errorf("invalid --params JSON: %w", err)
	}
	return params, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	cmd.Println(string(out))
	return nil
}

func newQueryCmd(flags *rootFlags) *cobra.Command {
	var rawParams string
	var force bool

	cmd := &cobra.Command{
		Use:   "query <kind>",
		Short: "Run one query through the cache engine and print the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := setupApp(flags)
			if err != nil {
				return err
			}
			defer func() { _ = app.Shutdown() }()

			e, err := app.Engine()
			if err != nil {
				return err
			}
			params, err := parseParams(rawParams)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			res, err := e.Query(ctx, args[0], params)
			if force && err == nil {
				res, err = res.Refetch(ctx)
			}
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]any{
				"key":    res.Key.String(),
				"status": res.Status.String(),
				"data":   res.Data,
			})
		},
	}
	cmd.Flags().StringVar(&rawParams, "params", "", "query parameters as JSON object")
	cmd.Flags().BoolVar(&force, "force", false, "bypass fresh cache and revalidate")
	return cmd
}

func newPrefetchCmd(flags *rootFlags) *cobra.Command {
	var rawParams string

	cmd := &cobra.Command{
		Use:   "prefetch <kind>",
		Short: "Warm the cache for a key without subscribing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := setupApp(flags)
			if err != nil {
				return err
			}
			defer func() { _ = app.Shutdown() }()

			e, err := app.Engine()
			if err != nil {
				return err
			}
			params, err := parseParams(rawParams)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()
			if err := e.Prefetch(ctx, args[0], params); err != nil {
				return err
			}
			// Prefetch is fire and forget; query the key to wait for
			// the warmed value so the tool can report it.
			res, err := e.Query(ctx, args[0], params)
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]any{
				"key":    res.Key.String(),
				"status": res.Status.String(),
			})
		},
	}
	cmd.Flags().StringVar(&rawParams, "params", "", "query parameters as JSON object")
	return cmd
}

func newInvalidateCmd(flags *rootFlags) *cobra.Command {
	var rawParams string

	cmd := &cobra.Command{
		Use:   "invalidate <kind>",
		Short: "Mark one key, or a whole kind, stale",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := setupApp(flags)
			if err != nil {
				return err
			}
			defer func() { _ = app.Shutdown() }()

			e, err := app.Engine()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			if rawParams == "" {
				e.InvalidateKind(ctx, args[0])
				return printJSON(cmd, map[string]any{"invalidated": args[0], "scope": "kind"})
			}
			params, err := parseParams(rawParams)
			if err != nil {
				return err
			}
			if err := e.Invalidate(ctx, args[0], params); err != nil {
				return err
			}
			return printJSON(cmd, map[string]any{"invalidated": args[0], "scope": "key"})
		},
	}
	cmd.Flags().StringVar(&rawParams, "params", "", "key parameters as JSON object; omit to invalidate the whole kind")
	return cmd
}

func newMutateCmd(flags *rootFlags) *cobra.Command {
	var (
		method      string
		path        string
		body        string
		invalidates []string
	)

	cmd := &cobra.Command{
		Use:   "mutate <name>",
		Short: "Execute a raw mutation against the backend and invalidate kinds",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if path == "" {
				return fmt.Errorf("--path is required")
			}
			app, err := setupApp(flags)
			if err != nil {
				return err
			}
			defer func() { _ = app.Shutdown() }()

			e, err := app.Engine()
			if err != nil {
				return err
			}
			api, err := app.Transport()
			if err != nil {
				return err
			}

			req := transport.NewRequest(strings.ToUpper(method), path)
			if body != "" {
				var payload any
				if err := json.Unmarshal([]byte(body), &payload); err != nil {
					return fmt.Errorf("invalid --body JSON: %w", err)
				}
				req.WithJSON(payload)
			}

			targets := make([]engine.InvalidationTarget, 0, len(invalidates))
			for _, kind := range invalidates {
				targets = append(targets, engine.InvalidationTarget{Kind: kind, WholeKind: true})
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			res, err := e.Mutate(ctx, engine.MutationRequest{
				Kind: args[0],
				Execute: func(mctx context.Context) (any, error) {
					var out any
					if err := api.ExecuteJSON(mctx, req, &out); err != nil {
						return nil, err
					}
					return out, nil
				},
				Invalidates: targets,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]any{"mutation": args[0], "result": res.Data})
		},
	}
	cmd.Flags().StringVar(&method, "method", "POST", "HTTP method")
	cmd.Flags().StringVar(&path, "path", "", "backend path, e.g. /api/cart/s-1/items")
	cmd.Flags().StringVar(&body, "body", "", "request body as JSON")
	cmd.Flags().StringSliceVar(&invalidates, "invalidate", nil, "kinds to invalidate after the mutation commits")
	return cmd
}
