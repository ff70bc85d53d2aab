package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"inferbridge/internal/bridge"
	"inferbridge/internal/llm"
)

func newGenerateCmd(c *cli) *cobra.Command {
	var mf modelFlags
	cmd := &cobra.Command{
		Use:     "generate [flags] PROMPT...",
		Aliases: []string{"gen"},
		Short:   "Stream a greedy completion of PROMPT to stdout",
		Example: "  inferbridge generate -m llama-3.2-1b-instruct-q4_k_m -n 64 \"Write a haiku about rain\"",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := c.resolveModel(mf.model)
			if err != nil {
				return err
			}
			svc := bridge.New(bridge.KindLLM, llm.NewLlama(),
				bridge.WithLogger(c.log),
				bridge.WithDefaults(c.cfg.LLM),
			)
			defer svc.Close()

			h := svc.LoadModel(path, mf.config(c.cfg.LLM))
			if h == bridge.InvalidHandle {
				return fmt.Errorf("could not load %s", path)
			}
			prompt := strings.Join(args, " ")
			// Interrupts go through StopGeneration so the partial output is kept.
			return stream(cmd.Context(), svc, h, cmd.OutOrStdout(), func(cb bridge.Callback) {
				svc.StartGeneration(context.Background(), h, prompt, mf.maxTokens, mf.temperature, cb)
			})
		},
	}
	mf.register(cmd.Flags())
	return cmd
}
