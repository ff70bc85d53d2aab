package main

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"inferbridge/internal/bridge"
	"inferbridge/internal/llm"
)

func newTranscribeCmd(c *cli) *cobra.Command {
	var (
		mf     modelFlags
		input  string
		tokens int
		dim    int
	)
	cmd := &cobra.Command{
		Use:   "transcribe",
		Short: "Decode audio encoder embeddings into text",
		Long: "Reads raw little-endian float32 embeddings (tokens x dim, row-major) from\n" +
			"--input or stdin and streams the decoded text to stdout.",
		Example: "  inferbridge transcribe -m glm-asr-nano-q8_0 --input clip.f32 --tokens 375",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := c.resolveModel(mf.model)
			if err != nil {
				return err
			}
			svc := bridge.New(bridge.KindASR, llm.NewLlama(),
				bridge.WithLogger(c.log),
				bridge.WithDefaults(c.cfg.ASR),
			)
			defer svc.Close()

			h := svc.LoadModel(path, mf.config(c.cfg.ASR))
			if h == bridge.InvalidHandle {
				return fmt.Errorf("could not load %s", path)
			}
			if dim == 0 {
				dim = svc.EmbeddingDim(h)
			}

			var r io.Reader = cmd.InOrStdin()
			if input != "" && input != "-" {
				f, err := os.Open(input)
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}
			data, n, err := readEmbeddings(r, tokens, dim)
			if err != nil {
				return err
			}
			c.log.Debug().Int("tokens", n).Int("dim", dim).Msg("embeddings read")
			return stream(cmd.Context(), svc, h, cmd.OutOrStdout(), func(cb bridge.Callback) {
				svc.DecodeEmbeddings(context.Background(), h, data, n, dim, mf.maxTokens, cb)
			})
		},
	}
	mf.register(cmd.Flags())
	cmd.Flags().StringVarP(&input, "input", "i", "-", "Embeddings file, - for stdin")
	cmd.Flags().IntVar(&tokens, "tokens", 0, "Rows to decode (default: all rows in the input)")
	cmd.Flags().IntVar(&dim, "dim", 0, "Row width (default: the model's embedding dimension)")
	return cmd
}

// readEmbeddings reads row-major little-endian float32 rows of width dim.
// tokens 0 means every row present; otherwise the input must hold at least
// tokens rows and only those are returned.
func readEmbeddings(r io.Reader, tokens, dim int) ([]float32, int, error) {
	if dim <= 0 {
		return nil, 0, fmt.Errorf("embedding dim must be positive, got %d", dim)
	}
	if tokens < 0 {
		return nil, 0, fmt.Errorf("tokens must not be negative, got %d", tokens)
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, 0, fmt.Errorf("read embeddings: %w", err)
	}
	if len(b)%4 != 0 {
		return nil, 0, fmt.Errorf("input is %d bytes, not a whole number of float32 values", len(b))
	}
	values := len(b) / 4
	if values%dim != 0 {
		return nil, 0, fmt.Errorf("input holds %d values, not a multiple of dim %d", values, dim)
	}
	rows := values / dim
	switch {
	case rows == 0:
		return nil, 0, fmt.Errorf("input is empty")
	case tokens == 0:
		tokens = rows
	case tokens > rows:
		return nil, 0, fmt.Errorf("input holds %d rows, %d requested", rows, tokens)
	}
	out := make([]float32, tokens*dim)
	if err := binary.Read(bytes.NewReader(b), binary.LittleEndian, out); err != nil {
		return nil, 0, err
	}
	return out, tokens, nil
}
