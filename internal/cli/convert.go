package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"zkv-router/internal/services"
)

type convertFlags struct {
	requestID    string
	output       string
	apiBase      string
	details      string
	keepArtifact string
}

func (f *convertFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.requestID, "request-id", "", "explorer proof request id")
	cmd.Flags().StringVarP(&f.output, "output", "o", "proof.json", "where to write the proof record")
	cmd.Flags().StringVar(&f.apiBase, "api-base", "", "explorer base URL (overrides explorer.baseUrl)")
	cmd.Flags().StringVar(&f.details, "details", "", "also write a proof details report to this path")
	cmd.Flags().StringVar(&f.keepArtifact, "keep-artifact", "", "keep the raw downloaded artifact at this path")
	_ = cmd.MarkFlagRequired("request-id")
}

func (f *convertFlags) options() services.ConvertOptions {
	return services.ConvertOptions{
		RequestID:    f.requestID,
		OutputPath:   f.output,
		DetailsPath:  f.details,
		ArtifactPath: f.keepArtifact,
	}
}

// convert runs the pipeline and prints the written path.
func (s *state) convert(cmd *cobra.Command, f *convertFlags) (*services.ConvertResult, error) {
	if f.apiBase != "" {
		s.cfg.Explorer.BaseURL = f.apiBase
	}
	c, err := s.services()
	if err != nil {
		return nil, err
	}
	res, err := c.Pipeline.Convert(cmd.Context(), f.options())
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "proof written to %s\n", res.OutputPath)
	return res, nil
}

func newConvertCmd(s *state) *cobra.Command {
	f := &convertFlags{}
	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert an explorer proof request into a proof record",
		RunE: s.run(func(cmd *cobra.Command, args []string) error {
			_, err := s.convert(cmd, f)
			return err
		}),
	}
	f.register(cmd)
	return cmd
}

func newRunCmd(s *state) *cobra.Command {
	f := &convertFlags{}
	var submit, remark, force bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Convert a request, then submit and/or remark the written record",
		RunE: s.run(func(cmd *cobra.Command, args []string) error {
			if !submit && !remark {
				return errors.New("run needs --submit and/or --remark; use convert for conversion only")
			}
			mnemonic, err := s.mnemonic()
			if err != nil {
				return err
			}

			res, err := s.convert(cmd, f)
			if err != nil {
				return err
			}
			if submit {
				if err := s.submit(cmd, res.OutputPath, f.requestID, mnemonic, force); err != nil {
					return err
				}
			}
			if remark {
				if err := s.remark(cmd, res.OutputPath, mnemonic); err != nil {
					return err
				}
			}
			return nil
		}),
	}
	f.register(cmd)
	cmd.Flags().BoolVar(&submit, "submit", false, "submit the proof to the verification pallet")
	cmd.Flags().BoolVar(&remark, "remark", false, "post the proof file as a System.remark")
	cmd.Flags().BoolVar(&force, "force", false, "submit even if the ledger has seen this proof")
	return cmd
}
