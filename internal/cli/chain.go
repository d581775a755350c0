package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func (s *state) submit(cmd *cobra.Command, proofPath, requestID, mnemonic string, force bool) error {
	c, err := s.services()
	if err != nil {
		return err
	}
	svc, err := c.Submissions()
	if err != nil {
		return err
	}
	res, err := svc.Submit(cmd.Context(), proofPath, requestID, mnemonic, force)
	if err != nil {
		return err
	}
	if res.Duplicate {
		fmt.Fprintf(cmd.OutOrStdout(), "already submitted to %s in %s (use --force to resubmit)\n", res.Endpoint, res.TxHash)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "submitted: %s\n", res.TxHash)
	return nil
}

func (s *state) remark(cmd *cobra.Command, path, mnemonic string) error {
	c, err := s.services()
	if err != nil {
		return err
	}
	svc, err := c.Submissions()
	if err != nil {
		return err
	}
	hash, err := svc.Remark(cmd.Context(), path, mnemonic)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "remark submitted: %s\n", hash)
	return nil
}

func newSubmitCmd(s *state) *cobra.Command {
	var proofPath, wsURL, requestID string
	var force bool
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a proof record to the verification pallet",
		RunE: s.run(func(cmd *cobra.Command, args []string) error {
			if wsURL != "" {
				s.cfg.Chain.WsURL = wsURL
			}
			mnemonic, err := s.mnemonic()
			if err != nil {
				return err
			}
			return s.submit(cmd, proofPath, requestID, mnemonic, force)
		}),
	}
	cmd.Flags().StringVar(&proofPath, "proof", "proof.json", "proof record to submit")
	cmd.Flags().StringVar(&wsURL, "ws-url", "", "chain websocket endpoint (overrides chain.wsUrl)")
	cmd.Flags().StringVar(&requestID, "request-id", "", "request id to note in the ledger")
	cmd.Flags().BoolVar(&force, "force", false, "submit even if the ledger has seen this proof")
	return cmd
}

func newRemarkCmd(s *state) *cobra.Command {
	var path, wsURL string
	cmd := &cobra.Command{
		Use:   "remark",
		Short: "Post a proof file verbatim as a System.remark",
		RunE: s.run(func(cmd *cobra.Command, args []string) error {
			if wsURL != "" {
				s.cfg.Chain.WsURL = wsURL
			}
			mnemonic, err := s.mnemonic()
			if err != nil {
				return err
			}
			return s.remark(cmd, path, mnemonic)
		}),
	}
	cmd.Flags().StringVar(&path, "proof", "proof.json", "file to post")
	cmd.Flags().StringVar(&wsURL, "ws-url", "", "chain websocket endpoint (overrides chain.wsUrl)")
	return cmd
}

func newPalletsCmd(s *state) *cobra.Command {
	return &cobra.Command{
		Use:   "pallets",
		Short: "Print the pallets this router calls",
		RunE: s.run(func(cmd *cobra.Command, args []string) error {
			c, err := s.services()
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), c.Submitter.ListPallets())
			return nil
		}),
	}
}

func newHistoryCmd(s *state) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List submissions recorded in the ledger",
		RunE: s.run(func(cmd *cobra.Command, args []string) error {
			c, err := s.services()
			if err != nil {
				return err
			}
			svc, err := c.Submissions()
			if err != nil {
				return err
			}
			entries, err := svc.History(cmd.Context(), limit)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SUBMITTED\tREQUEST\tTX HASH\tFINGERPRINT\tENDPOINT")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					e.SubmittedAt.Format(time.RFC3339), e.RequestID, e.TxHash, e.Fingerprint, e.Endpoint)
			}
			return w.Flush()
		}),
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum entries to show")
	return cmd
}
