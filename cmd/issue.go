package cmd

import (
	"fmt"

	"example.com/swiftcheck/config"
	"example.com/swiftcheck/internal/clock"
	"example.com/swiftcheck/internal/services"
	"example.com/swiftcheck/internal/token"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	issueEventID      int64
	issueTicketNumber int64
)

var issueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Mint a signed ticket token",
	Long: `Mint a ticket token for the given event and ticket number using the
configured shared secret. The token is valid from now until the
configured TTL elapses; mint again to refresh.`,
	RunE: runIssue,
}

func init() {
	issueCmd.Flags().Int64Var(&issueEventID, "event", 0, "event id (required)")
	issueCmd.Flags().Int64Var(&issueTicketNumber, "ticket", 0, "ticket number (required)")
	_ = issueCmd.MarkFlagRequired("event")
	_ = issueCmd.MarkFlagRequired("ticket")
	rootCmd.AddCommand(issueCmd)
}

func runIssue(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return err
	}
	if cfg.Ticket.UsingDefaultSecret() {
		log.Warn().Msg("Minting with the built-in demo secret")
	}

	issuance := services.NewIssuanceService(token.NewSigner(cfg.Ticket.Secret), clock.NewSystem())
	tokenString, err := issuance.Issue(issueEventID, issueTicketNumber)
	if err != nil {
		return err
	}

	fmt.Println(tokenString)
	return nil
}
