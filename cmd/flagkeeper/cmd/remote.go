package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/solatis/flagkeeper/internal/core/client"
	"github.com/solatis/flagkeeper/internal/targeting"
	"github.com/solatis/flagkeeper/internal/types"
)

var remoteCmd = &cobra.Command{
	Use:   "remote",
	Short: "Edit targetings through a running targeting API",
	Long: `Remote commands talk to a flagkeeper targeting API. The API key is read
from the FK_API_KEY environment variable.`,
}

var remoteGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Print the stored targeting of a toggle",
	Args:  cobra.NoArgs,
	RunE:  runRemoteGet,
}

var remotePublishCmd = &cobra.Command{
	Use:   "publish FILE",
	Short: "Publish a configuration file as the new targeting of a toggle",
	Long: `Publish replaces the targeting of a toggle with FILE. The change is
validated and classified first; environments that require approval turn
the publish into an approval request.`,
	Args: cobra.ExactArgs(1),
	RunE: runRemotePublish,
}

var remoteApproveCmd = &cobra.Command{
	Use:   "approve ID",
	Short: "Approve and publish a pending approval request",
	Args:  cobra.ExactArgs(1),
	RunE:  runRemoteApprove,
}

var remoteDeclineCmd = &cobra.Command{
	Use:   "decline ID",
	Short: "Decline a pending approval request",
	Args:  cobra.ExactArgs(1),
	RunE:  runRemoteDecline,
}

func init() {
	rootCmd.AddCommand(remoteCmd)
	remoteCmd.AddCommand(remoteGetCmd, remotePublishCmd, remoteApproveCmd, remoteDeclineCmd)
	remoteCmd.PersistentFlags().String("address", "", "targeting API address (default from config)")
	addToggleKeyFlags(remoteCmd.PersistentFlags())

	remotePublishCmd.Flags().String("comment", "", "publish comment (required when approval is enabled)")
	remotePublishCmd.Flags().String("track-events", "", "start tracking access events when asked (yes or no)")
	remotePublishCmd.Flags().Bool("yes", false, "acknowledge that a material change affects tracked events")
}

// newClient dials the configured targeting API.
func newClient(cmd *cobra.Command) (*client.Client, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if addr, _ := cmd.Flags().GetString("address"); addr != "" {
		cfg.Client.Address = addr
	}
	logger, err := newLogger()
	if err != nil {
		return nil, err
	}
	return client.New(cfg.Client, client.WithLogger(logger))
}

func runRemoteGet(cmd *cobra.Command, args []string) error {
	key, err := toggleKey(cmd)
	if err != nil {
		return err
	}
	c, err := newClient(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	t, err := c.Load(cmd.Context(), key)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(t)
}

func runRemotePublish(cmd *cobra.Command, args []string) error {
	key, err := toggleKey(cmd)
	if err != nil {
		return err
	}
	conf, err := readConfiguration(args[0])
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger()
	if err != nil {
		return err
	}
	c, err := newClient(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx := cmd.Context()
	loaded, err := c.Load(ctx, key)
	if err != nil {
		return err
	}

	engine, err := newEngine(cfg, logger, targeting.WithPublisher(c))
	if err != nil {
		return err
	}
	session := engine.NewSession(loaded)
	if err := session.Update(func(m *targeting.EditModel) error {
		*m = engine.Normalizer().ToEditModel(conf)
		return nil
	}); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	confirm, res, err := session.OpenConfirmation()
	if errors.Is(err, targeting.ErrNoChanges) {
		fmt.Fprintln(out, "no changes")
		return nil
	}
	if err != nil {
		return err
	}
	if !res.Valid() {
		for _, fe := range res.Errors {
			fmt.Fprintf(out, "%s: %s: %s\n", args[0], fe.Path, fe.Message)
		}
		return fmt.Errorf("%w: %d error(s)", ErrInvalidConfiguration, len(res.Errors))
	}
	writeDiff(out, confirm.Classification, confirm.Report, false)

	opts := targeting.PublishOptions{}
	opts.Comment, _ = cmd.Flags().GetString("comment")
	opts.DisclosureAcknowledged, _ = cmd.Flags().GetBool("yes")
	if confirm.TrackChoiceRequired {
		answer, _ := cmd.Flags().GetString("track-events")
		switch answer {
		case "yes", "no":
			track := answer == "yes"
			opts.TrackAccessEvents = &track
		default:
			return fmt.Errorf("%w: pass --track-events=yes or --track-events=no", targeting.ErrTrackChoiceRequired)
		}
	}

	if err := checkPublishOptions(out, engine.Localizer(), confirm, opts); err != nil {
		return err
	}

	ack, err := session.Publish(ctx, opts)
	if err != nil {
		return err
	}
	switch ack.Status {
	case types.AckPending:
		fmt.Fprintf(out, "\napproval %s requested from %v\n", ack.ApprovalID, confirm.Reviewers)
	default:
		fmt.Fprintf(out, "\npublished version %s\n", ack.Version)
	}
	return nil
}

func runRemoteApprove(cmd *cobra.Command, args []string) error {
	id, err := types.ParseApprovalID(args[0])
	if err != nil {
		return err
	}
	key, err := toggleKey(cmd)
	if err != nil {
		return err
	}
	c, err := newClient(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	ack, err := c.Approve(cmd.Context(), key, id)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "published version %s\n", ack.Version)
	return nil
}

func runRemoteDecline(cmd *cobra.Command, args []string) error {
	id, err := types.ParseApprovalID(args[0])
	if err != nil {
		return err
	}
	key, err := toggleKey(cmd)
	if err != nil {
		return err
	}
	c, err := newClient(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.Decline(cmd.Context(), key, id); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "declined %s\n", id)
	return nil
}

// checkPublishOptions prints the localized material-change notice and
// reports a missing acknowledgement or comment before anything is sent.
func checkPublishOptions(out io.Writer, loc targeting.Localizer, confirm *targeting.Confirmation, opts targeting.PublishOptions) error {
	if confirm.DisclosureRequired {
		fmt.Fprintf(out, "\n%s\n", loc.Text(targeting.MsgPublishNotice))
		if !opts.DisclosureAcknowledged {
			return fmt.Errorf("%w: pass --yes to continue", targeting.ErrDisclosureRequired)
		}
	}
	if confirm.ApprovalRequired && opts.Comment == "" {
		return fmt.Errorf("%w: %s (--comment)", targeting.ErrCommentRequired, loc.Text(targeting.MsgPublishComment))
	}
	return nil
}
