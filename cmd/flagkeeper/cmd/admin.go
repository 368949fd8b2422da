package cmd

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/solatis/flagkeeper/internal/core/auth"
	"github.com/solatis/flagkeeper/internal/core/config"
	"github.com/solatis/flagkeeper/internal/core/store"
	"github.com/solatis/flagkeeper/internal/types"
)

var apikeyCmd = &cobra.Command{
	Use:   "apikey",
	Short: "Manage targeting API keys",
}

var apikeyIssueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Issue an API key for a project",
	Args:  cobra.NoArgs,
	RunE:  runAPIKeyIssue,
}

var apikeyRevokeCmd = &cobra.Command{
	Use:   "revoke ID",
	Short: "Revoke an API key",
	Args:  cobra.ExactArgs(1),
	RunE:  runAPIKeyRevoke,
}

var toggleCmd = &cobra.Command{
	Use:   "toggle",
	Short: "Administer stored toggle targetings",
}

var toggleCreateCmd = &cobra.Command{
	Use:   "create FILE",
	Short: "Store the first targeting of a toggle",
	Args:  cobra.ExactArgs(1),
	RunE:  runToggleCreate,
}

var toggleHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "List published versions of a toggle targeting",
	Args:  cobra.NoArgs,
	RunE:  runToggleHistory,
}

var toggleApprovalsCmd = &cobra.Command{
	Use:   "approvals",
	Short: "List pending approval requests of a toggle targeting",
	Args:  cobra.NoArgs,
	RunE:  runToggleApprovals,
}

var segmentCmd = &cobra.Command{
	Use:   "segment",
	Short: "Administer audience segments",
}

var segmentPutCmd = &cobra.Command{
	Use:   "put KEY",
	Short: "Create or update a segment",
	Args:  cobra.ExactArgs(1),
	RunE:  runSegmentPut,
}

var segmentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the segments of a project",
	Args:  cobra.NoArgs,
	RunE:  runSegmentList,
}

func init() {
	rootCmd.AddCommand(apikeyCmd, toggleCmd, segmentCmd)
	apikeyCmd.AddCommand(apikeyIssueCmd, apikeyRevokeCmd)
	toggleCmd.AddCommand(toggleCreateCmd, toggleHistoryCmd, toggleApprovalsCmd)
	segmentCmd.AddCommand(segmentPutCmd, segmentListCmd)

	apikeyIssueCmd.Flags().String("project", "", "project the key is scoped to")
	apikeyIssueCmd.Flags().String("name", "", "key description")
	apikeyIssueCmd.Flags().String("secret-id", "", "HMAC secret to sign with (default: lowest configured id)")
	_ = apikeyIssueCmd.MarkFlagRequired("project")

	for _, c := range []*cobra.Command{toggleCreateCmd, toggleHistoryCmd, toggleApprovalsCmd} {
		addToggleKeyFlags(c.Flags())
	}
	toggleCreateCmd.Flags().String("return-type", string(types.ReturnBoolean), "toggle return type (boolean, string, number, json)")
	toggleCreateCmd.Flags().Bool("track-events", false, "access events are tracked")
	toggleCreateCmd.Flags().Bool("allow-track-events", true, "publishers may start tracking access events")
	toggleCreateCmd.Flags().Bool("approval", false, "publishes in this environment need approval")
	toggleCreateCmd.Flags().StringSlice("reviewer", nil, "approval reviewer (repeatable)")
	toggleHistoryCmd.Flags().Int("limit", 20, "maximum versions to list")
	toggleHistoryCmd.Flags().String("since", "", "only list versions published after this version id")

	for _, c := range []*cobra.Command{segmentPutCmd, segmentListCmd} {
		c.Flags().String("project", "", "project key")
		_ = c.MarkFlagRequired("project")
	}
	segmentPutCmd.Flags().String("name", "", "segment display name")
	segmentPutCmd.Flags().String("description", "", "segment description")
}

// addToggleKeyFlags registers the flags addressing one toggle targeting.
func addToggleKeyFlags(fs *pflag.FlagSet) {
	fs.String("project", "", "project key")
	fs.String("env", "", "environment key")
	fs.String("toggle", "", "toggle key")
}

// toggleKey reads the flags registered by addToggleKeyFlags.
func toggleKey(cmd *cobra.Command) (types.ToggleKey, error) {
	var key types.ToggleKey
	key.Project, _ = cmd.Flags().GetString("project")
	key.Environment, _ = cmd.Flags().GetString("env")
	key.Toggle, _ = cmd.Flags().GetString("toggle")
	if key.Project == "" || key.Environment == "" || key.Toggle == "" {
		return key, fmt.Errorf("--project, --env and --toggle are required")
	}
	return key, nil
}

// openStore opens the migrated database behind a store.
func openStore(cmd *cobra.Command) (*store.Store, func() error, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	logger, err := newLogger()
	if err != nil {
		return nil, nil, err
	}
	database, queries, err := openDatabase(cmd.Context(), cfg)
	if err != nil {
		return nil, nil, err
	}
	return store.New(queries, store.WithLogger(logger)), database.Close, nil
}

func runAPIKeyIssue(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	secrets, err := config.HMACSecrets()
	if err != nil {
		return fmt.Errorf("failed to load HMAC secrets: %w", err)
	}
	if len(secrets) == 0 {
		return fmt.Errorf("no HMAC secrets configured (set FK_HMAC_SECRET environment variable)")
	}

	secretID, _ := cmd.Flags().GetString("secret-id")
	if secretID == "" {
		secretID = slices.Sorted(maps.Keys(secrets))[0]
	}
	project, _ := cmd.Flags().GetString("project")
	name, _ := cmd.Flags().GetString("name")

	database, queries, err := openDatabase(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	id, key, err := auth.NewAuthenticator(secrets, queries).Issue(cmd.Context(), project, name, secretID)
	if err != nil {
		return fmt.Errorf("failed to issue api key: %w", err)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "id:  %s\n", id)
	fmt.Fprintf(out, "key: %s\n", key)
	fmt.Fprintln(out, "the key is shown once; store it now")
	return nil
}

func runAPIKeyRevoke(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	database, queries, err := openDatabase(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := auth.NewAuthenticator(nil, queries).Revoke(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "revoked %s\n", args[0])
	return nil
}

func runToggleCreate(cmd *cobra.Command, args []string) error {
	key, err := toggleKey(cmd)
	if err != nil {
		return err
	}
	conf, err := readConfiguration(args[0])
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	returnType, _ := flags.GetString("return-type")
	trackEvents, _ := flags.GetBool("track-events")
	allowTrack, _ := flags.GetBool("allow-track-events")
	approval, _ := flags.GetBool("approval")
	reviewers, _ := flags.GetStringSlice("reviewer")
	if approval && len(reviewers) == 0 {
		return fmt.Errorf("--approval needs at least one --reviewer")
	}

	st, closeDB, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer closeDB()

	version, err := st.Create(cmd.Context(), types.Targeting{
		Key:           key,
		Configuration: conf,
		Toggle: types.ToggleInfo{
			ReturnType:             types.ReturnType(returnType),
			TrackEvents:            trackEvents,
			AllowEnableTrackEvents: allowTrack,
		},
		Approval: types.ApprovalInfo{EnableApproval: approval, Reviewers: reviewers},
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "created %s at version %s\n", key, version)
	return nil
}

func runToggleHistory(cmd *cobra.Command, args []string) error {
	key, err := toggleKey(cmd)
	if err != nil {
		return err
	}
	limit, _ := cmd.Flags().GetInt("limit")
	var since types.VersionID
	if s, _ := cmd.Flags().GetString("since"); s != "" {
		if since, err = types.ParseVersionID(s); err != nil {
			return fmt.Errorf("--since: %w", err)
		}
	}

	st, closeDB, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer closeDB()

	versions, err := st.Versions(cmd.Context(), key, limit)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tPUBLISHED\tRULES\tTRACKED\tCOMMENT")
	for _, v := range versions {
		if since != "" && (v.ID == since || !types.VersionIDTime(v.ID).After(types.VersionIDTime(since))) {
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%t\t%s\n",
			v.ID, humanize.Time(v.CreatedAt), len(v.Configuration.Content.Rules), v.TrackAccessEvents, v.Comment)
	}
	return w.Flush()
}

func runToggleApprovals(cmd *cobra.Command, args []string) error {
	key, err := toggleKey(cmd)
	if err != nil {
		return err
	}
	st, closeDB, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer closeDB()

	pending, err := st.PendingApprovals(cmd.Context(), key)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "APPROVAL\tBASE\tREQUESTED\tREVIEWERS\tCOMMENT")
	for _, a := range pending {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			a.ID, a.BaseVersion, humanize.Time(a.CreatedAt), strings.Join(a.Reviewers, ","), a.Comment)
	}
	return w.Flush()
}

func runSegmentPut(cmd *cobra.Command, args []string) error {
	project, _ := cmd.Flags().GetString("project")
	name, _ := cmd.Flags().GetString("name")
	description, _ := cmd.Flags().GetString("description")
	if name == "" {
		name = args[0]
	}

	st, closeDB, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer closeDB()

	seg := types.Segment{ProjectKey: project, Key: args[0], Name: name, Description: description}
	if err := st.PutSegment(cmd.Context(), seg); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "stored segment %s/%s\n", project, args[0])
	return nil
}

func runSegmentList(cmd *cobra.Command, args []string) error {
	project, _ := cmd.Flags().GetString("project")

	st, closeDB, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer closeDB()

	segs, err := st.Segments(cmd.Context(), project)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tNAME\tDESCRIPTION")
	for _, s := range segs {
		fmt.Fprintf(w, "%s\t%s\t%s\n", s.Key, s.Name, s.Description)
	}
	return w.Flush()
}
