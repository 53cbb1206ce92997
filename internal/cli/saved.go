package cli

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/telhawk-systems/console/common/logging"
	"github.com/telhawk-systems/console/internal/output"
	"github.com/telhawk-systems/console/pkg/listview"
)

var savedCmd = &cobra.Command{
	Use:   "saved",
	Short: "Manage saved views (named bookmarks of list queries)",
}

var savedSaveCmd = &cobra.Command{
	Use:   "save <view> <name>",
	Short: "Save a query under a name",
	Example: `  console saved save members admins --filter role=admin,owner
  console saved save logs errors --query 'level=error&timeRange=1h'`,
	Args: cobra.ExactArgs(2),
	RunE: runSavedSave,
}

var savedListCmd = &cobra.Command{
	Use:               "list <view>",
	Short:             "List the saved views of a view",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeViewNames,
	RunE:              runSavedList,
}

var savedOpenCmd = &cobra.Command{
	Use:   "open <view> <name>",
	Short: "Fetch the page a saved view points at",
	Args:  cobra.ExactArgs(2),
	RunE:  runSavedOpen,
}

var savedDeleteCmd = &cobra.Command{
	Use:   "delete <view> <name>",
	Short: "Delete a saved view",
	Args:  cobra.ExactArgs(2),
	RunE:  runSavedDelete,
}

var savedRecentCmd = &cobra.Command{
	Use:               "recent <view>",
	Short:             "Show recently opened queries of a view",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeViewNames,
	RunE:              runSavedRecent,
}

func init() {
	rootCmd.AddCommand(savedCmd)
	savedCmd.AddCommand(savedSaveCmd, savedListCmd, savedOpenCmd, savedDeleteCmd, savedRecentCmd)

	addQueryFlags(savedSaveCmd)
	savedOpenCmd.Flags().String("tenant", "", "restrict rows to a tenant (default api.tenant_id)")
	savedOpenCmd.Flags().Int("demo", 200, "rows generated for local views when no log backend is enabled")
	savedRecentCmd.Flags().Int("limit", 10, "how many queries to show")
}

func runSavedSave(cmd *cobra.Command, args []string) error {
	view, err := lookupView(args[0])
	if err != nil {
		return err
	}
	flags, err := readQueryFlags(cmd)
	if err != nil {
		return err
	}
	query, err := flags.build(view.Spec())
	if err != nil {
		return err
	}

	store, closeStore, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	sv, err := store.Save(commandContext(cmd), view.Name, args[1], query)
	if err != nil {
		return err
	}
	newPrinter(cmd).Success("saved %q: %s", sv.Name, viewLink(view, sv.Query))
	return nil
}

func runSavedList(cmd *cobra.Command, args []string) error {
	format, err := currentFormat()
	if err != nil {
		return err
	}
	view, err := lookupView(args[0])
	if err != nil {
		return err
	}
	store, closeStore, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	saved, err := store.List(commandContext(cmd), view.Name)
	if err != nil {
		return err
	}
	p := newPrinter(cmd)
	if format == output.FormatJSON {
		return p.JSON(saved)
	}
	if len(saved) == 0 {
		p.Info("No saved views for %s.", view.Name)
		return nil
	}
	table := output.NewTable("NAME", "LINK", "UPDATED")
	for _, sv := range saved {
		table.AddRow(sv.Name, viewLink(view, sv.Query), sv.UpdatedAt.Local().Format(time.DateTime))
	}
	p.Table(table)
	return nil
}

func runSavedOpen(cmd *cobra.Command, args []string) error {
	format, err := currentFormat()
	if err != nil {
		return err
	}
	view, err := lookupView(args[0])
	if err != nil {
		return err
	}
	store, closeStore, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	ctx := commandContext(cmd)
	sv, err := store.Get(ctx, view.Name, args[1])
	if err != nil {
		return err
	}
	tenant, _ := cmd.Flags().GetString("tenant")
	if tenant == "" {
		tenant = currentConfig().API.TenantID
	}
	demo, _ := cmd.Flags().GetInt("demo")

	spec := view.Spec()
	lv, err := mountView(ctx, view, spec, mountOptions{tenant: tenant, demo: demo, bar: listview.NewMemoryAddressBar(sv.Query)})
	if err != nil {
		return err
	}
	defer lv.Close()
	lv.Wait()

	res := lv.Result()
	if res.Err != nil {
		return res.Err
	}
	if err := store.PushRecent(ctx, view.Name, lv.QueryString()); err != nil {
		currentLogger().Warn("failed to record recent view", logging.View(view.Name), logging.Error(err))
	}
	return renderPage(newPrinter(cmd), format, view, spec, res)
}

func runSavedDelete(cmd *cobra.Command, args []string) error {
	view, err := lookupView(args[0])
	if err != nil {
		return err
	}
	store, closeStore, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	if err := store.Delete(commandContext(cmd), view.Name, args[1]); err != nil {
		return err
	}
	newPrinter(cmd).Success("deleted %q from %s", args[1], view.Name)
	return nil
}

func runSavedRecent(cmd *cobra.Command, args []string) error {
	format, err := currentFormat()
	if err != nil {
		return err
	}
	view, err := lookupView(args[0])
	if err != nil {
		return err
	}
	limit, _ := cmd.Flags().GetInt("limit")
	store, closeStore, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	recent, err := store.Recent(commandContext(cmd), view.Name, limit)
	if err != nil {
		return err
	}
	p := newPrinter(cmd)
	if format == output.FormatJSON {
		return p.JSON(recent)
	}
	if len(recent) == 0 {
		p.Info("No recent queries for %s.", view.Name)
		return nil
	}
	for _, q := range recent {
		p.Info("%s", viewLink(view, q))
	}
	return nil
}
