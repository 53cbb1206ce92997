package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/telhawk-systems/console/pkg/listview"
)

var listCmd = &cobra.Command{
	Use:   "list <view>",
	Short: "Fetch one page of a list view",
	Example: `  console list members --filter status=active --sort login_count:desc
  console list tenants --search acme --limit 20
  console list members --query 'status=active,invited&page=2'`,
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeViewNames,
	RunE:              runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
	addQueryFlags(listCmd)
	listCmd.Flags().String("tenant", "", "restrict rows to a tenant (default api.tenant_id)")
	listCmd.Flags().Int("demo", 200, "rows generated for local views when no log backend is enabled")
}

func runList(cmd *cobra.Command, args []string) error {
	format, err := currentFormat()
	if err != nil {
		return err
	}
	view, err := lookupView(args[0])
	if err != nil {
		return err
	}
	flags, err := readQueryFlags(cmd)
	if err != nil {
		return err
	}
	spec := view.Spec()
	query, err := flags.build(spec)
	if err != nil {
		return err
	}
	tenant, _ := cmd.Flags().GetString("tenant")
	if tenant == "" {
		tenant = currentConfig().API.TenantID
	}
	demo, _ := cmd.Flags().GetInt("demo")

	ctx := commandContext(cmd)
	lv, err := mountView(ctx, view, spec, mountOptions{
		tenant: tenant,
		demo:   demo,
		bar:    listview.NewMemoryAddressBar(query),
	})
	if err != nil {
		return err
	}
	defer lv.Close()

	lv.Wait()
	res := lv.Result()
	if res.Err != nil {
		return fmt.Errorf("list %s: %w", view.Name, res.Err)
	}
	rememberQuery(ctx, view.Name, lv.QueryString())
	return renderPage(newPrinter(cmd), format, view, spec, res)
}
