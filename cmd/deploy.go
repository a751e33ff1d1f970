package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"lampbench/internal/config"
	"lampbench/internal/deploy"
	"lampbench/internal/shell"
)

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Apply the shared Cloud Run scaling profile to every service",
	Long: `Builds one "gcloud run services update" per service with a cloudRunService.

Project is resolved in this order: --project, cloudRun.projectId,
cloudRun.projectNumber, GOOGLE_CLOUD_PROJECT. By default the commands are
only printed; add --execute to run them.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(viper.GetString("config"))
		if err != nil {
			return err
		}
		services, err := config.LoadServices(viper.GetString("services"))
		if err != nil {
			return err
		}
		project, _ := cmd.Flags().GetString("project")
		execute, _ := cmd.Flags().GetBool("execute")

		c := &deploy.Configurator{
			Profile:  cfg.CloudRun,
			Services: services,
			Project:  project,
			Getenv:   os.Getenv,
			Shell:    shell.NewExecRunner(),
			Out:      cmd.OutOrStdout(),
			Log:      logrus.WithField("component", "deploy"),
		}
		return c.Apply(cmd.Context(), execute)
	},
}

func init() {
	deployCmd.Flags().String("project", "", "Google Cloud project, overrides the config")
	deployCmd.Flags().Bool("execute", false, "run the gcloud commands instead of printing them")
}
