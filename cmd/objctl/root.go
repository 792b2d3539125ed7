package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd(a *app) *cobra.Command {
	var (
		backend  string
		bucket   string
		endpoint string
	)

	cmd := &cobra.Command{
		Use:           "objctl",
		Short:         "Stream objects to S3 or OSS and inspect backend errors",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := a.load(); err != nil {
				return err
			}
			if backend != "" {
				a.cfg.ObjectStore.Backend = backend
			}
			if bucket != "" {
				a.cfg.ObjectStore.Bucket = bucket
			}
			if endpoint != "" {
				a.cfg.ObjectStore.Endpoint = endpoint
			}
			return a.cfg.Validate()
		},
	}

	cmd.Version = version
	cmd.PersistentFlags().StringVar(&a.configPath, "config", "", "path to a YAML or TOML config file (default $OBJACCESS_CONFIG)")
	cmd.PersistentFlags().StringVar(&backend, "backend", "", "override the backend (s3, oss, memory)")
	cmd.PersistentFlags().StringVar(&bucket, "bucket", "", "override the bucket")
	cmd.PersistentFlags().StringVar(&endpoint, "endpoint", "", "override the endpoint URL")

	cmd.AddCommand(
		newPutCmd(a),
		newStatCmd(a),
		newRmCmd(a),
		newClassifyCmd(),
		newVersionCmd(),
	)

	return cmd
}
