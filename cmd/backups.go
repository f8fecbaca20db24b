package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	backups "github.com/vendahub/tesouro/internal/pg-backups"
)

func backupCommands(_ *tesouroInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "start tesouro database backup",
	}

	cmd.AddCommand(backupToCommands())
	cmd.AddCommand(backupToS3Commands())

	return cmd
}

func backupToCommands() *cobra.Command {
	cmd := &cobra.Command{
		Use: "drive",
		Run: func(cmd *cobra.Command, args []string) {
			manager, err := backups.NewBackupManager()
			if err != nil {
				logrus.Error(err)
				return
			}
			path, err := manager.BackupToDisk(cmd.Context())
			if err != nil {
				logrus.Error(err)
				return
			}
			logrus.Infof("Backup written to %s", path)
		},
	}

	return cmd
}

func backupToS3Commands() *cobra.Command {
	cmd := &cobra.Command{
		Use: "s3",
		Run: func(cmd *cobra.Command, args []string) {
			manager, err := backups.NewBackupManager()
			if err != nil {
				logrus.Error(err)
				return
			}
			if err := manager.BackupToS3(cmd.Context()); err != nil {
				logrus.Error(err)
				return
			}
			logrus.Info("Backup uploaded to S3")
		},
	}

	return cmd
}
