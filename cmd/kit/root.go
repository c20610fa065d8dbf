package main

import (
	"github.com/spf13/cobra"

	authcmder "github.com/kcterala/kit/cmd/kit/auth"
	clonecmder "github.com/kcterala/kit/cmd/kit/clone"
	commitcmder "github.com/kcterala/kit/cmd/kit/commit"
	forkcmder "github.com/kcterala/kit/cmd/kit/fork"
	ipcmder "github.com/kcterala/kit/cmd/kit/ip"
	"github.com/kcterala/kit/pkg/cmdenv"
)

const kitLongDesc string = `kit is a small helper for everyday GitHub work.

It logs in to GitHub with the OAuth device flow and keeps the token in
config.json under your user config directory (override with --config-dir
or KIT_CONFIG_DIR).`

const kitShortDesc string = "A GitHub CLI tool"

// NewKitCmd returns the root command with every subcommand attached.
func NewKitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "kit",
		Short:         kitShortDesc,
		Long:          kitLongDesc,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().String(cmdenv.ConfigDirFlag, "", "Override the kit config directory")
	cmd.PersistentFlags().BoolP(cmdenv.VerboseFlag, "v", false, "Enable debug logging")

	cmd.AddCommand(
		authcmder.NewAuthCmd(),
		clonecmder.NewCloneCmd(),
		forkcmder.NewForkCmd(),
		commitcmder.NewCommitCmd(),
		ipcmder.NewIPCmd(),
	)

	return cmd
}
