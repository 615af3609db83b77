package main

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/vango-dev/slicestore/internal/config"
	"github.com/vango-dev/slicestore/internal/errors"
)

func initCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Write a default slicestore.json",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			path, err := writeDefaultConfig(dir, force)
			if err != nil {
				return err
			}
			success("Wrote %s", path)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing file")

	return cmd
}

func writeDefaultConfig(dir string, force bool) (string, error) {
	path := filepath.Join(dir, config.ConfigFileName)
	if !force && config.Exists(dir) {
		return "", errors.New(errors.CodeConfigInvalid).
			WithDetail(path + " already exists").
			WithSuggestion("Pass --force to overwrite it")
	}
	if err := config.New().SaveTo(path); err != nil {
		return "", err
	}
	return path, nil
}
