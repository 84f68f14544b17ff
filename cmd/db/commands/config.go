package commands

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/disgoorg/snowflake/v2"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

// ConfigCommands returns the commands that edit per-guild settings.
func ConfigCommands(deps *CLIDependencies) []*cli.Command {
	return []*cli.Command{
		{
			Name:      "get",
			Usage:     "Print one guild setting",
			ArgsUsage: "GUILD SECTION KEY",
			Action:    handleConfigGet(deps),
		},
		{
			Name:      "set",
			Usage:     "Change one guild setting, e.g. 'set 123 logging modlog 456'",
			ArgsUsage: "GUILD SECTION KEY VALUE",
			Action:    handleConfigSet(deps),
		},
		{
			Name:      "list",
			Usage:     "Print every setting of a guild",
			ArgsUsage: "GUILD",
			Action:    handleConfigList(deps),
		},
	}
}

// handleConfigGet handles the 'config get' command.
func handleConfigGet(deps *CLIDependencies) cli.ActionFunc {
	return func(ctx context.Context, c *cli.Command) error {
		guildID, err := guildArg(c)
		if err != nil {
			return err
		}
		if c.Args().Len() < 3 {
			return ErrSettingRequired
		}

		section, key := c.Args().Get(1), c.Args().Get(2)
		value, ok, err := deps.Config.Get(ctx, guildID, section, key)
		if err != nil {
			return fmt.Errorf("failed to read setting: %w", err)
		}
		if !ok {
			deps.Logger.Info("Setting is not configured",
				zap.Uint64("guildID", uint64(guildID)),
				zap.String("section", section),
				zap.String("key", key))
			return nil
		}

		fmt.Println(value)
		return nil
	}
}

// handleConfigSet handles the 'config set' command.
func handleConfigSet(deps *CLIDependencies) cli.ActionFunc {
	return func(ctx context.Context, c *cli.Command) error {
		guildID, err := guildArg(c)
		if err != nil {
			return err
		}
		if c.Args().Len() < 3 {
			return ErrSettingRequired
		}
		if c.Args().Len() < 4 {
			return ErrValueRequired
		}

		section, key, value := c.Args().Get(1), c.Args().Get(2), c.Args().Get(3)
		if err := deps.Config.Set(ctx, guildID, section, key, value); err != nil {
			return fmt.Errorf("failed to write setting: %w", err)
		}

		deps.Logger.Info("Updated guild setting",
			zap.Uint64("guildID", uint64(guildID)),
			zap.String("section", section),
			zap.String("key", key))
		return nil
	}
}

// handleConfigList handles the 'config list' command.
func handleConfigList(deps *CLIDependencies) cli.ActionFunc {
	return func(ctx context.Context, c *cli.Command) error {
		guildID, err := guildArg(c)
		if err != nil {
			return err
		}

		settings, err := deps.Config.All(ctx, guildID)
		if err != nil {
			return fmt.Errorf("failed to read settings: %w", err)
		}

		for _, name := range slices.Sorted(maps.Keys(settings)) {
			fmt.Printf("%s = %s\n", name, settings[name])
		}
		return nil
	}
}

func guildArg(c *cli.Command) (snowflake.ID, error) {
	if c.Args().Len() < 1 {
		return 0, ErrGuildRequired
	}

	guildID, err := snowflake.Parse(c.Args().First())
	if err != nil {
		return 0, fmt.Errorf("invalid guild id %q: %w", c.Args().First(), err)
	}
	return guildID, nil
}
