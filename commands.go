package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/spance/devicecheck/constants"
	"github.com/spance/devicecheck/history"
	"github.com/spance/devicecheck/readiness/definitions"
)

func addCommands(root *cobra.Command) {
	devicesCmd := &cobra.Command{
		Use:   "devices",
		Short: "List devices known to adb",
		Args:  cobra.NoArgs,
		RunE:  listDevices,
	}

	connectCmd := &cobra.Command{
		Use:   "connect IP[:PORT]",
		Short: "Connect adb to a remote device",
		Args:  cobra.ExactArgs(1),
		RunE:  connectDevice,
	}

	disconnectCmd := &cobra.Command{
		Use:   "disconnect [IP[:PORT]|all]",
		Short: "Disconnect adb from a remote device, or from all of them",
		Args:  cobra.MaximumNArgs(1),
		RunE:  disconnectDevice,
	}

	historyCmd := &cobra.Command{
		Use:   "history [IP[:PORT]]",
		Short: "Show recent readiness checks",
		Args:  cobra.MaximumNArgs(1),
		RunE:  showHistory,
	}
	historyCmd.Flags().IntVarP(&opts.HistoryLimit, "limit", "n", constants.DefaultHistoryLimit,
		"Number of runs to show")

	appsCmd := &cobra.Command{
		Use:   "apps",
		Short: "List known app aliases",
		Args:  cobra.NoArgs,
		Run:   listApps,
	}

	root.AddCommand(devicesCmd, connectCmd, disconnectCmd, historyCmd, appsCmd)
}

func commandContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 2*constants.DefaultCommandTimeout)
}

func listDevices(cmd *cobra.Command, args []string) error {
	bridge, err := newBridge()
	if err != nil {
		return err
	}
	ctx, cancel := commandContext()
	defer cancel()

	devices, err := bridge.ListDevices(ctx)
	if err != nil {
		return err
	}
	if len(devices) == 0 {
		log.Info().Msg("No devices connected.")
		return nil
	}
	log.Info().Msg("Connected devices:")
	log.Info().Msg(strings.Repeat("-", 60))
	for _, d := range devices {
		statusIcon := "✅"
		if d.Status != "device" {
			statusIcon = "❌"
		}
		modelInfo := ""
		if d.Model != "" {
			modelInfo = fmt.Sprintf(" (%s)", d.Model)
		}
		log.Info().Msgf("  %s %-30s [%s]%s", statusIcon, d.DeviceID, d.ConnectionType, modelInfo)
	}
	return nil
}

func connectDevice(cmd *cobra.Command, args []string) error {
	addr, err := definitions.ParseAddress(args[0], cfg.DefaultPort)
	if err != nil {
		return err
	}
	bridge, err := newBridge()
	if err != nil {
		return err
	}
	ctx, cancel := commandContext()
	defer cancel()

	log.Info().Msgf("Connecting to %s...", addr)
	message, err := bridge.Connect(ctx, addr.String())
	if err != nil {
		log.Error().Str("msg", message).Msg("❌")
		return err
	}
	log.Info().Str("msg", message).Msg("✅")
	return nil
}

func disconnectDevice(cmd *cobra.Command, args []string) error {
	bridge, err := newBridge()
	if err != nil {
		return err
	}
	ctx, cancel := commandContext()
	defer cancel()

	target := ""
	if len(args) > 0 && args[0] != "all" {
		addr, err := definitions.ParseAddress(args[0], cfg.DefaultPort)
		if err != nil {
			return err
		}
		target = addr.String()
	}
	if target == "" {
		log.Info().Msg("Disconnecting all remote devices...")
	} else {
		log.Info().Msgf("Disconnecting from %s...", target)
	}

	message, err := bridge.Disconnect(ctx, target)
	if err != nil {
		log.Error().Str("msg", message).Msg("❌")
		return err
	}
	log.Info().Str("msg", message).Msg("✅")
	return nil
}

func showHistory(cmd *cobra.Command, args []string) error {
	address := ""
	if len(args) > 0 {
		addr, err := definitions.ParseAddress(args[0], cfg.DefaultPort)
		if err != nil {
			return err
		}
		address = addr.String()
	}

	store, err := history.Open(cfg.HistoryPath())
	if err != nil {
		return err
	}
	defer store.Close()

	entries, err := store.Recent(cmd.Context(), address, opts.HistoryLimit)
	if err != nil {
		return errors.Wrap(err, "load history")
	}
	if len(entries) == 0 {
		log.Info().Msg("No runs recorded yet.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tDEVICE\tRESULT\tVIA\tDURATION\tERROR")
	for _, e := range entries {
		result := "✅ ready"
		if !e.Success {
			result = "❌ not ready"
		}
		via := e.ConnectedVia
		if via == "" {
			via = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			e.StartedAt.Local().Format(time.DateTime), e.Address, result, via,
			e.Duration.Round(time.Millisecond), string(e.ErrorKind))
	}
	return w.Flush()
}

func listApps(cmd *cobra.Command, args []string) {
	log.Info().Msg("Supported Android apps:")
	for _, pkg := range constants.Packages() {
		aliases, _ := constants.GetAliasesByPackage(pkg)
		log.Info().Str("aliases", strings.Join(aliases, ", ")).Msgf("- %s", pkg)
	}
}
