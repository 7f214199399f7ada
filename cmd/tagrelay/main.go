package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"github.com/robotalks/tagrelay/pkg/config"
	"github.com/robotalks/tagrelay/pkg/device"
	fx "github.com/robotalks/tagrelay/pkg/framework"
	"github.com/robotalks/tagrelay/pkg/serial"
)

//go-build: CGO_ENABLED=0

var (
	version = "dev"

	configPath string
	conf       = config.NewConfig()
)

var rootCmd = &cobra.Command{
	Use:           "tagrelay",
	Short:         "Relay animal tag reads and device logs to remote collectors",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if configPath != "" {
			if err := conf.LoadWithFlags(configPath, cmd.Flags()); err != nil {
				return err
			}
		}
		dev, err := device.New(conf, device.Options{})
		if err != nil {
			return err
		}
		glog.Infof("tagrelay %s device %s", version, conf.DeviceID)
		return fx.NewRunner().HandleSignals().Go(dev.Tasks()...).Wait()
	},
}

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List serial ports",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ports, err := serial.Ports()
		if err != nil {
			return err
		}
		for _, port := range ports {
			fmt.Fprintln(cmd.OutOrStdout(), port)
		}
		return nil
	},
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", configPath, "Config file (.yaml or .toml).")
	// -v belongs to glog verbosity.
	rootCmd.Flags().Bool("version", false, "Print the version.")
	conf.AddFlags(rootCmd.Flags())
	rootCmd.PersistentFlags().AddGoFlagSet(flag.CommandLine)
	rootCmd.AddCommand(portsCmd)
}

func main() {
	defer glog.Flush()
	// glog flags are bound through cobra; mark the go flag set parsed.
	flag.CommandLine.Parse(nil)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		glog.Flush()
		os.Exit(1)
	}
}
