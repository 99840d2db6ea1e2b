/*
Command magma runs a single GPU compute dispatch against a Vulkan-class
driver and verifies the result on the host.
*/
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/spaghettifunk/magma/engine"
	"github.com/spaghettifunk/magma/engine/compute"
	"github.com/spaghettifunk/magma/engine/config"
	"github.com/spaghettifunk/magma/engine/core"
	"github.com/spaghettifunk/magma/engine/hal"
	_ "github.com/spaghettifunk/magma/engine/hal/soft"
	_ "github.com/spaghettifunk/magma/engine/hal/vulkan"
	"github.com/spaghettifunk/magma/engine/math"
)

var version = "0.1.0"

var (
	configFile  string
	driverName  string
	firstDevice bool
	deviceID    uint32
	validation  bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "magma",
		Short: "GPU compute dispatch runner",
	}
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (toml)")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run a single dispatch",
		RunE:  runDispatch,
	}
	runCmd.Flags().StringVar(&driverName, "driver", "", "driver to use (overrides config)")
	runCmd.Flags().BoolVar(&firstDevice, "first-device", false, "select the first compute-capable device")
	runCmd.Flags().Uint32Var(&deviceID, "device-id", 0, "select the device with this id")
	runCmd.Flags().BoolVar(&validation, "validation", false, "enable driver validation layers")

	devicesCmd := &cobra.Command{
		Use:   "devices",
		Short: "list devices the driver can see",
		RunE:  listDevices,
	}
	devicesCmd.Flags().StringVar(&driverName, "driver", "", "driver to use (overrides config)")

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "re-dispatch whenever the shader binary changes",
		RunE:  watchDispatch,
	}
	watchCmd.Flags().StringVar(&driverName, "driver", "", "driver to use (overrides config)")
	watchCmd.Flags().BoolVar(&validation, "validation", false, "enable driver validation layers")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("magma %s\n", version)
		},
	}

	rootCmd.AddCommand(runCmd, devicesCmd, watchCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if configFile != "" {
		var err error
		cfg, err = config.Load(configFile)
		if err != nil {
			return nil, err
		}
	}
	if cmd.Flags().Changed("driver") {
		cfg.Device.Driver = driverName
	}
	if cmd.Flags().Changed("first-device") {
		cfg.Device.FirstDevice = firstDevice
		cfg.Device.DeviceID = nil
	}
	if cmd.Flags().Changed("device-id") {
		id := deviceID
		cfg.Device.DeviceID = &id
		cfg.Device.FirstDevice = false
	}
	if cmd.Flags().Changed("validation") {
		cfg.Execution.Validation = validation
	}
	core.SetLogLevel(cfg.Logging.Level)
	return cfg, nil
}

func runDispatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	e, err := engine.New(cfg)
	if err != nil {
		return err
	}
	if err := e.Initialize(); err != nil {
		return err
	}
	defer e.Shutdown()

	result, err := e.Run()
	if err != nil {
		return err
	}

	fmt.Printf("run id: %s\n", result.ID)
	fmt.Printf("device: %s (vendor 0x%04x, device 0x%04x)\n", result.DeviceName, result.VendorID, result.DeviceID)
	fmt.Printf("queue family: %d, memory type: %d\n", result.QueueFamilyIndex, result.MemoryTypeIndex)
	fmt.Printf("setup: %.2fms, execute: %.2fms, readback: %.2fms\n", result.SetupMS, result.ExecuteMS, result.ReadbackMS)
	fmt.Printf("verified: %t\n", result.Verified)
	if !result.Verified {
		return fmt.Errorf("output verification failed")
	}
	return nil
}

var (
	tableHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	tableCellStyle   = lipgloss.NewStyle().PaddingRight(2)
	computeYesStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	computeNoStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
)

func listDevices(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	driver := hal.Lookup(cfg.Device.Driver)
	if driver == nil {
		return core.ConfigurationError("unknown driver '%s' (registered: %v)", cfg.Device.Driver, hal.Drivers())
	}

	descriptors, err := compute.ListDevices(driver, cfg.Execution.Validation)
	if err != nil {
		return err
	}
	if len(descriptors) == 0 {
		fmt.Println("no devices found")
		return nil
	}

	nameWidth := len("NAME")
	for _, d := range descriptors {
		nameWidth = math.Clamp(len(d.Name), nameWidth, 48)
	}

	fmt.Println(tableHeaderStyle.Render(fmt.Sprintf("%-*s  %-10s  %-10s  %s", nameWidth, "NAME", "VENDOR", "DEVICE", "COMPUTE")))
	for _, d := range descriptors {
		computeCol := computeNoStyle.Render("no")
		if d.HasCompute {
			computeCol = computeYesStyle.Render("yes")
		}
		row := fmt.Sprintf("%-*s  0x%08x  0x%08x  %s", nameWidth, d.Name, d.VendorID, d.DeviceID, computeCol)
		fmt.Println(tableCellStyle.Render(row))
	}
	return nil
}

func watchDispatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	e, err := engine.New(cfg)
	if err != nil {
		return err
	}
	if err := e.Initialize(); err != nil {
		return err
	}

	// signal channel to capture system calls
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)

	// start shutdown goroutine
	go func() {
		<-sigCh
		_ = e.Shutdown()
	}()

	return e.Watch()
}
