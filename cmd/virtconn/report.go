package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jbweber/virtconn/internal/objects"
	"github.com/jbweber/virtconn/internal/output"
	"github.com/jbweber/virtconn/internal/support"
)

var capsCmd = &cobra.Command{
	Use:   "caps",
	Short: "Show host capabilities",
	Long:  `Show the host architecture and the guest types the hypervisor can run.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openConnection(cmd.Context())
		if err != nil {
			return err
		}
		defer closeConnection(c)

		caps, err := c.Capabilities()
		if err != nil {
			return err
		}
		return printFields(capsFields(caps))
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show library, daemon and hypervisor versions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openConnection(cmd.Context())
		if err != nil {
			return err
		}
		defer closeConnection(c)

		return printFields(versionFields(c))
	},
}

var minVersion string

var supportCmd = &cobra.Command{
	Use:   "support [feature...]",
	Short: "Check optional feature support",
	Long: `Check whether the connection supports optional features.

With no arguments every known feature is checked individually. With
arguments each named feature is reported along with the combined result,
which is true only when all of them are supported.

Use --min-version to compare the hypervisor version against X.Y.Z.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		features, err := parseFeatures(args)
		if err != nil {
			return err
		}

		c, err := openConnection(cmd.Context())
		if err != nil {
			return err
		}
		defer closeConnection(c)

		fields := supportFields(c, features, len(args) > 0)
		if minVersion != "" {
			ok, err := c.CheckVersion(minVersion)
			if err != nil {
				return err
			}
			fields = append(fields, output.Field{Key: "version>=" + minVersion, Value: strconv.FormatBool(ok)})
		}
		return printFields(fields)
	},
}

func init() {
	supportCmd.Flags().StringVar(&minVersion, "min-version", "", "Also check the hypervisor version is at least X.Y.Z")
}

var uriCmd = &cobra.Command{
	Use:   "uri",
	Short: "Describe the connection address",
	Long: `Describe the connection address: driver, transport, host and the
hypervisor classification derived from it.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openConnection(cmd.Context())
		if err != nil {
			return err
		}
		defer closeConnection(c)

		return printFields(uriFields(c))
	},
}

var testConnCmd = &cobra.Command{
	Use:   "test-conn",
	Short: "Test libvirt connection",
	Long:  `Test connectivity to the libvirt daemon and display version information.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("Testing libvirt connection...")

		c, err := openConnection(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to connect to libvirt: %w", err)
		}

		fmt.Printf("✓ Connected to %s\n", c.URI())
		fmt.Printf("✓ Library version: %s\n", versionString(c.LocalLibraryVersion()))
		fmt.Printf("✓ Daemon version: %s\n", versionString(c.DaemonVersion()))
		fmt.Printf("✓ Hypervisor version: %s\n", versionString(c.ConnVersion()))

		if status := closeConnection(c); status < 0 {
			return fmt.Errorf("failed to close connection")
		}

		fmt.Println("\nConnection test successful!")
		return nil
	},
}

func capsFields(caps *objects.Capabilities) []output.Field {
	fields := []output.Field{
		{Key: "host.arch", Value: caps.HostArch()},
		{Key: "host.uuid", Value: caps.HostUUID()},
	}
	for _, g := range caps.Guests() {
		fields = append(fields, output.Field{
			Key:   fmt.Sprintf("guest.%s.%s", g.OSType, g.Arch),
			Value: strings.Join(g.Domains, ","),
		})
	}
	return fields
}

type versionSource interface {
	LocalLibraryVersion() uint64
	DaemonVersion() uint64
	ConnVersion() uint64
}

func versionFields(v versionSource) []output.Field {
	return []output.Field{
		{Key: "library", Value: versionString(v.LocalLibraryVersion())},
		{Key: "daemon", Value: versionString(v.DaemonVersion())},
		{Key: "hypervisor", Value: versionString(v.ConnVersion())},
	}
}

func versionString(v uint64) string {
	if v == 0 {
		return "unknown"
	}
	return support.FormatVersion(v)
}

func parseFeatures(names []string) ([]support.Feature, error) {
	if len(names) == 0 {
		return support.Features(), nil
	}
	features := make([]support.Feature, 0, len(names))
	for _, name := range names {
		f, err := support.ParseFeature(name)
		if err != nil {
			return nil, err
		}
		features = append(features, f)
	}
	return features, nil
}

type supportChecker interface {
	Supports(features ...support.Feature) bool
	SupportsRemoteURLInstall() bool
}

// supportFields reports each feature. combined adds the AND of all of them;
// otherwise the remote URL install check is appended.
func supportFields(c supportChecker, features []support.Feature, combined bool) []output.Field {
	fields := make([]output.Field, 0, len(features)+1)
	for _, f := range features {
		fields = append(fields, output.Field{Key: f.String(), Value: strconv.FormatBool(c.Supports(f))})
	}
	if combined {
		fields = append(fields, output.Field{Key: "all", Value: strconv.FormatBool(c.Supports(features...))})
	} else {
		fields = append(fields, output.Field{Key: "remote-url-install", Value: strconv.FormatBool(c.SupportsRemoteURLInstall())})
	}
	return fields
}

type uriSource interface {
	URI() string
	Driver() string
	URITransport() string
	URIHostname() string
	URIPort() string
	URIUsername() string
	URIPath() string
	IsRemote() bool
	IsSessionURI() bool
	IsSynthetic() bool
	IsQemu() bool
	IsTest() bool
	IsXen() bool
	IsContainer() bool
}

func uriFields(u uriSource) []output.Field {
	return []output.Field{
		{Key: "uri", Value: u.URI()},
		{Key: "driver", Value: u.Driver()},
		{Key: "transport", Value: u.URITransport()},
		{Key: "hostname", Value: u.URIHostname()},
		{Key: "port", Value: u.URIPort()},
		{Key: "username", Value: u.URIUsername()},
		{Key: "path", Value: u.URIPath()},
		{Key: "remote", Value: strconv.FormatBool(u.IsRemote())},
		{Key: "session", Value: strconv.FormatBool(u.IsSessionURI())},
		{Key: "synthetic", Value: strconv.FormatBool(u.IsSynthetic())},
		{Key: "hypervisor", Value: hypervisorClass(u)},
	}
}

func hypervisorClass(u uriSource) string {
	switch {
	case u.IsQemu():
		return "qemu"
	case u.IsXen():
		return "xen"
	case u.IsContainer():
		return "container"
	case u.IsTest():
		return "test"
	default:
		return "other"
	}
}
