package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kpkg-dev/kpkg-go/internal/audit"
	"github.com/kpkg-dev/kpkg-go/internal/builder"
	"github.com/kpkg-dev/kpkg-go/internal/config"
	"github.com/kpkg-dev/kpkg-go/internal/kpkg"
	"github.com/kpkg-dev/kpkg-go/internal/signature"
	"github.com/kpkg-dev/kpkg-go/internal/utils"
	"github.com/kpkg-dev/kpkg-go/pkg/version"
)

var (
	cfgFile string
	verbose bool
	log     *utils.Logger
)

// errAuditFindings marks a strict trace audit that found risky write
// activity; main exits 2 for it instead of 1.
var errAuditFindings = errors.New("risky write activity detected")

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if errors.Is(err, errAuditFindings) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "kpkg",
	Short: "Build, inspect, and verify KPKG containers",
	Long: `kpkg packages a binary together with a capability manifest into a
KPKG container, and validates untrusted containers before any byte of
them is trusted.

The manifest declares scoped capabilities (memory ceiling, readable
paths, connectable hosts); enforcement happens in the sandbox, not here.`,
	Version: version.Short(),
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.kpkg/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	packageCmd.Flags().StringP("input", "i", "", "Staging directory holding 'binary' and '.kpkg.toml'")
	packageCmd.Flags().StringP("output", "o", "", "Container file to write")
	_ = packageCmd.MarkFlagRequired("input")
	_ = packageCmd.MarkFlagRequired("output")

	signCmd.Flags().StringP("key", "k", "", "Private key file (32-byte seed)")
	signCmd.Flags().StringP("sig", "s", "", "Signature file to write (default: <path>.sig)")
	_ = signCmd.MarkFlagRequired("key")

	verifyCmd.Flags().StringP("key", "k", "", "Public key file (32 bytes)")
	verifyCmd.Flags().StringP("sig", "s", "", "Signature file (default: <path>.sig)")
	_ = verifyCmd.MarkFlagRequired("key")

	keygenCmd.Flags().String("private", "", "Private key file to write (default: <keys dir>/kpkg.key)")
	keygenCmd.Flags().String("public", "", "Public key file to write (default: <keys dir>/kpkg.pub)")

	auditElfCmd.Flags().String("json", "", "Write JSON report to this file")
	auditElfCmd.Flags().String("manifest", "", "Write suggested manifest to this file")

	auditTraceCmd.Flags().Bool("strict", false, "Exit non-zero when risky write activity is detected")
	auditTraceCmd.Flags().String("json", "", "Write JSON report to this file")
	auditTraceCmd.Flags().String("manifest", "", "Write suggested manifest to this file")
	_ = viper.BindPFlag("audit.strict", auditTraceCmd.Flags().Lookup("strict"))

	auditCmd.AddCommand(auditElfCmd)
	auditCmd.AddCommand(auditTraceCmd)
	configCmd.AddCommand(configInitCmd)

	rootCmd.AddCommand(packageCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(signCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(keygenCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(versionCmd)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
}

// setup loads the configuration and wires the logger; every subcommand
// that does real work starts here.
func setup() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	log = utils.NewLogger(utils.LoggerOptions{
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		Verbose: verbose,
	})
	return cfg, nil
}

var packageCmd = &cobra.Command{
	Use:   "package",
	Short: "Compose a KPKG container from a staging directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := setup()
		if err != nil {
			return err
		}

		input, _ := cmd.Flags().GetString("input")
		output, _ := cmd.Flags().GetString("output")

		res, err := builder.Build(builder.Options{
			Input:  utils.ExpandPath(input),
			Output: utils.ExpandPath(output),
			Logger: log,
		})
		if err != nil {
			return err
		}

		fmt.Printf("Created %s (%d bytes: %d manifest, %d binary)\n",
			res.Output, res.TotalSize, res.ManifestSize, res.BinarySize)
		return nil
	},
}

var inspectCmd = &cobra.Command{
	Use:   "inspect PATH",
	Short: "Validate a container and print its header and manifest",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := setup()
		if err != nil {
			return err
		}
		path := utils.ExpandPath(args[0])

		if err := checkSizeCap(path, cfg.MaxPackageSizeBytes()); err != nil {
			return err
		}

		pkg, err := kpkg.LoadFile(path)
		if err != nil {
			return err
		}

		fmt.Printf("KPKG v%d\n", pkg.Header.Version)
		fmt.Printf("Manifest: offset=%d, size=%d\n", pkg.Header.ManifestOffset, pkg.Header.ManifestSize)
		fmt.Printf("Binary:   offset=%d, size=%d\n", pkg.Header.BinaryOffset, pkg.Header.BinarySize)
		fmt.Printf("\nManifest Content:\n%s\n", pkg.Manifest)
		return nil
	},
}

// checkSizeCap refuses to read container files larger than the
// configured cap. The cap runs on file metadata, before any content is
// read.
func checkSizeCap(path string, maxBytes int64) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.Size() > maxBytes {
		return fmt.Errorf("%s is %d bytes, over the %d byte limit (limits.max_package_size)",
			path, info.Size(), maxBytes)
	}
	return nil
}

var signCmd = &cobra.Command{
	Use:   "sign PATH",
	Short: "Write a detached Ed25519 signature for a container",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := setup(); err != nil {
			return err
		}
		path := utils.ExpandPath(args[0])
		keyPath, _ := cmd.Flags().GetString("key")
		sigPath, _ := cmd.Flags().GetString("sig")
		if sigPath == "" {
			sigPath = path + ".sig"
		}

		key, err := signature.LoadSigningKey(utils.ExpandPath(keyPath))
		if err != nil {
			return err
		}
		sig, err := signature.SignFile(path, key)
		if err != nil {
			return err
		}
		if err := signature.SaveSignature(sigPath, sig); err != nil {
			return err
		}

		fmt.Printf("Wrote signature to %s\n", sigPath)
		return nil
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify PATH",
	Short: "Verify a detached signature over a container",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := setup(); err != nil {
			return err
		}
		path := utils.ExpandPath(args[0])
		keyPath, _ := cmd.Flags().GetString("key")
		sigPath, _ := cmd.Flags().GetString("sig")
		if sigPath == "" {
			sigPath = path + ".sig"
		}

		pub, err := signature.LoadPublicKey(utils.ExpandPath(keyPath))
		if err != nil {
			return err
		}
		sig, err := signature.LoadSignature(utils.ExpandPath(sigPath))
		if err != nil {
			return err
		}
		ok, err := signature.VerifyFile(path, pub, sig)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("signature verification FAILED for %s", path)
		}

		fmt.Printf("Signature OK for %s\n", path)
		return nil
	},
}

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate an Ed25519 signing keypair",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := setup()
		if err != nil {
			return err
		}
		privPath, _ := cmd.Flags().GetString("private")
		pubPath, _ := cmd.Flags().GetString("public")
		if privPath == "" || pubPath == "" {
			keysDir := utils.ExpandPath(cfg.Keys.Directory)
			if err := os.MkdirAll(keysDir, 0o700); err != nil {
				return fmt.Errorf("failed to create keys directory: %w", err)
			}
			if privPath == "" {
				privPath = filepath.Join(keysDir, "kpkg.key")
			}
			if pubPath == "" {
				pubPath = filepath.Join(keysDir, "kpkg.pub")
			}
		}

		if err := signature.GenerateKeypair(utils.ExpandPath(privPath), utils.ExpandPath(pubPath)); err != nil {
			return err
		}

		fmt.Printf("Wrote private key to %s\n", privPath)
		fmt.Printf("Wrote public key to %s\n", pubPath)
		return nil
	},
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Audit binaries or traces to suggest a manifest",
}

var auditElfCmd = &cobra.Command{
	Use:   "elf PATH",
	Short: "Static ELF audit",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := setup(); err != nil {
			return err
		}

		report, err := audit.AuditELF(utils.ExpandPath(args[0]))
		if err != nil {
			return err
		}
		report.Render(os.Stdout)

		return writeReportArtifacts(cmd, report)
	},
}

var auditTraceCmd = &cobra.Command{
	Use:   "trace LOG",
	Short: "Audit from an strace text log",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := setup()
		if err != nil {
			return err
		}

		report, err := audit.AuditTrace(utils.ExpandPath(args[0]))
		if err != nil {
			return err
		}
		report.Render(os.Stdout)

		if report.HasWrites() {
			fmt.Fprintln(os.Stderr, "Warning: write attempts detected; write capabilities are not modeled. Consider read-only policies.")
		}

		if err := writeReportArtifacts(cmd, report); err != nil {
			return err
		}

		if cfg.Audit.Strict && report.HasWrites() {
			return errAuditFindings
		}
		return nil
	},
}

// writeReportArtifacts handles the shared --json and --manifest output
// flags of the audit subcommands.
func writeReportArtifacts(cmd *cobra.Command, report *audit.Report) error {
	if jsonPath, _ := cmd.Flags().GetString("json"); jsonPath != "" {
		data, err := report.JSON()
		if err != nil {
			return err
		}
		if err := os.WriteFile(utils.ExpandPath(jsonPath), data, 0o644); err != nil {
			return fmt.Errorf("failed to write JSON report: %w", err)
		}
	}
	if manifestPath, _ := cmd.Flags().GetString("manifest"); manifestPath != "" {
		doc, err := report.SuggestedManifestTOML()
		if err != nil {
			return err
		}
		if err := os.WriteFile(utils.ExpandPath(manifestPath), []byte(doc), 0o644); err != nil {
			return fmt.Errorf("failed to write suggested manifest: %w", err)
		}
	}
	return nil
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage kpkg configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default config file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.ConfigFilePath()
		if cfgFile != "" {
			path = cfgFile
		}
		if err := config.WriteDefault(path); err != nil {
			return err
		}
		fmt.Printf("Wrote default config to %s\n", path)
		return nil
	},
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the local kpkg setup",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("Checking kpkg setup...")
		allPassed := true

		fmt.Print("  Config file: ")
		cfg, err := config.Load()
		if err != nil {
			fmt.Printf("WARN (%v)\n", err)
			cfg = config.Default()
		} else {
			fmt.Println("OK")
		}

		fmt.Print("  Keys directory: ")
		keysDir := utils.ExpandPath(cfg.Keys.Directory)
		if checkDir(keysDir) {
			fmt.Printf("OK (%s)\n", keysDir)
		} else {
			fmt.Println("WARN (will be created by 'kpkg keygen')")
		}

		fmt.Print("  Staging directory: ")
		stagingDir := utils.ExpandPath(cfg.Staging.Directory)
		switch {
		case !checkDir(stagingDir):
			fmt.Println("WARN (will be created on first use)")
		case !utils.DirWritable(stagingDir):
			fmt.Println("FAILED (not writable)")
			allPassed = false
		default:
			fmt.Printf("OK (%s)\n", stagingDir)
		}

		fmt.Print("  Package size limit: ")
		fmt.Printf("OK (%s)\n", cfg.Limits.MaxPackageSize)

		fmt.Println()
		if allPassed {
			fmt.Println("All critical checks passed!")
		} else {
			fmt.Println("Some checks failed. Please resolve the issues above.")
		}
		return nil
	},
}

// checkDir reports whether path exists and is a directory
func checkDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.Full())
	},
}
