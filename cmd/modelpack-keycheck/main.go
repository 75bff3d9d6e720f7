// Command modelpack-keycheck reports the expiry status of every trusted
// signing key in a trusted-keys directory, exiting non-zero if any key is
// expired or within its warning window.
//
// Grounded on registry/root.go and registry/garbagecollect.go's cobra
// command wiring: flags bound in init(), a single Run closure that
// resolves configuration, does the work, and calls os.Exit on failure.
package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/modelpack/modelpack/config"
	"github.com/modelpack/modelpack/trust"
)

var warnBeforeDays int

func init() {
	RootCmd.Flags().IntVarP(&warnBeforeDays, "days-before-warning", "d", 0, "override the expiry warning window (default: from config)")
}

// RootCmd is the main command for the modelpack-keycheck binary.
var RootCmd = &cobra.Command{
	Use:   "modelpack-keycheck [days_before_warning]",
	Short: "`modelpack-keycheck` reports trusted signing key expiry status",
	Long:  "`modelpack-keycheck` reports trusted signing key expiry status",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.FromEnv()
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}

		warnDays := cfg.ExpiryWarnBeforeDays
		if warnBeforeDays != 0 {
			warnDays = warnBeforeDays
		}
		if len(args) == 1 {
			parsed, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("days_before_warning must be an integer: %w", err)
			}
			warnDays = parsed
		}

		ks, err := trust.LoadKeyStore(cfg.TrustedKeysDir)
		if err != nil {
			return fmt.Errorf("loading trusted key store: %w", err)
		}

		reports, err := trust.CheckExpiry(ks, time.Now(), warnDays)
		if err != nil {
			return fmt.Errorf("checking key expiry: %w", err)
		}

		failed := false
		for _, r := range reports {
			label := "OK"
			switch r.Status {
			case trust.StatusWarn:
				label = "WARN"
				failed = true
			case trust.StatusExpired:
				label = "EXPIRED"
				failed = true
			}
			if r.NeverExpires {
				fmt.Printf("%s\t%s\tnever expires\t%s\n", r.Fingerprint, r.Identity, label)
				continue
			}
			fmt.Printf("%s\t%s\t%d days\t%s\n", r.Fingerprint, r.Identity, r.DaysToExpiry, label)
		}

		if failed {
			os.Exit(1)
		}
		return nil
	},
}

func main() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
