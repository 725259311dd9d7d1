package diagnose

import (
	"fmt"
	"io"
	"math/big"
	"text/tabwriter"
	"time"

	"github.com/nftescrow/tradenode/internal/assets"
	"github.com/nftescrow/tradenode/pkg/units"
)

// Write prints the report for a terminal.
func (r *Report) Write(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	line := func(label, format string, args ...interface{}) {
		fmt.Fprintf(tw, "%s\t%s\n", label, fmt.Sprintf(format, args...))
	}

	if r.Network != "" {
		line("network", "%s", r.Network)
	}
	line("contract", "%s (%s)", r.Contract.Hex(), r.Schema.Version)
	line("code", "%s", yesNo(r.HasCode))
	if r.Fee != nil {
		line("trade fee", "%s", formatWei(r.Fee))
	}

	if t := r.Trade; t != nil {
		line("trade", "%s", t.ID)
		line("creator", "%s", t.Creator.Hex())
		line("counterparty", "%s", t.Counterparty.Hex())
		line("status", "%s (recorded %s)", r.EffectiveStatus, t.Status)
		line("created", "%s", t.CreatedAt.UTC().Format(time.RFC3339))
		if !t.ExpiryTime.IsZero() {
			line("expires", "%s (%s)", t.ExpiryTime.UTC().Format(time.RFC3339), untilExpiry(r.ExpiresIn))
		}
		line("offered native", "%s", formatWei(t.OfferedNative))
		line("requested native", "%s", formatWei(t.RequestedNative))
		if t.Message != "" {
			line("message", "%q", t.Message)
		}
		if r.RequiredValue != nil {
			line("accept value", "%s", formatWei(r.RequiredValue))
		}
		if r.SuppliedValue != nil {
			verdict := "MISMATCH"
			if r.ValueMatches() {
				verdict = "matches"
			}
			line("supplied value", "%s (%s)", formatWei(r.SuppliedValue), verdict)
		}
		line("checked as", "%s", r.As.Hex())
		for _, b := range r.Balances {
			line("balance "+b.Role, "%s", formatWei(b.Wei))
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if r.Trade != nil {
		writeAssets(w, "Offered assets (custody: escrow)", r.Offered)
		writeAssets(w, "Requested assets (holder: "+r.As.Hex()+")", r.Requested)
	}

	fmt.Fprintln(w)
	if len(r.Findings) == 0 {
		_, err := fmt.Fprintln(w, "No problems found.")
		return err
	}
	fmt.Fprintf(w, "Findings (%d):\n", len(r.Findings))
	for i, f := range r.Findings {
		fmt.Fprintf(w, "  %d. %s\n     -> %s\n", i+1, f.Problem, f.Remedy)
	}
	return nil
}

func writeAssets(w io.Writer, title string, statuses []assets.AssetStatus) {
	fmt.Fprintf(w, "\n%s:\n", title)
	if len(statuses) == 0 {
		fmt.Fprintln(w, "  none")
		return
	}
	for _, s := range statuses {
		fmt.Fprintf(w, "  %s  held=%s approved=%s\n", s.Asset, yesNo(s.Held), yesNo(s.Approved))
	}
}

func untilExpiry(d time.Duration) string {
	if d < 0 {
		return "passed " + (-d).Truncate(time.Second).String() + " ago"
	}
	return "in " + d.Truncate(time.Second).String()
}

func formatWei(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return units.FormatNative(v)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
