package chains

import (
	"fmt"

	"github.com/pendergraft/shipcheck/internal/validation"
)

// CompilerProfile is the expected compiler configuration of deployed artifacts.
// Zero values are not checked.
type CompilerProfile struct {
	Version       string
	EVMVersion    string
	OptimizerRuns int
	ViaIR         *bool
}

// Check returns one description per setting where c differs from the profile.
func (p CompilerProfile) Check(c Compiler) []string {
	var mismatches []string

	if p.Version != "" {
		if c.Version == "" {
			mismatches = append(mismatches, fmt.Sprintf("compiler version: artifact does not record one, expected %s", p.Version))
		} else if validation.CompareVersions(c.Version, p.Version) != 0 {
			mismatches = append(mismatches, fmt.Sprintf("compiler version: artifact %s, expected %s", c.Version, p.Version))
		}
	}
	if p.EVMVersion != "" && c.EVMVersion != p.EVMVersion {
		mismatches = append(mismatches, fmt.Sprintf("evm version: artifact %q, expected %q", c.EVMVersion, p.EVMVersion))
	}
	if p.OptimizerRuns > 0 && (!c.Optimizer.Enabled || c.Optimizer.Runs != p.OptimizerRuns) {
		mismatches = append(mismatches, fmt.Sprintf("optimizer: artifact enabled=%t runs=%d, expected runs=%d",
			c.Optimizer.Enabled, c.Optimizer.Runs, p.OptimizerRuns))
	}
	if p.ViaIR != nil && c.ViaIR != *p.ViaIR {
		mismatches = append(mismatches, fmt.Sprintf("viaIR: artifact %t, expected %t", c.ViaIR, *p.ViaIR))
	}

	return mismatches
}
